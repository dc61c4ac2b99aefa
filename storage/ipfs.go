package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"

	"github.com/idmesh/reference-resolution-backend/interfaces"
)

// IPFSBackend implements a record storage backend on an IPFS node. Records
// are kept in the node's mutable file system under a per-kind directory, so
// they stay addressable by backbone record ID.
type IPFSBackend struct {
	shell       *shell.Shell
	basePath    string
	log         *slog.Logger
	locationURI string
}

// NewIPFSBackend creates an IPFS record storage backend connected to the
// node API at host:port. basePath is the MFS directory records live under.
func NewIPFSBackend(host, port, basePath string, log *slog.Logger) (*IPFSBackend, error) {
	apiURL := fmt.Sprintf("%s:%s", host, port)

	if basePath == "" {
		basePath = "/idmesh-records"
	}
	basePath = "/" + strings.Trim(basePath, "/")

	return &IPFSBackend{
		shell:       shell.NewShell(apiURL),
		basePath:    basePath,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s%s", apiURL, basePath),
	}, nil
}

// Fetch retrieves a record blob from the IPFS node.
// Returns ErrBlobNotFound if the record doesn't exist, ErrBackendUnavailable
// if the node is not accessible.
func (b *IPFSBackend) Fetch(ctx context.Context, id string, kind interfaces.RecordKind) ([]byte, error) {
	start := time.Now()
	path := b.getRecordPath(id, kind)

	reader, err := b.shell.FilesRead(ctx, path)
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") || strings.Contains(err.Error(), "not found") {
			return nil, interfaces.ErrBlobNotFound
		}
		b.log.Error("Failed to read record from IPFS",
			slog.String("path", path),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read record body: %w", err)
	}

	b.log.Debug("Fetched record from IPFS",
		slog.String("path", path),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Store saves a record blob to the IPFS node under its ID and kind.
func (b *IPFSBackend) Store(ctx context.Context, id string, data []byte, kind interfaces.RecordKind) error {
	path := b.getRecordPath(id, kind)

	err := b.shell.FilesWrite(ctx, path, bytes.NewReader(data),
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true))
	if err != nil {
		return fmt.Errorf("failed to write record to IPFS: %w", err)
	}

	b.log.Debug("Stored record to IPFS",
		slog.String("path", path),
		slog.Int("size", len(data)))
	return nil
}

// Available checks if the IPFS node answers its API.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	_, err := b.shell.ID()
	return err == nil
}

// Name returns the backend identifier for logging.
func (b *IPFSBackend) Name() string {
	return "ipfs"
}

// LocationURI returns the URI this backend was created from.
func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}

func (b *IPFSBackend) getRecordPath(id string, kind interfaces.RecordKind) string {
	return fmt.Sprintf("%s/%s/%s", b.basePath, kind.String(), id)
}
