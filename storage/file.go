package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/idmesh/reference-resolution-backend/interfaces"
)

// FileBackend implements a record storage backend using the local file
// system. Records are stored in a directory per record kind.
type FileBackend struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a file storage backend under the specified base
// directory, creating the per-kind subdirectories if needed.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	for _, kind := range []interfaces.RecordKind{interfaces.RecordToken, interfaces.RecordFile, interfaces.RecordTemplate} {
		if err := os.MkdirAll(filepath.Join(baseDir, kind.String()), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", kind, err)
		}
	}

	return &FileBackend{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Fetch retrieves a record blob by its ID and kind.
// Returns ErrBlobNotFound if the file doesn't exist.
func (b *FileBackend) Fetch(ctx context.Context, id string, kind interfaces.RecordKind) ([]byte, error) {
	filePath, err := b.getFilePath(id, kind)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil, interfaces.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record file: %w", err)
	}

	b.log.Debug("Fetched record from file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return data, nil
}

// Store saves a record blob under its ID and kind.
func (b *FileBackend) Store(ctx context.Context, id string, data []byte, kind interfaces.RecordKind) error {
	filePath, err := b.getFilePath(id, kind)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write record file: %w", err)
	}

	b.log.Debug("Stored record to file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))
	return nil
}

// Available checks if the base directory is accessible.
func (b *FileBackend) Available(ctx context.Context) bool {
	info, err := os.Stat(b.baseDir)
	return err == nil && info.IsDir()
}

// Name returns the backend identifier for logging.
func (b *FileBackend) Name() string {
	return "file"
}

// LocationURI returns the URI this backend was created from.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}

// getFilePath validates the record ID and maps it into the kind directory.
// IDs are backbone identifiers and must not contain path separators.
func (b *FileBackend) getFilePath(id string, kind interfaces.RecordKind) (string, error) {
	if id == "" || strings.ContainsAny(id, "/\\.") {
		return "", fmt.Errorf("invalid record id: %q", id)
	}
	return filepath.Join(b.baseDir, kind.String(), id), nil
}
