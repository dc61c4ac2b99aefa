package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/idmesh/reference-resolution-backend/interfaces"
)

// StorageBackendFactory creates record storage backends from URI strings and
// manages multi-backend configurations for redundant storage.
type StorageBackendFactory struct {
	log *slog.Logger
}

// NewStorageBackendFactory creates a factory instance.
func NewStorageBackendFactory(logger *slog.Logger) *StorageBackendFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &StorageBackendFactory{log: logger}
}

// StorageBackendFor creates a storage backend from a location URI.
// The URI format is [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - file:// - Local filesystem storage
//   - s3:// - Amazon S3 or compatible object storage
//   - ipfs:// - IPFS node storage (mutable file system)
//   - vault:// - HashiCorp Vault KV v2 storage
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (sf *StorageBackendFactory) StorageBackendFor(locationURI string) (interfaces.StorageBackend, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return NewFileBackend(u.Path, sf.log)

	case "s3":
		var accessKey, secretKey string
		if u.User != nil {
			accessKey = u.User.Username()
			secretKey, _ = u.User.Password()
		}
		region := u.Query().Get("region")
		if region == "" {
			region = "us-east-1"
		}
		return NewS3Backend(u.Host, strings.TrimPrefix(u.Path, "/"), region, u.Query().Get("endpoint"), accessKey, secretKey, sf.log)

	case "ipfs":
		port := u.Port()
		if port == "" {
			port = "5001"
		}
		return NewIPFSBackend(u.Hostname(), port, u.Path, sf.log)

	case "vault":
		token := ""
		if u.User != nil {
			token = u.User.Username()
		}
		segments := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
		if len(segments) != 2 {
			return nil, fmt.Errorf("%w: vault URI must carry mount and data path", interfaces.ErrInvalidLocationURI)
		}
		scheme := "https"
		if u.Query().Get("insecure") == "true" {
			scheme = "http"
		}
		address := fmt.Sprintf("%s://%s", scheme, u.Host)
		return NewVaultBackend(address, token, segments[0], segments[1], sf.log)

	default:
		return nil, fmt.Errorf("unsupported backend scheme: %s", u.Scheme)
	}
}

// CreateMultiBackend creates a multi-storage backend from a list of location
// URIs. Backends that fail to initialize are skipped with a warning; at least
// one valid backend is required.
func (sf *StorageBackendFactory) CreateMultiBackend(locationURIs []string) (interfaces.StorageBackend, error) {
	backends := make([]interfaces.StorageBackend, 0, len(locationURIs))

	for _, uri := range locationURIs {
		backend, err := sf.StorageBackendFor(uri)
		if err != nil {
			sf.log.Warn("Failed to create storage backend",
				"err", err,
				slog.String("locationURI", uri))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid storage backends could be created")
	}
	if len(backends) == 1 {
		return backends[0], nil
	}

	return NewMultiStorageBackend(backends, sf.log), nil
}
