package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// RecordKind indicates the backbone record namespace a blob belongs to.
type RecordKind int

const (
	// RecordToken for anonymous token records.
	RecordToken RecordKind = iota
	// RecordFile for account-scoped file records.
	RecordFile
	// RecordTemplate for relationship template records.
	RecordTemplate
)

// String returns the kind name used as a storage namespace.
func (rk RecordKind) String() string {
	switch rk {
	case RecordToken:
		return "tokens"
	case RecordFile:
		return "files"
	case RecordTemplate:
		return "templates"
	default:
		return "unknown"
	}
}

// RecordKindForNamespace maps a reference namespace to its record kind.
func RecordKindForNamespace(ns Namespace) (RecordKind, error) {
	switch ns {
	case NamespaceToken:
		return RecordToken, nil
	case NamespaceFile:
		return RecordFile, nil
	case NamespaceRelationshipTemplate:
		return RecordTemplate, nil
	default:
		return 0, fmt.Errorf("no record kind for namespace %s", ns)
	}
}

// StorageBackendLocation represents a URI for a storage backend.
type StorageBackendLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewStorageBackendLocation creates a storage location from a URI string with
// scheme validation.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("invalid URI format: %w", err)
	}

	switch parsed.Scheme {
	case "file", "s3", "ipfs", "vault":
		// Valid scheme
	default:
		return StorageBackendLocation{}, fmt.Errorf("unsupported storage scheme: %s", parsed.Scheme)
	}

	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return StorageBackendLocation{
		Raw:    uri,
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI string.
func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StorageBackendLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

var (
	// ErrBlobNotFound is returned when a requested record blob does not exist
	// in the storage backend.
	ErrBlobNotFound = errors.New("record blob not found")

	// ErrBackendUnavailable is returned when a storage backend is not
	// accessible due to network issues, authentication failures, or outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is
	// malformed or unsupported.
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// StorageBackend stores backbone record blobs keyed by record ID and kind.
type StorageBackend interface {
	// Fetch retrieves a record blob by ID and kind.
	Fetch(ctx context.Context, id string, kind RecordKind) ([]byte, error)

	// Store saves a record blob under the given ID and kind.
	Store(ctx context.Context, id string, data []byte, kind RecordKind) error

	// Available checks if the backend is accessible.
	Available(ctx context.Context) bool

	// Name returns a short backend identifier for logging.
	Name() string

	// LocationURI returns the URI this backend was created from.
	LocationURI() string
}
