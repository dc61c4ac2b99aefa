package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/idmesh/reference-resolution-backend/interfaces"
)

// MultiStorageBackend implements interfaces.StorageBackend over multiple
// backends with fallback. Fetches return the first hit; stores go to every
// available backend.
type MultiStorageBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger
}

// NewMultiStorageBackend creates a multi-storage backend with fallback.
func NewMultiStorageBackend(backends []interfaces.StorageBackend, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// Fetch tries each available backend in order and returns the first hit.
// A uniform miss across all backends surfaces as ErrBlobNotFound; other
// failures are aggregated.
func (m *MultiStorageBackend) Fetch(ctx context.Context, id string, kind interfaces.RecordKind) ([]byte, error) {
	start := time.Now()
	var errs []error
	allMisses := true
	available := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable",
				slog.String("backend_name", backend.Name()),
				slog.String("record_id", id))
			continue
		}
		available++

		data, err := backend.Fetch(ctx, id, kind)
		if err == nil {
			m.log.Debug("Fetched record",
				slog.String("backend_name", backend.Name()),
				slog.String("record_id", id),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		if !errors.Is(err, interfaces.ErrBlobNotFound) {
			allMisses = false
		}
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			slog.String("record_id", id),
			"err", err)
	}

	if available == 0 {
		m.log.Error("No backend available to fetch record", slog.String("record_id", id))
		return nil, fmt.Errorf("fetching %s: %w", id, interfaces.ErrBackendUnavailable)
	}

	if allMisses {
		return nil, interfaces.ErrBlobNotFound
	}

	m.log.Error("All backends failed to fetch record",
		slog.String("record_id", id),
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	return nil, fmt.Errorf("all backends failed to fetch %s: %v", id, errs)
}

// Store saves the record to all available backends. Success on at least one
// backend counts as success.
func (m *MultiStorageBackend) Store(ctx context.Context, id string, data []byte, kind interfaces.RecordKind) error {
	start := time.Now()
	var success bool
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		if err := backend.Store(ctx, id, data, kind); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Debug("Failed to store to backend",
				slog.String("backend_name", backend.Name()),
				"err", err)
			continue
		}

		if !success {
			success = true
			m.log.Debug("Stored record",
				slog.String("backend_name", backend.Name()),
				slog.String("record_id", id),
				slog.Duration("duration", time.Since(start)))
		}
	}

	if !success {
		m.log.Error("All backends failed to store record",
			slog.String("record_id", id),
			slog.Int("failed_backends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		return fmt.Errorf("all backends failed to store %s: %v", id, errs)
	}

	return nil
}

// Available checks if any backend is available.
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the backend identifier for logging.
func (m *MultiStorageBackend) Name() string {
	names := make([]string, 0, len(m.backends))
	for _, backend := range m.backends {
		names = append(names, backend.Name())
	}
	return fmt.Sprintf("multi(%s)", strings.Join(names, ","))
}

// LocationURI returns the aggregated URIs of all backends.
func (m *MultiStorageBackend) LocationURI() string {
	uris := make([]string, 0, len(m.backends))
	for _, backend := range m.backends {
		uris = append(uris, backend.LocationURI())
	}
	return strings.Join(uris, ",")
}
