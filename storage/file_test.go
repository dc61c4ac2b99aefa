package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idmesh/reference-resolution-backend/interfaces"
)

func TestFileBackendRoundtrip(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.True(t, backend.Available(ctx))

	require.NoError(t, backend.Store(ctx, "TOKabcdef123", []byte("token-record"), interfaces.RecordToken))
	data, err := backend.Fetch(ctx, "TOKabcdef123", interfaces.RecordToken)
	require.NoError(t, err)
	assert.Equal(t, []byte("token-record"), data)

	// Record kinds are separate namespaces.
	_, err = backend.Fetch(ctx, "TOKabcdef123", interfaces.RecordFile)
	assert.ErrorIs(t, err, interfaces.ErrBlobNotFound)
}

func TestFileBackendMissingRecord(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = backend.Fetch(context.Background(), "TOKmissing", interfaces.RecordToken)
	assert.ErrorIs(t, err, interfaces.ErrBlobNotFound)
}

func TestFileBackendRejectsPathTraversal(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []string{"", "../escape", "a/b", `a\b`, "a.b"} {
		_, err := backend.Fetch(ctx, id, interfaces.RecordToken)
		assert.Error(t, err, "id %q must be rejected", id)
		assert.NotErrorIs(t, err, interfaces.ErrBlobNotFound)

		assert.Error(t, backend.Store(ctx, id, []byte("x"), interfaces.RecordToken))
	}
}

func TestStorageBackendFactory(t *testing.T) {
	factory := NewStorageBackendFactory(nil)

	t.Run("file backend", func(t *testing.T) {
		backend, err := factory.StorageBackendFor("file://" + t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "file", backend.Name())
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		_, err := factory.StorageBackendFor("gopher://example.com/records")
		assert.Error(t, err)
	})

	t.Run("vault uri without data path", func(t *testing.T) {
		_, err := factory.StorageBackendFor("vault://token@127.0.0.1:8200/secretonly")
		assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
	})

	t.Run("multi backend requires at least one valid uri", func(t *testing.T) {
		_, err := factory.CreateMultiBackend([]string{"gopher://bad", "also-bad"})
		assert.Error(t, err)
	})

	t.Run("multi backend skips broken uris", func(t *testing.T) {
		backend, err := factory.CreateMultiBackend([]string{"gopher://bad", "file://" + t.TempDir()})
		require.NoError(t, err)
		assert.Contains(t, backend.Name(), "file")
	})
}
