package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/idmesh/reference-resolution-backend/interfaces"
)

// VaultBackend implements a record storage backend using HashiCorp Vault's
// KV v2 secrets engine.
type VaultBackend struct {
	client      *vaultapi.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultBackend creates a Vault record storage backend.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - token: Vault token for authentication
//   - mountPath: Vault KV v2 mount path (e.g. "secret")
//   - dataPath: path within the mount (e.g. "backbone")
//   - log: structured logger for operational insights
func NewVaultBackend(address, token, mountPath, dataPath string, log *slog.Logger) (*VaultBackend, error) {
	config := vaultapi.DefaultConfig()
	config.Address = address

	client, err := vaultapi.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	client.SetToken(token)

	mountPath = strings.TrimSuffix(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultBackend{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", address, mountPath, dataPath),
	}, nil
}

// Fetch retrieves a record blob from Vault by its ID and kind.
// Uses the KV v2 API path structure.
func (b *VaultBackend) Fetch(ctx context.Context, id string, kind interfaces.RecordKind) ([]byte, error) {
	start := time.Now()
	path := b.getSecretPath(id, kind)

	secret, err := b.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		b.log.Error("Failed to read from Vault",
			slog.String("path", path),
			slog.String("record_id", id),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	if secret == nil || secret.Data == nil {
		b.log.Debug("Record not found in Vault",
			slog.String("path", path),
			slog.String("record_id", id))
		return nil, interfaces.ErrBlobNotFound
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response")
	}

	content, ok := data["content"].(string)
	if !ok {
		return nil, fmt.Errorf("content key not found in Vault data")
	}

	decoded, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("invalid content encoding in Vault data: %w", err)
	}

	b.log.Debug("Fetched record from Vault",
		slog.String("path", path),
		slog.Int("size", len(decoded)),
		slog.Duration("duration", time.Since(start)))

	return decoded, nil
}

// Store saves a record blob to Vault under its ID and kind.
func (b *VaultBackend) Store(ctx context.Context, id string, data []byte, kind interfaces.RecordKind) error {
	path := b.getSecretPath(id, kind)

	_, err := b.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"data": map[string]interface{}{
			"content": base64.StdEncoding.EncodeToString(data),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write record to Vault: %w", err)
	}

	b.log.Debug("Stored record to Vault",
		slog.String("path", path),
		slog.Int("size", len(data)))
	return nil
}

// Available checks if the Vault server is reachable, initialized and
// unsealed.
func (b *VaultBackend) Available(ctx context.Context) bool {
	health, err := b.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return false
	}
	return health.Initialized && !health.Sealed
}

// Name returns the backend identifier for logging.
func (b *VaultBackend) Name() string {
	return "vault"
}

// LocationURI returns the URI this backend was created from.
func (b *VaultBackend) LocationURI() string {
	return b.locationURI
}

func (b *VaultBackend) getSecretPath(id string, kind interfaces.RecordKind) string {
	return fmt.Sprintf("%s/data/%s/%s/%s", b.mountPath, b.dataPath, kind.String(), id)
}
