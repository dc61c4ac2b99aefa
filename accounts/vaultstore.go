package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/idmesh/reference-resolution-backend/interfaces"
)

// VaultStore keeps account records in a HashiCorp Vault KV v2 mount, for
// hosted deployments where accounts must not live on the local disk.
//
// Layout under the mount: <dataPath>/accounts/<id> holds one account record,
// <dataPath>/active holds the active selection.
type VaultStore struct {
	client    *vaultapi.Client
	mountPath string
	dataPath  string
	log       *slog.Logger
}

// NewVaultStore creates a Vault-backed account store.
func NewVaultStore(address, token, mountPath, dataPath string, log *slog.Logger) (*VaultStore, error) {
	if log == nil {
		log = slog.Default()
	}

	config := vaultapi.DefaultConfig()
	config.Address = address

	client, err := vaultapi.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	client.SetToken(token)

	mountPath = strings.TrimSuffix(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultStore{
		client:    client,
		mountPath: mountPath,
		dataPath:  dataPath,
		log:       log,
	}, nil
}

// AccountsNotInDeletion lists all account records and filters out accounts
// marked for deletion.
func (s *VaultStore) AccountsNotInDeletion(ctx context.Context) ([]interfaces.AccountContext, error) {
	listPath := fmt.Sprintf("%s/metadata/%s/accounts", s.mountPath, s.dataPath)
	listing, err := s.client.Logical().ListWithContext(ctx, listPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts in Vault: %w", err)
	}
	if listing == nil || listing.Data == nil {
		return nil, nil
	}

	keys, ok := listing.Data["keys"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected Vault list response format")
	}

	accounts := make([]interfaces.AccountContext, 0, len(keys))
	for _, key := range keys {
		id, ok := key.(string)
		if !ok {
			continue
		}
		account, err := s.readAccount(ctx, id)
		if err != nil {
			s.log.Warn("Skipping unreadable account record",
				slog.String("account_id", id), "err", err)
			continue
		}
		if !account.InDeletion {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

// SetActiveAccount writes the active selection. Idempotent by construction:
// rewriting the same value has no observable effect.
func (s *VaultStore) SetActiveAccount(ctx context.Context, accountID string) error {
	path := fmt.Sprintf("%s/data/%s/active", s.mountPath, s.dataPath)
	_, err := s.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"data": map[string]interface{}{"accountId": accountID},
	})
	if err != nil {
		return fmt.Errorf("failed to write active account to Vault: %w", err)
	}
	return nil
}

func (s *VaultStore) readAccount(ctx context.Context, id string) (interfaces.AccountContext, error) {
	path := fmt.Sprintf("%s/data/%s/accounts/%s", s.mountPath, s.dataPath, id)
	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return interfaces.AccountContext{}, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return interfaces.AccountContext{}, fmt.Errorf("account record missing")
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return interfaces.AccountContext{}, fmt.Errorf("invalid data format in Vault response")
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return interfaces.AccountContext{}, err
	}

	var account interfaces.AccountContext
	if err := json.Unmarshal(encoded, &account); err != nil {
		return interfaces.AccountContext{}, fmt.Errorf("invalid account record: %w", err)
	}
	if account.ID == "" {
		account.ID = id
	}
	return account, nil
}
