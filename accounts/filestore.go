package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/idmesh/reference-resolution-backend/interfaces"
)

// accountsFileName inside the store directory.
const accountsFileName = "accounts.json"

// accountsFile is the on-disk layout of the file store.
type accountsFile struct {
	Accounts      []interfaces.AccountContext `json:"accounts"`
	ActiveAccount string                      `json:"activeAccount,omitempty"`
}

// FileStore is a JSON-file-backed account store for on-device deployments.
type FileStore struct {
	path string
	mu   sync.Mutex
	log  *slog.Logger
}

// NewFileStore creates an account store in the given directory, creating the
// directory if needed.
func NewFileStore(baseDir string, log *slog.Logger) (*FileStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create account store directory: %w", err)
	}
	return &FileStore{path: filepath.Join(baseDir, accountsFileName), log: log}, nil
}

// AccountsNotInDeletion returns a snapshot of all accounts not marked for
// deletion.
func (s *FileStore) AccountsNotInDeletion(_ context.Context) ([]interfaces.AccountContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return nil, err
	}

	candidates := make([]interfaces.AccountContext, 0, len(state.Accounts))
	for _, account := range state.Accounts {
		if !account.InDeletion {
			candidates = append(candidates, account)
		}
	}
	return candidates, nil
}

// SetActiveAccount marks the given account as the active selection.
// Re-selecting the already active account is a no-op.
func (s *FileStore) SetActiveAccount(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	if state.ActiveAccount == accountID {
		return nil
	}

	found := false
	for _, account := range state.Accounts {
		if account.ID == accountID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("unknown account: %s", accountID)
	}

	state.ActiveAccount = accountID
	return s.save(state)
}

// Add creates a new local account record for the given address.
func (s *FileStore) Add(_ context.Context, address string) (interfaces.AccountContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return interfaces.AccountContext{}, err
	}

	account := interfaces.AccountContext{
		ID:      uuid.New().String(),
		Address: address,
	}
	state.Accounts = append(state.Accounts, account)

	if err := s.save(state); err != nil {
		return interfaces.AccountContext{}, err
	}

	s.log.Info("Added local account",
		slog.String("account_id", account.ID),
		slog.String("address", address))
	return account, nil
}

func (s *FileStore) load() (*accountsFile, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &accountsFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account store: %w", err)
	}

	var state accountsFile
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse account store: %w", err)
	}
	return &state, nil
}

func (s *FileStore) save(state *accountsFile) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode account store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write account store: %w", err)
	}
	return nil
}
