// Package accounts implements local account selection for reference
// resolution, plus file- and Vault-backed implementations of the account
// store.
package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/idmesh/reference-resolution-backend/interfaces"
)

// Prompt titles stay i18n keys; localization happens in the UI layer.
const (
	selectionTitle       = "i18n://uibridge.accountSelection.title"
	selectionDescription = "i18n://uibridge.accountSelection.description"
)

// Resolver chooses a local account context from an optional identity-suffix
// hint, deferring to manual user selection when ambiguous or absent.
type Resolver struct {
	store    interfaces.AccountStore
	selector interfaces.AccountSelector
	log      *slog.Logger
}

// NewResolver creates an account resolver over the given store and
// interactive selector.
func NewResolver(store interfaces.AccountStore, selector interfaces.AccountSelector, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{store: store, selector: selector, log: log}
}

// Resolve picks an account from the live set of non-deleted accounts.
//
// Without a hint the choice is ambiguous by construction and always defers to
// manual selection. With a hint, accounts whose address ends with the hint
// are filtered: zero matches fail with ErrNoAccountForIdentity, exactly one
// auto-selects without interaction, and more than one defers to manual
// selection (the full address was not available at reference creation time,
// so a suffix collision cannot be disambiguated algorithmically).
//
// A nil account with nil error means the user cancelled.
func (r *Resolver) Resolve(ctx context.Context, identitySuffix string) (*interfaces.AccountContext, error) {
	candidates, err := r.store.AccountsNotInDeletion(ctx)
	if err != nil {
		return nil, interfaces.ErrNoAccountAvailable.WithCause(err)
	}

	if identitySuffix == "" {
		return r.requestManualSelection(ctx, candidates)
	}

	matching := make([]interfaces.AccountContext, 0, 1)
	for _, account := range candidates {
		if strings.HasSuffix(account.Address, identitySuffix) {
			matching = append(matching, account)
		}
	}

	switch len(matching) {
	case 0:
		return nil, interfaces.ErrNoAccountForIdentity
	case 1:
		return &matching[0], nil
	default:
		// Address-suffix collision between accounts. The user has to decide.
		r.log.Debug("Multiple accounts match identity suffix",
			slog.String("suffix", identitySuffix),
			slog.Int("matches", len(matching)))
		return r.requestManualSelection(ctx, matching)
	}
}

// requestManualSelection delegates to the interactive selector and, on a
// successful choice, marks the account active in the store.
func (r *Resolver) requestManualSelection(ctx context.Context, candidates []interfaces.AccountContext) (*interfaces.AccountContext, error) {
	chosen, err := r.selector.RequestAccountSelection(ctx, candidates, selectionTitle, selectionDescription)
	if err != nil {
		return nil, interfaces.ErrNoAccountAvailable.WithCause(err)
	}
	if chosen == nil {
		return nil, nil
	}

	if err := r.store.SetActiveAccount(ctx, chosen.ID); err != nil {
		return nil, fmt.Errorf("failed to mark account %s active: %w", chosen.ID, err)
	}
	return chosen, nil
}
