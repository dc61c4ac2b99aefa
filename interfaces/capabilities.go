package interfaces

import "context"

// ReferenceParser decodes a compact truncated reference from user input.
// Implemented by the reference codec; injected so the dispatcher stays
// independent of the encoding.
type ReferenceParser interface {
	// ParseReference decodes the given code. Returns ErrInvalidReference
	// when the input is not a valid truncated reference.
	ParseReference(code string) (ContentReference, error)
}

// AnonymousTokenService fetches tokens from the backbone without an account
// context. A password must be supplied for password-protected tokens; a wrong
// password surfaces as ErrRecordNotFound.
type AnonymousTokenService interface {
	LoadPeerToken(ctx context.Context, ref ContentReference, password string) (*TokenPayload, error)
}

// AccountTransport is an account's own retrieval capability.
type AccountTransport interface {
	// LoadItemFromReference loads the referenced item within the account
	// scope. Password semantics match AnonymousTokenService.
	LoadItemFromReference(ctx context.Context, ref ContentReference, password string) (*AccountItem, error)
}

// SessionProvider hands out the transport capability for a local account.
type SessionProvider interface {
	ServicesFor(ctx context.Context, accountID string) (AccountTransport, error)
}

// AccountStore provides read access to the local account set plus the single
// mutation this core performs: marking the session's active account.
type AccountStore interface {
	// AccountsNotInDeletion returns a fresh snapshot of candidate accounts.
	AccountsNotInDeletion(ctx context.Context) ([]AccountContext, error)

	// SetActiveAccount marks the account as the active selection for the
	// session. Idempotent: repeating the same selection is a no-op.
	SetActiveAccount(ctx context.Context, accountID string) error
}

// PasswordRequest carries everything the interactive prompt needs to ask the
// user for a shared password.
type PasswordRequest struct {
	// Kind of secret to ask for.
	Kind PasswordProtectionKind

	// DigitCount is the PIN length for PasswordKindPIN, zero otherwise.
	DigitCount int

	// Attempt is the 1-based attempt number, for prompt messaging.
	Attempt int

	// LocationIndicator hints where the password was shared.
	LocationIndicator string
}

// PasswordPrompter is the interactive capability that obtains a shared
// password from the user.
type PasswordPrompter interface {
	// EnterPassword prompts for a password. The second return value is false
	// when the user cancelled; cancellation is an outcome, not an error.
	EnterPassword(ctx context.Context, req PasswordRequest) (string, bool, error)
}

// AccountSelector is the interactive capability that lets the user pick an
// account from a candidate list.
type AccountSelector interface {
	// RequestAccountSelection returns the chosen account, or nil when the
	// user cancelled. Errors indicate the interaction itself failed.
	RequestAccountSelection(ctx context.Context, candidates []AccountContext, title, description string) (*AccountContext, error)
}

// UIBridge aggregates every interactive capability the dispatcher consumes,
// including the terminal handoffs for resolved objects.
type UIBridge interface {
	PasswordPrompter
	AccountSelector

	// ShowFile displays a resolved file to the user.
	ShowFile(ctx context.Context, account AccountContext, file *FileRecord) error

	// ShowDeviceOnboarding surfaces a device onboarding secret.
	ShowDeviceOnboarding(ctx context.Context, info *DeviceOnboardingInfo) error
}
