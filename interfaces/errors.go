package interfaces

import "fmt"

// ResolutionError is a typed failure with a stable machine-readable code and
// a user-facing message. Errors compare by code via errors.Is, so callers can
// match conditions without depending on message text. An optional cause is
// preserved for diagnostics and reachable through Unwrap.
type ResolutionError struct {
	Code    string
	Message string
	cause   error
}

// NewResolutionError creates an error condition with the given code and
// user-facing message.
func NewResolutionError(code, message string) *ResolutionError {
	return &ResolutionError{Code: code, Message: message}
}

// Error returns the code and message, plus the cause when present.
func (e *ResolutionError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *ResolutionError) Unwrap() error {
	return e.cause
}

// Is matches resolution errors by code.
func (e *ResolutionError) Is(target error) bool {
	t, ok := target.(*ResolutionError)
	return ok && t.Code == e.Code
}

// WithCause returns a copy of the condition carrying an underlying cause.
// The original sentinel is never mutated.
func (e *ResolutionError) WithCause(cause error) *ResolutionError {
	return &ResolutionError{Code: e.Code, Message: e.Message, cause: cause}
}

var (
	// ErrWrongURL is returned for inputs that are not http, https or idmesh URLs.
	ErrWrongURL = NewResolutionError(
		"error.resolution.wrongURL",
		"The given URL is in a wrong format.")

	// ErrWrongCode is returned for references whose namespace is unrecognized
	// or whose token content cannot be parsed.
	ErrWrongCode = NewResolutionError(
		"error.resolution.wrongCode",
		"The given code is in a wrong format.")

	// ErrInvalidReference is returned when the input does not decode into a
	// valid truncated reference.
	ErrInvalidReference = NewResolutionError(
		"error.resolution.invalidReference",
		"The given code does not contain a valid truncated reference.")

	// ErrNotSupportedTokenContent is returned when a retrieved item carries a
	// token where none is allowed (a token cannot resolve to a token).
	ErrNotSupportedTokenContent = NewResolutionError(
		"error.resolution.notSupportedTokenContent",
		"The scanned code is not supported in this context.")

	// ErrDeviceOnboardingNotAllowed is returned when a general-entry
	// resolution runs into device onboarding content. Onboarding must go
	// through its dedicated entry point.
	ErrDeviceOnboardingNotAllowed = NewResolutionError(
		"error.resolution.deviceOnboardingNotAllowed",
		"The token contains a device onboarding info, but this is not allowed in this context.")

	// ErrNoDeviceOnboardingCode is returned by the dedicated onboarding entry
	// point for anything that is not a device onboarding token.
	ErrNoDeviceOnboardingCode = NewResolutionError(
		"error.resolution.noDeviceOnboardingCode",
		"The scanned code does not contain a device onboarding info, but this scanner is only able to process device onboarding codes.")

	// ErrPasswordNotProvided signals that the user cancelled the password
	// prompt. Callers treat it as a benign no-op, not a failure.
	ErrPasswordNotProvided = NewResolutionError(
		"error.resolution.passwordNotProvided",
		"No password was provided.")

	// ErrRetryLimitReached is the password loop's safety valve.
	ErrRetryLimitReached = NewResolutionError(
		"error.resolution.passwordRetryLimitReached",
		"The maximum number of attempts to enter the password was reached.")

	// ErrNoAccountAvailable is returned when account selection fails for
	// environmental reasons. Carries the underlying cause when known.
	ErrNoAccountAvailable = NewResolutionError(
		"error.resolution.noAccountAvailable",
		"There is no account available for this action.")

	// ErrNoAccountForIdentity is returned when no local account matches the
	// reference's identity suffix.
	ErrNoAccountForIdentity = NewResolutionError(
		"error.resolution.noAccountForIdentity",
		"There is no account matching the given identity suffix.")

	// ErrRecordNotFound classifies fetch failures where the backbone has no
	// matching record. A wrong record password is deliberately
	// indistinguishable from a missing record.
	ErrRecordNotFound = NewResolutionError(
		"error.transport.recordNotFound",
		"The requested record was not found.")

	// ErrUnsupportedOperation is returned by the tier selector when the
	// operation is not in the legal set for the object kind.
	ErrUnsupportedOperation = NewResolutionError(
		"error.cryptotier.unsupportedOperation",
		"The requested operation is not supported for this object kind.")

	// ErrNoProviderAvailable is the tier selector's only fatal condition: no
	// provider exists for the resolved tier nor for the fallback tier.
	ErrNoProviderAvailable = NewResolutionError(
		"error.cryptotier.noProviderAvailable",
		"No crypto provider is available for the requested security tier or its fallback.")
)
