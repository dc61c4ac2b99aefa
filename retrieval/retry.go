// Package retrieval implements the bounded interactive retry protocol for
// password-protected fetches. It distinguishes "wrong secret, retry" from
// "unrecoverable failure, abort" and never masks unrelated errors as
// retryable.
package retrieval

import (
	"context"
	"errors"

	"github.com/idmesh/reference-resolution-backend/interfaces"
)

// MaxAttempts bounds the interactive loop. The limit guards against a
// misbehaving prompt capability while being effectively unlimited for a human
// typing guesses.
const MaxAttempts = 1000

// Outcome is a successful password-protected fetch. The password that worked
// is retained so the caller can reuse it for a follow-up fetch in the same
// session without prompting again.
type Outcome[T any] struct {
	Value    T
	Password string
}

// Fetch runs fetchFn with passwords obtained interactively until it succeeds,
// the user cancels, an unrelated error occurs, or MaxAttempts is exhausted.
//
// Outcomes:
//   - prompt cancelled or failed: interfaces.ErrPasswordNotProvided (benign,
//     callers treat it as a deliberate user action)
//   - fetchFn fails with interfaces.ErrRecordNotFound: next attempt
//   - fetchFn fails otherwise: that error, propagated verbatim
//   - all attempts exhausted: interfaces.ErrRetryLimitReached
//
// The loop is an explicit counted iteration so stack use stays constant
// regardless of the attempt bound. Context cancellation aborts at the next
// prompt.
func Fetch[T any](
	ctx context.Context,
	prompter interfaces.PasswordPrompter,
	protection *interfaces.PasswordProtection,
	fetchFn func(ctx context.Context, password string) (T, error),
) (Outcome[T], error) {
	var zero Outcome[T]

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		password, ok, err := prompter.EnterPassword(ctx, interfaces.PasswordRequest{
			Kind:              protection.Kind,
			DigitCount:        protection.DigitCount,
			Attempt:           attempt,
			LocationIndicator: protection.LocationIndicator,
		})
		if err != nil || !ok {
			return zero, interfaces.ErrPasswordNotProvided
		}

		value, err := fetchFn(ctx, password)
		if err == nil {
			return Outcome[T]{Value: value, Password: password}, nil
		}
		if errors.Is(err, interfaces.ErrRecordNotFound) {
			continue
		}
		return zero, err
	}

	return zero, interfaces.ErrRetryLimitReached
}
