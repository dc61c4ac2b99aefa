// Package resolver implements the resolution dispatcher: the state machine
// that turns a scanned content reference into a concrete resolved object,
// enforcing account scoping and password protection along the way.
//
// Two entry points exist. The general entry (ProcessURL / ProcessReference)
// resolves files, relationship templates and generic tokens, and rejects
// device onboarding content. The dedicated onboarding entry
// (ProcessDeviceOnboardingReference) is a narrower machine with the inverted
// default: it rejects everything except device onboarding tokens. The
// duplication is intentional; a mistaken or malicious code must never fall
// into an onboarding flow implicitly.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/idmesh/reference-resolution-backend/interfaces"
	"github.com/idmesh/reference-resolution-backend/reference"
	"github.com/idmesh/reference-resolution-backend/retrieval"
)

// AccountResolver selects a local account context from an identity-suffix
// hint. A nil account with nil error means the user cancelled.
type AccountResolver interface {
	Resolve(ctx context.Context, identitySuffix string) (*interfaces.AccountContext, error)
}

// Dispatcher is the top-level resolution state machine. All external effects
// go through the injected capabilities; the dispatcher itself holds no
// mutable state, so concurrent resolutions are safe.
type Dispatcher struct {
	parser    interfaces.ReferenceParser
	anonymous interfaces.AnonymousTokenService
	sessions  interfaces.SessionProvider
	accounts  AccountResolver
	bridge    interfaces.UIBridge
	log       *slog.Logger
}

// New creates a dispatcher over the given collaborator capabilities.
func New(
	parser interfaces.ReferenceParser,
	anonymous interfaces.AnonymousTokenService,
	sessions interfaces.SessionProvider,
	accounts AccountResolver,
	bridge interfaces.UIBridge,
	log *slog.Logger,
) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		parser:    parser,
		anonymous: anonymous,
		sessions:  sessions,
		accounts:  accounts,
		bridge:    bridge,
		log:       log,
	}
}

// allowedURLSchemes for ProcessURL input.
var allowedURLSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"idmesh": true,
}

// ProcessURL resolves a reference carried in a URL. The truncated reference
// is expected in the URL fragment, or failing that in the last path segment
// (for idmesh: URLs the opaque part).
func (d *Dispatcher) ProcessURL(ctx context.Context, rawURL string, account *interfaces.AccountContext) (*interfaces.ResolvedObject, error) {
	rawURL = strings.TrimSpace(rawURL)

	parsed, err := url.Parse(rawURL)
	if err != nil || !allowedURLSchemes[parsed.Scheme] {
		return nil, interfaces.ErrWrongURL
	}

	code := parsed.Fragment
	if code == "" {
		if parsed.Opaque != "" {
			code = parsed.Opaque
		} else if trimmed := strings.Trim(parsed.Path, "/"); trimmed != "" {
			segments := strings.Split(trimmed, "/")
			code = segments[len(segments)-1]
		} else {
			code = parsed.Host
		}
	}

	return d.ProcessReference(ctx, code, account)
}

// ProcessReference resolves a truncated reference code. When account is
// non-nil the account-binding step is skipped and the reference is resolved
// directly within that account's scope.
//
// A nil ResolvedObject with nil error means the user cancelled somewhere
// along the way and nothing remains to do.
func (d *Dispatcher) ProcessReference(ctx context.Context, code string, account *interfaces.AccountContext) (*interfaces.ResolvedObject, error) {
	ref, err := d.parser.ParseReference(code)
	if err != nil {
		return nil, interfaces.ErrInvalidReference
	}
	return d.processReference(ctx, ref, account)
}

func (d *Dispatcher) processReference(ctx context.Context, ref interfaces.ContentReference, account *interfaces.AccountContext) (*interfaces.ResolvedObject, error) {
	if account != nil {
		return d.handleWithAccount(ctx, ref, *account, "")
	}

	switch reference.Classify(ref.ID) {
	case interfaces.NamespaceFile, interfaces.NamespaceRelationshipTemplate:
		selected, err := d.accounts.Resolve(ctx, ref.IdentitySuffix)
		if err != nil {
			d.log.Info("Could not resolve account for reference", "err", err)
			return nil, err
		}
		if selected == nil {
			d.log.Info("User cancelled account selection")
			return nil, nil
		}
		return d.handleWithAccount(ctx, ref, *selected, "")

	case interfaces.NamespaceToken:
		return d.handleToken(ctx, ref)

	default:
		return nil, interfaces.ErrWrongCode
	}
}

// handleToken drives the anonymous token flow of the general entry point:
// fetch the token without an account, parse its nested content, then bind an
// account for the follow-up fetch.
func (d *Dispatcher) handleToken(ctx context.Context, ref interfaces.ContentReference) (*interfaces.ResolvedObject, error) {
	token, tokenPassword, err := d.fetchToken(ctx, ref)
	if errors.Is(err, interfaces.ErrPasswordNotProvided) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	content, err := reference.ParseTokenContent(token.Content)
	if err != nil {
		d.log.Info("Could not parse token content", "err", err)
		return nil, interfaces.ErrWrongCode
	}

	if content.DeviceSharedSecret != nil {
		// Device onboarding must be requested through the dedicated entry
		// point, never fallen into from a general scan.
		return nil, interfaces.ErrDeviceOnboardingNotAllowed
	}

	if content.RelationshipTemplate == nil {
		d.log.Info("Token content type is not supported here",
			slog.String("content_type", content.Type))
		return &interfaces.ResolvedObject{
			Kind:  interfaces.ResolvedUnsupportedToken,
			Token: token,
		}, nil
	}

	identitySuffix := content.RelationshipTemplate.ForIdentity
	if identitySuffix == "" {
		identitySuffix = ref.IdentitySuffix
	}

	selected, err := d.accounts.Resolve(ctx, identitySuffix)
	if err != nil {
		return nil, err
	}
	if selected == nil {
		d.log.Info("User cancelled account selection")
		return nil, nil
	}

	// The follow-up fetch targets the template the token wraps, under the
	// template's own protection. The token's password is offered for reuse;
	// handleWithAccount applies it only when the template is unprotected.
	templateRef := interfaces.ContentReference{
		ID:             content.RelationshipTemplate.TemplateID,
		SecretKey:      content.RelationshipTemplate.SecretKey,
		IdentitySuffix: identitySuffix,
		Protection:     content.RelationshipTemplate.Protection,
	}
	return d.handleWithAccount(ctx, templateRef, *selected, tokenPassword)
}

// fetchToken loads the token anonymously, through the password retry loop
// when the reference is password protected. The returned password is the one
// that worked, for reuse in the follow-up account-scoped fetch.
func (d *Dispatcher) fetchToken(ctx context.Context, ref interfaces.ContentReference) (*interfaces.TokenPayload, string, error) {
	if ref.Protection == nil {
		token, err := d.anonymous.LoadPeerToken(ctx, ref, "")
		return token, "", err
	}

	outcome, err := retrieval.Fetch(ctx, d.bridge, ref.Protection,
		func(ctx context.Context, password string) (*interfaces.TokenPayload, error) {
			return d.anonymous.LoadPeerToken(ctx, ref, password)
		})
	if err != nil {
		return nil, "", err
	}
	return outcome.Value, outcome.Password, nil
}

// handleWithAccount loads the referenced item through the account's own
// retrieval capability and dispatches on the item's declared kind.
//
// existingPassword is a password already obtained during a token-unwrap step
// of the same resolution. It is reused only when the reference itself carries
// no password protection; when it does, the protections are independent
// contexts and a fresh retry loop runs.
func (d *Dispatcher) handleWithAccount(ctx context.Context, ref interfaces.ContentReference, account interfaces.AccountContext, existingPassword string) (*interfaces.ResolvedObject, error) {
	transport, err := d.sessions.ServicesFor(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	var item *interfaces.AccountItem
	if ref.Protection != nil {
		outcome, err := retrieval.Fetch(ctx, d.bridge, ref.Protection,
			func(ctx context.Context, password string) (*interfaces.AccountItem, error) {
				return transport.LoadItemFromReference(ctx, ref, password)
			})
		if errors.Is(err, interfaces.ErrPasswordNotProvided) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		item = outcome.Value
	} else {
		item, err = transport.LoadItemFromReference(ctx, ref, existingPassword)
		if err != nil {
			return nil, err
		}
	}

	if err := item.Validate(); err != nil {
		return nil, interfaces.ErrWrongCode.WithCause(err)
	}

	switch item.Kind {
	case interfaces.ItemKindFile:
		if err := d.bridge.ShowFile(ctx, account, item.File); err != nil {
			return nil, err
		}
		return &interfaces.ResolvedObject{
			Kind:    interfaces.ResolvedFile,
			Account: &account,
			File:    item.File,
		}, nil

	case interfaces.ItemKindRelationshipTemplate:
		// Relationship templates are processed by the request-processing
		// collaborator, which observes them independently. Hand the result
		// back without further action.
		return &interfaces.ResolvedObject{
			Kind:                 interfaces.ResolvedRelationshipTemplate,
			Account:              &account,
			RelationshipTemplate: item.RelationshipTemplate,
		}, nil

	case interfaces.ItemKindToken:
		return nil, interfaces.ErrNotSupportedTokenContent

	case interfaces.ItemKindDeviceOnboardingInfo:
		return nil, interfaces.ErrDeviceOnboardingNotAllowed

	default:
		return nil, interfaces.ErrWrongCode
	}
}

// ProcessDeviceOnboardingReference is the dedicated entry point for device
// onboarding codes. It accepts only token references whose content is a
// device shared secret and hands the secret to the onboarding handler.
func (d *Dispatcher) ProcessDeviceOnboardingReference(ctx context.Context, code string) (*interfaces.ResolvedObject, error) {
	ref, err := d.parser.ParseReference(strings.TrimSpace(code))
	if err != nil {
		return nil, interfaces.ErrInvalidReference
	}

	if reference.Classify(ref.ID) != interfaces.NamespaceToken {
		return nil, interfaces.ErrNoDeviceOnboardingCode
	}

	token, _, err := d.fetchToken(ctx, ref)
	if errors.Is(err, interfaces.ErrPasswordNotProvided) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	content, err := reference.ParseTokenContent(token.Content)
	if err != nil || content.DeviceSharedSecret == nil {
		return nil, interfaces.ErrNoDeviceOnboardingCode
	}

	if err := d.bridge.ShowDeviceOnboarding(ctx, content.DeviceSharedSecret); err != nil {
		return nil, err
	}
	return &interfaces.ResolvedObject{
		Kind:             interfaces.ResolvedDeviceOnboarding,
		DeviceOnboarding: content.DeviceSharedSecret,
	}, nil
}
