// Package interfaces defines the core types and collaborator capabilities for
// the reference resolution system. It provides the contract between components
// without implementation details.
package interfaces

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Namespace identifies the kind of backbone object a reference points to,
// derived from the three-letter prefix of the object ID.
type Namespace int

const (
	// NamespaceUnknown is any prefix outside the recognized set.
	NamespaceUnknown Namespace = iota
	// NamespaceFile for shared files (prefix FIL).
	NamespaceFile
	// NamespaceRelationshipTemplate for relationship invitations (prefix RLT).
	NamespaceRelationshipTemplate
	// NamespaceToken for generic tokens (prefix TOK).
	NamespaceToken
)

// String returns the namespace name.
func (n Namespace) String() string {
	switch n {
	case NamespaceFile:
		return "File"
	case NamespaceRelationshipTemplate:
		return "RelationshipTemplate"
	case NamespaceToken:
		return "Token"
	default:
		return "Unknown"
	}
}

// PasswordProtectionKind distinguishes free-form passwords from numeric PINs.
type PasswordProtectionKind string

const (
	// PasswordKindFreeForm is an arbitrary password.
	PasswordKindFreeForm PasswordProtectionKind = "pw"
	// PasswordKindPIN is a numeric PIN with a declared digit count.
	PasswordKindPIN PasswordProtectionKind = "pin"
)

// PasswordProtection describes how a shared object is password protected.
// It is carried inside references and token contents; the secret itself is
// never part of it.
type PasswordProtection struct {
	// Kind of secret the sender chose.
	Kind PasswordProtectionKind `json:"kind"`

	// DigitCount is the declared PIN length. Zero for free-form passwords.
	DigitCount int `json:"digitCount,omitempty"`

	// LocationIndicator hints where the sender communicated the password
	// (e.g. "letter", "sms"). Optional, display-only.
	LocationIndicator string `json:"locationIndicator,omitempty"`
}

// Validate checks the protection parameters for consistency.
func (p *PasswordProtection) Validate() error {
	switch p.Kind {
	case PasswordKindFreeForm:
		if p.DigitCount != 0 {
			return errors.New("free-form password protection must not declare a digit count")
		}
	case PasswordKindPIN:
		if p.DigitCount < 2 || p.DigitCount > 16 {
			return fmt.Errorf("pin digit count out of range: %d", p.DigitCount)
		}
	default:
		return fmt.Errorf("unknown password protection kind: %q", p.Kind)
	}
	return nil
}

// ContentReference is an immutable, shareable pointer to a remote encrypted
// object. It is produced by the reference codec and read-only afterwards.
type ContentReference struct {
	// ID is the backbone object identifier (three-letter prefix plus suffix).
	ID string

	// SecretKey decrypts the referenced object. Opaque to this layer.
	SecretKey []byte

	// IdentitySuffix is the last few characters of the account address the
	// reference was personalized for. Empty when not personalized.
	IdentitySuffix string

	// Protection is set when loading the object requires a shared password.
	Protection *PasswordProtection
}

// Validate checks structural validity of the reference.
func (r ContentReference) Validate() error {
	if len(r.ID) < 4 {
		return fmt.Errorf("reference id too short: %q", r.ID)
	}
	prefix := r.ID[:3]
	if strings.ToUpper(prefix) != prefix {
		return fmt.Errorf("reference id prefix must be upper case: %q", prefix)
	}
	if r.Protection != nil {
		return r.Protection.Validate()
	}
	return nil
}

// AccountContext is a snapshot of a local account record. Owned by the
// account store; this core only reads it.
type AccountContext struct {
	// ID is the local account identifier.
	ID string `json:"id"`

	// Address is the account's public identity string.
	Address string `json:"address"`

	// InDeletion marks accounts excluded from candidate selection.
	InDeletion bool `json:"inDeletion,omitempty"`
}

// TokenPayload is a token fetched from the backbone, with its decrypted
// content still unparsed.
type TokenPayload struct {
	ID        string          `json:"id"`
	CreatedBy string          `json:"createdBy,omitempty"`
	Content   json.RawMessage `json:"content"`
}

// DeviceOnboardingInfo is the shared secret payload used to onboard a new
// device into an existing identity.
type DeviceOnboardingInfo struct {
	DeviceID     string `json:"deviceId"`
	Address      string `json:"address"`
	ProfileName  string `json:"profileName,omitempty"`
	SharedSecret []byte `json:"sharedSecret"`
}

// RelationshipTemplateReference is the nested content of a token that carries
// a relationship invitation.
type RelationshipTemplateReference struct {
	TemplateID  string              `json:"templateId"`
	SecretKey   []byte              `json:"secretKey"`
	ForIdentity string              `json:"forIdentity,omitempty"`
	Protection  *PasswordProtection `json:"passwordProtection,omitempty"`
}

// FileRecord is a shared file after account-scoped retrieval, expanded with
// its content for display.
type FileRecord struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MimeType string `json:"mimetype"`
	Filesize int64  `json:"filesize"`
	Title    string `json:"title,omitempty"`
	Content  []byte `json:"content,omitempty"`
}

// RelationshipTemplate is a relationship invitation after account-scoped
// retrieval. Its content is handled by the request-processing collaborator,
// not by this core.
type RelationshipTemplate struct {
	ID        string          `json:"id"`
	CreatedBy string          `json:"createdBy,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

// ItemKind is the declared kind of an account-scoped retrieval result.
type ItemKind string

const (
	ItemKindFile                 ItemKind = "File"
	ItemKindRelationshipTemplate ItemKind = "RelationshipTemplate"
	ItemKindToken                ItemKind = "Token"
	ItemKindDeviceOnboardingInfo ItemKind = "DeviceOnboardingInfo"
)

// AccountItem is the tagged result of loading a reference through an
// account's retrieval capability. Exactly one value field matches Kind.
type AccountItem struct {
	Kind                 ItemKind              `json:"type"`
	File                 *FileRecord           `json:"file,omitempty"`
	RelationshipTemplate *RelationshipTemplate `json:"relationshipTemplate,omitempty"`
	Token                *TokenPayload         `json:"token,omitempty"`
	DeviceOnboarding     *DeviceOnboardingInfo `json:"deviceOnboarding,omitempty"`
}

// Validate checks that the value field declared by Kind is populated.
// Unknown kinds pass; callers decide how to surface them.
func (i AccountItem) Validate() error {
	var missing bool
	switch i.Kind {
	case ItemKindFile:
		missing = i.File == nil
	case ItemKindRelationshipTemplate:
		missing = i.RelationshipTemplate == nil
	case ItemKindToken:
		missing = i.Token == nil
	case ItemKindDeviceOnboardingInfo:
		missing = i.DeviceOnboarding == nil
	}
	if missing {
		return fmt.Errorf("item of kind %s has no %s value", i.Kind, i.Kind)
	}
	return nil
}

// ResolvedKind tags the terminal output of a dispatch.
type ResolvedKind string

const (
	ResolvedFile                 ResolvedKind = "File"
	ResolvedRelationshipTemplate ResolvedKind = "RelationshipTemplateHandoff"
	ResolvedDeviceOnboarding     ResolvedKind = "DeviceOnboardingSecret"
	ResolvedUnsupportedToken     ResolvedKind = "UnsupportedToken"
)

// ResolvedObject is the terminal output of reference dispatch. Exactly one
// variant field is populated, matching Kind. A nil *ResolvedObject from the
// dispatcher means the user cancelled and nothing was resolved.
type ResolvedObject struct {
	Kind ResolvedKind

	// Account the object was resolved under, when account-scoped.
	Account *AccountContext

	File                 *FileRecord
	RelationshipTemplate *RelationshipTemplate
	DeviceOnboarding     *DeviceOnboardingInfo

	// Token holds the raw payload for the UnsupportedToken variant, so
	// unrecognized content surfaces instead of being silently dropped.
	Token *TokenPayload
}
