// Package reference implements the compact truncated-reference codec and the
// namespace classifier for backbone object IDs.
package reference

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/idmesh/reference-resolution-backend/interfaces"
)

// codecVersion is the wire version of the truncated reference format.
const codecVersion = "1"

// Three-letter backbone ID prefixes per namespace.
const (
	PrefixFile                 = "FIL"
	PrefixRelationshipTemplate = "RLT"
	PrefixToken                = "TOK"
)

// Classify returns the namespace of a backbone object ID based on its
// three-letter prefix. Total function: unrecognized prefixes classify as
// NamespaceUnknown, never fail.
func Classify(id string) interfaces.Namespace {
	if len(id) < 3 {
		return interfaces.NamespaceUnknown
	}
	switch id[:3] {
	case PrefixFile:
		return interfaces.NamespaceFile
	case PrefixRelationshipTemplate:
		return interfaces.NamespaceRelationshipTemplate
	case PrefixToken:
		return interfaces.NamespaceToken
	default:
		return interfaces.NamespaceUnknown
	}
}

// Codec encodes and decodes truncated references. The wire form is the
// base64url (unpadded) encoding of pipe-separated fields:
//
//	version | object id | secret key (base64) | identity suffix | protection | location indicator
//
// where protection is empty, "pw", or "pin<digits>". The zero value is ready
// to use.
type Codec struct{}

// ParseReference decodes a truncated reference code.
// Returns interfaces.ErrInvalidReference for anything that does not decode
// into a structurally valid reference.
func (Codec) ParseReference(code string) (interfaces.ContentReference, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(code))
	if err != nil {
		return interfaces.ContentReference{}, interfaces.ErrInvalidReference.WithCause(err)
	}

	fields := strings.Split(string(raw), "|")
	if len(fields) != 6 || fields[0] != codecVersion {
		return interfaces.ContentReference{}, interfaces.ErrInvalidReference
	}

	secretKey, err := base64.StdEncoding.DecodeString(fields[2])
	if err != nil || len(secretKey) == 0 {
		return interfaces.ContentReference{}, interfaces.ErrInvalidReference.WithCause(err)
	}

	protection, err := parseProtection(fields[4], fields[5])
	if err != nil {
		return interfaces.ContentReference{}, interfaces.ErrInvalidReference.WithCause(err)
	}

	ref := interfaces.ContentReference{
		ID:             fields[1],
		SecretKey:      secretKey,
		IdentitySuffix: fields[3],
		Protection:     protection,
	}

	if err := ref.Validate(); err != nil {
		return interfaces.ContentReference{}, interfaces.ErrInvalidReference.WithCause(err)
	}

	return ref, nil
}

// Truncate encodes a reference back into its compact wire form.
func (Codec) Truncate(ref interfaces.ContentReference) string {
	protection := ""
	locationIndicator := ""
	if ref.Protection != nil {
		locationIndicator = ref.Protection.LocationIndicator
		switch ref.Protection.Kind {
		case interfaces.PasswordKindPIN:
			protection = fmt.Sprintf("pin%d", ref.Protection.DigitCount)
		default:
			protection = string(interfaces.PasswordKindFreeForm)
		}
	}

	fields := []string{
		codecVersion,
		ref.ID,
		base64.StdEncoding.EncodeToString(ref.SecretKey),
		ref.IdentitySuffix,
		protection,
		locationIndicator,
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strings.Join(fields, "|")))
}

// parseProtection interprets the protection field. An empty field means the
// referenced object is not password protected.
func parseProtection(field, locationIndicator string) (*interfaces.PasswordProtection, error) {
	if field == "" {
		if locationIndicator != "" {
			return nil, fmt.Errorf("location indicator without password protection")
		}
		return nil, nil
	}

	if field == string(interfaces.PasswordKindFreeForm) {
		return &interfaces.PasswordProtection{
			Kind:              interfaces.PasswordKindFreeForm,
			LocationIndicator: locationIndicator,
		}, nil
	}

	if digits, ok := strings.CutPrefix(field, string(interfaces.PasswordKindPIN)); ok {
		count, err := strconv.Atoi(digits)
		if err != nil {
			return nil, fmt.Errorf("invalid pin digit count %q: %w", digits, err)
		}
		protection := &interfaces.PasswordProtection{
			Kind:              interfaces.PasswordKindPIN,
			DigitCount:        count,
			LocationIndicator: locationIndicator,
		}
		return protection, protection.Validate()
	}

	return nil, fmt.Errorf("unknown password protection field %q", field)
}
