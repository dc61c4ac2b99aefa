package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/idmesh/reference-resolution-backend/cryptoutils"
	"github.com/idmesh/reference-resolution-backend/interfaces"
)

// RecordEnvelope is the stored form of a backbone record. Password-protected
// records keep their payload sealed under the shared password; unprotected
// records carry it in the clear.
//
// Opening a protected envelope with a wrong password fails with
// interfaces.ErrRecordNotFound: a wrong password must be indistinguishable
// from a missing record to the client.
type RecordEnvelope struct {
	// Protection advertises how the record is protected. Nil for
	// unprotected records.
	Protection *interfaces.PasswordProtection `json:"passwordProtection,omitempty"`

	// Sealed holds the payload of protected records.
	Sealed *cryptoutils.SealedRecord `json:"sealed,omitempty"`

	// Payload holds the payload of unprotected records.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SealEnvelope wraps a record payload, sealing it when a password is set.
// Protection metadata must be provided exactly when a password is.
func SealEnvelope(payload json.RawMessage, password string, protection *interfaces.PasswordProtection) (*RecordEnvelope, error) {
	if (password == "") != (protection == nil) {
		return nil, errors.New("record password and protection metadata must be set together")
	}

	if password == "" {
		return &RecordEnvelope{Payload: payload}, nil
	}

	if err := protection.Validate(); err != nil {
		return nil, fmt.Errorf("invalid record protection: %w", err)
	}

	sealed, err := cryptoutils.SealRecord(password, payload)
	if err != nil {
		return nil, err
	}
	return &RecordEnvelope{Protection: protection, Sealed: sealed}, nil
}

// Open returns the record payload. For protected envelopes the supplied
// password must match; a missing or wrong password surfaces as
// interfaces.ErrRecordNotFound.
func (e *RecordEnvelope) Open(password string) (json.RawMessage, error) {
	if e.Sealed == nil {
		return e.Payload, nil
	}
	if password == "" {
		return nil, interfaces.ErrRecordNotFound
	}

	payload, err := e.Sealed.Open(password)
	if err != nil {
		if errors.Is(err, cryptoutils.ErrWrongRecordPassword) {
			return nil, interfaces.ErrRecordNotFound
		}
		return nil, err
	}
	return payload, nil
}

// DecodeEnvelope parses a stored record blob.
func DecodeEnvelope(data []byte) (*RecordEnvelope, error) {
	var envelope RecordEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("invalid record envelope: %w", err)
	}
	if envelope.Sealed == nil && envelope.Payload == nil {
		return nil, errors.New("record envelope carries no payload")
	}
	return &envelope, nil
}

// Encode serializes the envelope for storage.
func (e *RecordEnvelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
