// Package cryptoutils provides the secret-key handling for password-protected
// backbone records: password-to-key derivation with argon2id and authenticated
// sealing with ChaCha20-Poly1305.
package cryptoutils

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// argon2id parameters for record key derivation. Interactive profile: the
// derivation runs once per password attempt on user input.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4

	recordSaltSize = 16
)

// ErrWrongRecordPassword is returned when a sealed record does not open with
// the supplied password.
var ErrWrongRecordPassword = errors.New("record password does not match")

// SealedRecord is a password-sealed record payload. Opening with a wrong
// password fails authentication; the payload is never partially exposed.
type SealedRecord struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// DeriveRecordKey derives a record sealing key from a password and salt.
func DeriveRecordKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

// SealRecord seals a payload under a password with a fresh salt and nonce.
func SealRecord(password string, plaintext []byte) (*SealedRecord, error) {
	salt := make([]byte, recordSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := chacha20poly1305.New(DeriveRecordKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return &SealedRecord{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// Open unseals the record with the given password.
// Returns ErrWrongRecordPassword when authentication fails.
func (r *SealedRecord) Open(password string) ([]byte, error) {
	if len(r.Salt) != recordSaltSize {
		return nil, fmt.Errorf("invalid salt length: %d", len(r.Salt))
	}

	aead, err := chacha20poly1305.New(DeriveRecordKey(password, r.Salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, r.Nonce, r.Ciphertext, nil)
	if err != nil {
		return nil, ErrWrongRecordPassword
	}
	return plaintext, nil
}
