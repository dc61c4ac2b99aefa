package cryptoutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealAndOpenRecord(t *testing.T) {
	payload := []byte(`{"id":"TOKabcdef123","content":{"@type":"TokenContentRelationshipTemplate"}}`)

	sealed, err := SealRecord("opensesame", payload)
	require.NoError(t, err)
	assert.Len(t, sealed.Salt, recordSaltSize)
	assert.NotContains(t, string(sealed.Ciphertext), "TOKabcdef123")

	opened, err := sealed.Open("opensesame")
	require.NoError(t, err)
	assert.Equal(t, payload, opened)
}

func TestOpenWithWrongPassword(t *testing.T) {
	sealed, err := SealRecord("correct", []byte("payload"))
	require.NoError(t, err)

	_, err = sealed.Open("incorrect")
	assert.ErrorIs(t, err, ErrWrongRecordPassword)

	_, err = sealed.Open("")
	assert.ErrorIs(t, err, ErrWrongRecordPassword)
}

func TestOpenWithTamperedCiphertext(t *testing.T) {
	sealed, err := SealRecord("correct", []byte("payload"))
	require.NoError(t, err)

	sealed.Ciphertext[0] ^= 0xff
	_, err = sealed.Open("correct")
	assert.ErrorIs(t, err, ErrWrongRecordPassword)
}

func TestOpenRejectsInvalidSalt(t *testing.T) {
	sealed := &SealedRecord{Salt: []byte("short")}
	_, err := sealed.Open("whatever")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrWrongRecordPassword)
}

func TestSealUsesFreshSaltAndNonce(t *testing.T) {
	first, err := SealRecord("pw", []byte("payload"))
	require.NoError(t, err)
	second, err := SealRecord("pw", []byte("payload"))
	require.NoError(t, err)

	assert.NotEqual(t, first.Salt, second.Salt)
	assert.NotEqual(t, first.Nonce, second.Nonce)
	assert.NotEqual(t, first.Ciphertext, second.Ciphertext)
}

func TestDeriveRecordKeyIsDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")
	assert.Equal(t, DeriveRecordKey("pw", salt), DeriveRecordKey("pw", salt))
	assert.NotEqual(t, DeriveRecordKey("pw", salt), DeriveRecordKey("other", salt))
}
