package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestRoundTrip(t *testing.T) {
	plaintext := "sk-ant-REDACTED"

	encrypted, err := Encrypt(plaintext, testKey)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, encrypted)

	decrypted, err := Decrypt(encrypted, testKey)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestRoundTripUnicode(t *testing.T) {
	plaintext := "clé secrète — 秘密のキー"

	encrypted, err := Encrypt(plaintext, testKey)
	require.NoError(t, err)

	decrypted, err := Decrypt(encrypted, testKey)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestNoncesDiffer(t *testing.T) {
	a, err := Encrypt("same", testKey)
	require.NoError(t, err)
	b, err := Encrypt("same", testKey)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestWrongKeyFails(t *testing.T) {
	otherKey := "abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"

	encrypted, err := Encrypt("secret", testKey)
	require.NoError(t, err)

	_, err = Decrypt(encrypted, otherKey)
	assert.Error(t, err)
}

func TestInvalidKeyLength(t *testing.T) {
	_, err := Encrypt("hello", "aabb")
	assert.Error(t, err)

	_, err = Decrypt("aabb", "nothex")
	assert.Error(t, err)
}

func TestCiphertextTooShort(t *testing.T) {
	_, err := Decrypt("YWJj", testKey) // "abc", shorter than a nonce
	assert.Error(t, err)
}
