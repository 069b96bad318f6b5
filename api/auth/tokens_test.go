package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret-that-is-long-enough"

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := CreateAccessToken("user_1", "alice", false, testSecret, 2*time.Hour)
	require.NoError(t, err)

	claims, err := VerifyAccessToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user_1", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.False(t, claims.IsAdmin)
}

func TestAdminFlagPreserved(t *testing.T) {
	token, err := CreateAccessToken("user_2", "bob", true, testSecret, 2*time.Hour)
	require.NoError(t, err)

	claims, err := VerifyAccessToken(token, testSecret)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin)
}

func TestContainerTokenRoundTrip(t *testing.T) {
	token, err := CreateContainerToken("conv_1", "user_1", testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := VerifyContainerToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "conv_1", claims.Subject)
	assert.Equal(t, "user_1", claims.UserID)
}

func TestWrongSecretFails(t *testing.T) {
	token, err := CreateAccessToken("user_1", "alice", false, testSecret, 2*time.Hour)
	require.NoError(t, err)

	_, err = VerifyAccessToken(token, "wrong-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredTokenFails(t *testing.T) {
	token, err := CreateAccessToken("user_1", "alice", false, testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = VerifyAccessToken(token, testSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessTokenAsContainerTokenHasNoUserID(t *testing.T) {
	access, err := CreateAccessToken("user_1", "alice", false, testSecret, time.Hour)
	require.NoError(t, err)

	// A container claims parse of an access token yields no user_id binding.
	claims, err := VerifyContainerToken(access, testSecret)
	require.NoError(t, err)
	assert.Empty(t, claims.UserID)
}

func TestGenerateRefreshToken(t *testing.T) {
	plaintext, hash, err := GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEmpty(t, plaintext)
	assert.Equal(t, HashRefreshToken(plaintext), hash)

	other, _, err := GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, other)
}
