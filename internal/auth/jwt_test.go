package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClaims() UserClaims {
	return UserClaims{
		UserID:  "0b1f0b1e-9d2c-4a7e-8a1a-000000000001",
		Email:   "user@example.com",
		IsAdmin: false,
	}
}

func TestJWTManager_AccessTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, 24*time.Hour)

	token, err := m.GenerateAccessToken(testClaims())
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.False(t, claims.IsAdmin)
}

func TestJWTManager_RefreshTokenNotUsableAsAccess(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, 24*time.Hour)

	refresh, err := m.GenerateRefreshToken(testClaims())
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims, err := m.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, testClaims().UserID, claims.UserID)
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	m := NewJWTManager("test-secret", -1*time.Minute, 24*time.Hour)

	token, err := m.GenerateAccessToken(testClaims())
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestJWTManager_WrongSecret(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, 24*time.Hour)
	other := NewJWTManager("other-secret", 15*time.Minute, 24*time.Hour)

	token, err := m.GenerateAccessToken(testClaims())
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordManager_HashAndVerify(t *testing.T) {
	pm := NewPasswordManager()

	hash, err := pm.HashPassword("correct-horse-1")
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse-1", hash)

	assert.NoError(t, pm.VerifyPassword("correct-horse-1", hash))
	assert.ErrorIs(t, pm.VerifyPassword("wrong-password-1", hash), ErrInvalidCredentials)
}

func TestPasswordManager_Strength(t *testing.T) {
	pm := NewPasswordManager()

	assert.ErrorIs(t, pm.ValidatePasswordStrength("short1"), ErrWeakPassword)
	assert.ErrorIs(t, pm.ValidatePasswordStrength("lettersonly"), ErrWeakPassword)
	assert.ErrorIs(t, pm.ValidatePasswordStrength("12345678"), ErrWeakPassword)
	assert.NoError(t, pm.ValidatePasswordStrength("letters123"))
}
