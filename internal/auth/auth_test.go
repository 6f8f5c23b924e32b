package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/apperr"
)

func TestAuthenticateValidToken(t *testing.T) {
	a := NewAuthenticator("secret")
	token, err := a.Sign("u-1", jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	require.NoError(t, err)

	userID, err := a.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", userID)
}

func TestAuthenticateSubjectOnly(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u-2"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	userID, err := NewAuthenticator("secret").Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "u-2", userID)
}

func TestAuthenticateExpired(t *testing.T) {
	a := NewAuthenticator("secret")
	token, err := a.Sign("u-1", jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))})
	require.NoError(t, err)

	_, err = a.Authenticate(token)
	assert.ErrorIs(t, err, apperr.ErrTokenExpired)
}

func TestAuthenticateRejects(t *testing.T) {
	other, err := NewAuthenticator("other").Sign("u-1", jwt.RegisteredClaims{})
	require.NoError(t, err)
	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte("secret"))
	require.NoError(t, err)

	a := NewAuthenticator("secret")
	for name, token := range map[string]string{
		"empty":     "",
		"garbage":   "not-a-jwt",
		"wrong key": other,
		"no user":   noUser,
	} {
		_, err := a.Authenticate(token)
		assert.ErrorIs(t, err, apperr.ErrUnauthorized, name)
	}
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	token, ok = BearerToken("bearer  xyz ")
	assert.True(t, ok)
	assert.Equal(t, "xyz", token)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer")
	assert.False(t, ok)
}
