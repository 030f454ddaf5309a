package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vonvault/internal/types"
)

const testSecret = "test-secret-that-is-at-least-32-bytes-long"

func newTestAuthenticator(t *testing.T, now time.Time) *TokenAuthenticator {
	t.Helper()
	a, err := NewTokenAuthenticator(testSecret, time.Hour, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return a
}

func TestNewTokenAuthenticator_Validation(t *testing.T) {
	_, err := NewTokenAuthenticator("", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenAuthenticator(testSecret, 0)
	assert.Error(t, err)
}

func TestTokenAuthenticator_RoundTrip(t *testing.T) {
	now := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)
	a := newTestAuthenticator(t, now)

	token, err := a.Issue("user_123")
	require.NoError(t, err)

	actor, err := a.ResolveToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user_123", actor.UserID)
}

func TestTokenAuthenticator_Expired(t *testing.T) {
	issuedAt := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)
	token, err := newTestAuthenticator(t, issuedAt).Issue("user_123")
	require.NoError(t, err)

	later := newTestAuthenticator(t, issuedAt.Add(2*time.Hour))
	_, err = later.ResolveToken(context.Background(), token)
	assert.Equal(t, types.ErrCodeAuthTokenExpired, types.CodeOf(err))
}

func TestTokenAuthenticator_Invalid(t *testing.T) {
	now := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)
	a := newTestAuthenticator(t, now)

	sign := func(method jwt.SigningMethod, key any, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	exp := jwt.NewNumericDate(now.Add(time.Hour))

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong secret", sign(jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx"),
			Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}})},
		{"wrong algorithm", sign(jwt.SigningMethodHS512, []byte(testSecret),
			Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}})},
		{"missing user id", sign(jwt.SigningMethodHS256, []byte(testSecret),
			Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}})},
		{"missing expiry", sign(jwt.SigningMethodHS256, []byte(testSecret), Claims{UserID: "u1"})},
		{"unsigned", sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType,
			Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.ResolveToken(context.Background(), tt.token)
			assert.Equal(t, types.ErrCodeAuthTokenInvalid, types.CodeOf(err))
		})
	}
}
