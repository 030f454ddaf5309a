// Package auth verifies the bearer tokens issued by the VonVault identity
// service. Tokens are HS256 JWTs carrying a user_id claim and an expiry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vonvault/internal/types"
)

// Claims is the token payload.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenAuthenticator resolves bearer tokens to Actors and issues tokens for
// tooling and tests. It satisfies core.Authenticator.
type TokenAuthenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption is a functional option for configuring a TokenAuthenticator.
type TokenOption func(*TokenAuthenticator)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(a *TokenAuthenticator) { a.now = now }
}

// NewTokenAuthenticator creates a TokenAuthenticator. ttl is the lifetime of
// issued tokens.
func NewTokenAuthenticator(secret string, ttl time.Duration, opts ...TokenOption) (*TokenAuthenticator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	a := &TokenAuthenticator{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Issue signs a token for userID that expires after the configured ttl.
func (a *TokenAuthenticator) Issue(userID string) (string, error) {
	now := a.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ResolveToken validates the signature and expiry of token.
//
// Distinct Error Codes:
//   - ErrCodeAuthTokenExpired if the token is well formed but past its expiry.
//   - ErrCodeAuthTokenInvalid for every other failure, including a missing
//     user_id claim or a signing method other than HS256.
func (a *TokenAuthenticator) ResolveToken(_ context.Context, token string) (*types.Actor, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, types.NewAppError(types.ErrCodeAuthTokenExpired, "token has expired", err)
		}
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid token", err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.UserID) == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid token", nil)
	}

	return &types.Actor{UserID: claims.UserID}, nil
}
