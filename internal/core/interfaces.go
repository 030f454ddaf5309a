package core

import (
	"context"
	"errors"
	"time"

	"vonvault/internal/types"
)

// Authenticator decouples the HTTP layer from specific auth mechanisms,
// allowing for easy mocking in tests.
type Authenticator interface {
	// ResolveToken verifies a bearer token and returns the Actor it names.
	//
	// Distinct Error Codes:
	// - Return ErrCodeAuthTokenInvalid if the token is malformed or badly signed.
	// - Return ErrCodeAuthTokenExpired if the token is well formed but expired.
	ResolveToken(ctx context.Context, token string) (*types.Actor, error)
}

// IdempotencyStatus is the lifecycle state of an idempotency key.
type IdempotencyStatus string

const (
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	IdempotencyStatusCompleted  IdempotencyStatus = "completed"
)

// IdempotencyRecord is the stored state of one (user, key) pair.
type IdempotencyRecord struct {
	Status       IdempotencyStatus `json:"status"`
	RequestPath  string            `json:"request_path"`
	ResponseCode int               `json:"response_code,omitempty"`
	ResponseBody []byte            `json:"response_body,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ErrIdempotencyKeyExists is returned by IdempotencyStore.Create when the key
// is already held, typically by a concurrent request.
var ErrIdempotencyKeyExists = errors.New("idempotency key already exists")

// IdempotencyStore persists idempotency keys scoped by user.
type IdempotencyStore interface {
	// Get returns the record for key, or (nil, nil) when the key is unknown
	// or has expired.
	Get(ctx context.Context, key, userID string) (*IdempotencyRecord, error)
	// Create claims key in the processing state. It returns
	// ErrIdempotencyKeyExists when the key is already claimed.
	Create(ctx context.Context, key, userID, path string) error
	// Complete stores the final response for replay.
	Complete(ctx context.Context, key, userID string, status int, body []byte) error
	// Fail releases key so that the request can be retried.
	Fail(ctx context.Context, key, userID string) error
}
