package core

import (
	"context"
	"sync"
	"time"

	"vonvault/internal/types"
)

// --- MockAuthenticator ---

// MockAuthenticator implements the Authenticator interface for testing.
// It allows injecting a predefined Actor for a given token, or returning
// a fixed error to simulate authentication failures.
//
// Usage:
//
//	mock := &MockAuthenticator{
//	    Actor: &types.Actor{UserID: "user_test123"},
//	}
//	actor, err := mock.ResolveToken(ctx, "eyJhbGciOi...")
//
// To simulate an error:
//
//	mock := &MockAuthenticator{
//	    Err: types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid token", nil),
//	}
type MockAuthenticator struct {
	// Actor is the predefined Actor returned on successful token resolution.
	// If nil and Err is also nil, ResolveToken returns (nil, nil).
	Actor *types.Actor

	// Err is the error returned by ResolveToken. When set, Actor is ignored.
	Err error

	// ResolveTokenFunc is an optional function that overrides the default behavior.
	// When set, it takes precedence over Actor and Err fields.
	ResolveTokenFunc func(ctx context.Context, token string) (*types.Actor, error)

	// mu protects Calls for concurrent access.
	mu sync.Mutex

	// Calls records every token passed to ResolveToken for assertion purposes.
	Calls []string
}

// ResolveToken implements the Authenticator interface.
// It records the call, then delegates to ResolveTokenFunc if set,
// otherwise returns Err (if set) or Actor.
func (m *MockAuthenticator) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, token)
	m.mu.Unlock()

	if m.ResolveTokenFunc != nil {
		return m.ResolveTokenFunc(ctx, token)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Actor, nil
}

// --- MockMetricsCollector ---

// RequestMetric records the arguments of a single RecordRequest invocation.
type RequestMetric struct {
	Method   string
	Endpoint string
	Status   string
	Duration time.Duration
}

// MockMetricsCollector implements MetricsCollector by recording every call.
type MockMetricsCollector struct {
	mu    sync.Mutex
	Calls []RequestMetric
}

// RecordRequest implements MetricsCollector.
func (m *MockMetricsCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, RequestMetric{Method: method, Endpoint: endpoint, Status: status, Duration: duration})
}

// Recorded returns a copy of the recorded calls.
func (m *MockMetricsCollector) Recorded() []RequestMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RequestMetric(nil), m.Calls...)
}

// Compile-time interface assertions.
var (
	_ Authenticator    = (*MockAuthenticator)(nil)
	_ MetricsCollector = (*MockMetricsCollector)(nil)
	_ IdempotencyStore = (*MemoryIdempotencyStore)(nil)
	_ IdempotencyStore = (*RedisIdempotencyStore)(nil)
)
