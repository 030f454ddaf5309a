package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// --- Mock HealthProbe ---

type mockHealthProbe struct {
	name      string
	checkErr  error
	delay     time.Duration
	checkFunc func(ctx context.Context) error
	called    atomic.Bool
}

func (m *mockHealthProbe) Name() string {
	return m.name
}

func (m *mockHealthProbe) Check(ctx context.Context) error {
	m.called.Store(true)
	if m.checkFunc != nil {
		return m.checkFunc(ctx)
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.checkErr
}

func newTestServerForHealth(t *testing.T, probes []HealthProbe) *Server {
	t.Helper()
	srv := newTestServer(t)
	srv.HealthProbes = probes
	return srv
}

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) healthResponse {
	t.Helper()
	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	probes := []HealthProbe{
		&mockHealthProbe{name: "database"},
		&mockHealthProbe{name: "redis"},
	}

	srv := newTestServerForHealth(t, probes)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.HandleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	resp := decodeHealth(t, rec)
	if resp.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %q", resp.Status)
	}
	if _, err := time.Parse(time.RFC3339, resp.Timestamp); err != nil {
		t.Errorf("expected RFC3339 timestamp, got %q", resp.Timestamp)
	}

	for _, name := range []string{"database", "redis"} {
		comp, ok := resp.Components[name]
		if !ok {
			t.Errorf("expected component %q in response", name)
			continue
		}
		if comp.Status != "healthy" {
			t.Errorf("component %q: expected 'healthy', got %q", name, comp.Status)
		}
		if comp.Message != "" {
			t.Errorf("component %q: expected empty message, got %q", name, comp.Message)
		}
	}
}

func TestHandleHealth_OneUnhealthy(t *testing.T) {
	probes := []HealthProbe{
		&mockHealthProbe{name: "database", checkErr: errors.New("connection refused")},
		&mockHealthProbe{name: "redis"},
	}

	srv := newTestServerForHealth(t, probes)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.HandleHealth(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}

	resp := decodeHealth(t, rec)
	if resp.Status != "unhealthy" {
		t.Errorf("expected status 'unhealthy', got %q", resp.Status)
	}

	dbComp := resp.Components["database"]
	if dbComp.Status != "unhealthy" {
		t.Errorf("database component: expected 'unhealthy', got %q", dbComp.Status)
	}
	if dbComp.Message != "connection refused" {
		t.Errorf("database component: expected message 'connection refused', got %q", dbComp.Message)
	}
	if resp.Components["redis"].Status != "healthy" {
		t.Errorf("redis component: expected 'healthy', got %q", resp.Components["redis"].Status)
	}
}

func TestHandleHealth_Timeout(t *testing.T) {
	probes := []HealthProbe{
		&mockHealthProbe{name: "database"},
		&mockHealthProbe{name: "redis", delay: 5 * time.Second}, // Exceeds 2s timeout.
	}

	srv := newTestServerForHealth(t, probes)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.HandleHealth(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
	resp := decodeHealth(t, rec)
	if resp.Components["redis"].Status != "unhealthy" {
		t.Errorf("redis component: expected 'unhealthy', got %q", resp.Components["redis"].Status)
	}
}

func TestHandleHealth_NoProbes(t *testing.T) {
	srv := newTestServerForHealth(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()

	srv.HandleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	resp := decodeHealth(t, rec)
	if resp.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %q", resp.Status)
	}
	if resp.Timestamp == "" {
		t.Error("expected a timestamp")
	}
	if len(resp.Components) != 0 {
		t.Errorf("expected no components, got %v", resp.Components)
	}
}

func TestHandleHealth_ConcurrentExecution(t *testing.T) {
	const probeDelay = 100 * time.Millisecond

	probes := []HealthProbe{
		&mockHealthProbe{name: "database", delay: probeDelay},
		&mockHealthProbe{name: "redis", delay: probeDelay},
		&mockHealthProbe{name: "queue", delay: probeDelay},
	}

	srv := newTestServerForHealth(t, probes)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	start := time.Now()
	srv.HandleHealth(rec, req)
	elapsed := time.Since(start)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if maxAllowed := 3 * probeDelay; elapsed >= maxAllowed {
		t.Errorf("health check took %v, expected less than %v (probes should run concurrently)", elapsed, maxAllowed)
	}
}

func TestHandleHealth_ContentType(t *testing.T) {
	srv := newTestServerForHealth(t, []HealthProbe{&mockHealthProbe{name: "database"}})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.HandleHealth(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got %q", ct)
	}
}

func TestHandleHealth_ProbeRespectsContextCancellation(t *testing.T) {
	ctxCancelled := make(chan bool, 1)

	probes := []HealthProbe{
		&mockHealthProbe{
			name: "slow_probe",
			checkFunc: func(ctx context.Context) error {
				select {
				case <-time.After(10 * time.Second):
					ctxCancelled <- false
					return nil
				case <-ctx.Done():
					ctxCancelled <- true
					return ctx.Err()
				}
			},
		},
	}

	srv := newTestServerForHealth(t, probes)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/health", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	srv.HandleHealth(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}

	select {
	case cancelled := <-ctxCancelled:
		if !cancelled {
			t.Error("probe should have received context cancellation")
		}
	case <-time.After(3 * time.Second):
		t.Error("timed out waiting for probe cancellation signal")
	}
}

func TestHandleHealth_AllProbesCalled(t *testing.T) {
	db := &mockHealthProbe{name: "database"}
	redis := &mockHealthProbe{name: "redis"}

	srv := newTestServerForHealth(t, []HealthProbe{db, redis})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.HandleHealth(rec, req)

	if !db.called.Load() {
		t.Error("database probe was not called")
	}
	if !redis.called.Load() {
		t.Error("redis probe was not called")
	}
}

func TestHandleHealth_ProbePanic(t *testing.T) {
	probes := []HealthProbe{
		&mockHealthProbe{name: "database"},
		&mockHealthProbe{
			name: "redis",
			checkFunc: func(ctx context.Context) error {
				panic("redis client nil pointer")
			},
		},
	}

	srv := newTestServerForHealth(t, probes)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.HandleHealth(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}

	resp := decodeHealth(t, rec)
	redisComp, ok := resp.Components["redis"]
	if !ok {
		t.Fatal("expected 'redis' component in response")
	}
	if redisComp.Status != "unhealthy" {
		t.Errorf("redis component: expected 'unhealthy', got %q", redisComp.Status)
	}
	if redisComp.Message == "" {
		t.Error("redis component: expected non-empty error message for panicked probe")
	}
	if resp.Components["database"].Status != "healthy" {
		t.Errorf("database component: expected 'healthy', got %q", resp.Components["database"].Status)
	}
}

func TestMockHealthProbe_ImplementsHealthProbe(t *testing.T) {
	var _ HealthProbe = (*mockHealthProbe)(nil)
}
