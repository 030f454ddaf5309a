package core

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"vonvault/internal/types"
)

func newMountedServer(t *testing.T, configure func(s *Server)) *Server {
	t.Helper()
	srv := newTestServer(t)
	if configure != nil {
		configure(srv)
	}
	srv.MountRoutes()
	return srv
}

func TestRoutes_Root(t *testing.T) {
	srv := newMountedServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var body rootResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.Status != "running" || !strings.Contains(body.Message, "VonVault") {
		t.Errorf("unexpected root body %+v", body)
	}
}

func TestRoutes_HealthOnBothPaths(t *testing.T) {
	srv := newMountedServer(t, func(s *Server) {
		s.Authenticator = &MockAuthenticator{Err: types.NewAppError(types.ErrCodeAuthTokenInvalid, "no", nil)}
	})

	for _, path := range []string{"/health", "/api/health"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", path, rec.Code)
		}
		var body healthResponse
		_ = json.NewDecoder(rec.Body).Decode(&body)
		if body.Status != "healthy" {
			t.Errorf("%s: expected healthy, got %q", path, body.Status)
		}
	}
}

func TestRoutes_NotFoundIsJSON(t *testing.T) {
	srv := newMountedServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	resp := decodeAPIError(t, rec)
	if resp.Error.Code != string(types.ErrCodeNotFoundRoute) || resp.Detail != "Not Found" {
		t.Errorf("unexpected not found body %+v", resp)
	}
}

func TestRoutes_MetricsHandlerMountedWhenSet(t *testing.T) {
	without := newMountedServer(t, nil)
	rec := httptest.NewRecorder()
	without.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected /metrics to be absent, got %d", rec.Code)
	}

	with := newMountedServer(t, func(s *Server) {
		s.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "# HELP vonvault_requests_total\n")
		})
	})
	rec = httptest.NewRecorder()
	with.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "vonvault_requests_total") {
		t.Errorf("expected metrics handler output, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestRoutes_RegistrarsMountUnderAPI(t *testing.T) {
	metrics := &MockMetricsCollector{}
	srv := newMountedServer(t, func(s *Server) {
		s.Metrics = metrics
		s.Authenticator = &MockAuthenticator{Actor: &types.Actor{UserID: "user_9"}}
		s.RouteRegistrars = []RouteRegistrar{
			func(r chi.Router) {
				r.Get("/membership/status", func(w http.ResponseWriter, r *http.Request) {
					actor, _ := types.GetActor(r.Context())
					JSON(w, r, http.StatusOK, map[string]string{"user_id": actor.UserID})
				})
			},
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/membership/status", nil)
	req.Header.Set("Authorization", "Bearer t")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "user_9") {
		t.Errorf("expected actor in handler, got %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id response header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}

	calls := metrics.Recorded()
	if len(calls) != 1 || calls[0].Endpoint != "/api/membership/status" {
		t.Errorf("expected route pattern metric, got %+v", calls)
	}
}

func TestRoutes_ProtectedRouteRequiresToken(t *testing.T) {
	srv := newMountedServer(t, func(s *Server) {
		s.Authenticator = &MockAuthenticator{Actor: &types.Actor{UserID: "user_9"}}
		s.RouteRegistrars = []RouteRegistrar{
			func(r chi.Router) {
				r.Get("/investments", func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				})
			},
		}
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/investments", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestRoutes_PropagatesRequestID(t *testing.T) {
	srv := newMountedServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "client-supplied")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != "client-supplied" {
		t.Errorf("expected propagated request id, got %q", got)
	}
}

func TestRoutes_GzipLargeResponses(t *testing.T) {
	payload := strings.Repeat("membership ", 500)
	srv := newMountedServer(t, func(s *Server) {
		s.RouteRegistrars = []RouteRegistrar{
			func(r chi.Router) {
				r.Get("/investment-plans/all", func(w http.ResponseWriter, r *http.Request) {
					JSON(w, r, http.StatusOK, map[string]string{"plans": payload})
				})
			},
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/investment-plans/all", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, got headers %v", rec.Header())
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("reading gzip body: %v", err)
	}
	if !strings.Contains(string(raw), payload) {
		t.Error("decompressed body does not contain the payload")
	}
}

func TestContextTimeoutMiddleware_SetsDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	handler := ContextTimeoutMiddleware(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !ok {
		t.Fatal("expected request context to carry a deadline")
	}
	if until := time.Until(deadline); until <= 0 || until > time.Second {
		t.Errorf("unexpected deadline distance %v", until)
	}
}

func TestGenerateRequestID(t *testing.T) {
	a, b := generateRequestID(), generateRequestID()
	if len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(a))
	}
	if a == b {
		t.Error("expected distinct request ids")
	}
}

func TestRequestTimeout_Default(t *testing.T) {
	srv := newTestServer(t)
	srv.Config.Server.RequestTimeout = 0
	if got := srv.requestTimeout(); got != defaultRequestTimeout {
		t.Errorf("expected default timeout, got %v", got)
	}
}
