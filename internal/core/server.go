// Package core provides the API chassis for the VonVault platform.
// It builds the chi router, enforces cross-cutting concerns (logging, auth,
// idempotency, metrics, error rendering) and leaves the domain routes to
// registrars supplied by the entry point.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vonvault/internal/config"
)

// MetricsCollector defines the interface for recording API telemetry.
// Implementations record request latency and count metrics to CloudWatch,
// Prometheus or equivalent backends.
type MetricsCollector interface {
	// RecordRequest records API request metrics including latency and count.
	// endpoint is the chi route pattern, never the raw path.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// RouteRegistrar mounts a group of domain routes under /api.
type RouteRegistrar func(r chi.Router)

// Server encapsulates all dependencies for the VonVault API, allowing for
// easy injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config           *config.Config
	Logger           *slog.Logger
	Validator        *Validator
	Metrics          MetricsCollector
	Authenticator    Authenticator // Resolves tokens to Actors; injected for testability.
	IdempotencyStore IdempotencyStore
	HealthProbes     []HealthProbe

	// RouteRegistrars are mounted under /api by MountRoutes.
	RouteRegistrars []RouteRegistrar

	// MetricsHandler, when set, is served at GET /metrics without auth.
	MetricsHandler http.Handler

	// Closers are released in reverse order by Shutdown.
	Closers []io.Closer

	// Internal router
	router *chi.Mux
}

// NewServer initializes dependencies, sets up the router, and prepares the
// server for route mounting. It performs a "fail-fast" check on critical
// configuration.
//
// The caller is responsible for mounting routes (via MountRoutes) after
// injecting optional dependencies. This separation allows tests to customize
// route registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}

	return s, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
// This is used internally by route-mounting methods and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases server resources (database pool, Redis client, metric
// flushers). Every closer is attempted; the errors are joined.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var errs []error
	for i := len(s.Closers) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("shutdown aborted: %w", err))
			break
		}
		if err := s.Closers[i].Close(); err != nil {
			s.Logger.Error("error closing server resource", "error", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("closing server resources: %w", err)
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
