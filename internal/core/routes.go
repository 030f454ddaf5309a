package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"

	"vonvault/internal/types"
)

// defaultRequestTimeout is the soft timeout applied to request contexts when
// no explicit RequestTimeout is configured.
const defaultRequestTimeout = 15 * time.Second

// defaultRedactedHeaders lists header names whose values are masked in request
// logs to prevent accidental leakage of credentials.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
}

// rootResponse is served at GET / for load balancers and humans.
type rootResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// MountRoutes defines the top-level routing hierarchy.
// It registers the global middleware chain, the /api group and the
// operational routes (health, metrics).
func (s *Server) MountRoutes() {
	// Global Middleware Registration (strict order matters).
	s.registerGlobalMiddleware()

	s.router.NotFound(s.handleNotFound)

	s.router.Get("/", s.handleRoot)
	s.router.Get("/health", s.HandleHealth)
	if s.MetricsHandler != nil {
		s.router.Method(http.MethodGet, "/metrics", s.MetricsHandler)
	}

	s.router.Route("/api", s.mountAPI)
}

// registerGlobalMiddleware applies middleware in strict order.
//
// Ordering Rationale:
//  1. Recoverer          - Catches panics; outermost to catch all failures.
//  2. ContextTimeout     - Sets a soft deadline on every request.
//  3. RequestID          - Generates/propagates correlation ID for tracing.
//  4. SecurityHeaders    - Ensures all responses include security headers.
//  5. RequestLogger      - Structured logging (redacted headers).
//  6. CORS               - Browser security headers.
//  7. Compression        - gzip for clients that accept it.
//  8. Metrics            - Request latency and count recording.
//  9. Auth               - Resolves the Actor (user id) into the context.
// 10. Idempotency        - Replays POST responses per user and key (requires Actor).
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(CompressionMiddleware)
	s.router.Use(s.MetricsMiddleware)
	s.router.Use(s.AuthMiddleware)
	s.router.Use(s.IdempotencyMiddleware)
}

// mountAPI registers the /api endpoints. Domain handler routes are registered
// via RouteRegistrars, which are populated by the application entry point.
// This indirection avoids import cycles between core and handler packages.
func (s *Server) mountAPI(r chi.Router) {
	r.Get("/health", s.HandleHealth)
	for _, registrar := range s.RouteRegistrars {
		registrar(r)
	}
}

// requestTimeout returns the configured request timeout, falling back to the
// default if the config does not specify one.
func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}

// corsAllowedOrigins returns the CORS allowed origins from configuration.
func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Security.CorsAllowedOrigins) > 0 {
		return s.Config.Security.CorsAllowedOrigins
	}
	return []string{"*"}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, rootResponse{
		Message: "VonVault DeFi API - Membership Investment System",
		Status:  "running",
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	Error(w, r, types.NewAppError(types.ErrCodeNotFoundRoute, "Not Found", nil))
}

// ContextTimeoutMiddleware sets a deadline on the request context.
// If the context deadline is exceeded, downstream handlers receive a
// cancelled context; the response is controlled by the handler's behavior
// on context cancellation.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware generates or propagates a unique request ID for
// correlation across logs and traces. If the incoming request contains an
// X-Request-Id header, that value is reused; otherwise, a new random ID is
// generated.
//
// The request ID is stored in the context via types.WithRequestID and set as
// the X-Request-Id response header for client correlation.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// generateRequestID produces a cryptographically random hex string suitable
// for use as a request correlation ID. It generates 16 random bytes encoded
// as 32 hex characters.
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "fallback-" + hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}

// CompressionMiddleware gzips responses for clients that send
// Accept-Encoding: gzip. Small bodies are passed through uncompressed.
func CompressionMiddleware(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}
