package core

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"

	"vonvault/internal/types"
)

// maxIdempotencyKeyLength bounds the Idempotency-Key header.
const maxIdempotencyKeyLength = 255

// ResponseCapturer wraps an http.ResponseWriter to buffer the response status
// code, headers, and body during handler execution. This is used by the
// IdempotencyMiddleware to capture the complete response for storage and replay.
//
// The captured data is NOT written to the underlying ResponseWriter until
// Flush is called, allowing the middleware to inspect and potentially store
// the response before sending it to the client.
type ResponseCapturer struct {
	underlying http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	headers    http.Header
	written    bool
}

// newResponseCapturer creates a new ResponseCapturer wrapping the given writer.
func newResponseCapturer(w http.ResponseWriter) *ResponseCapturer {
	return &ResponseCapturer{
		underlying: w,
		statusCode: http.StatusOK,
		headers:    make(http.Header),
	}
}

// Header returns the captured headers map. Handlers writing headers will
// write to this map, which is later flushed to the underlying writer.
func (rc *ResponseCapturer) Header() http.Header {
	return rc.headers
}

// WriteHeader captures the status code without writing to the underlying writer.
func (rc *ResponseCapturer) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
}

// Write captures the response body without writing to the underlying writer.
func (rc *ResponseCapturer) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.body.Write(b)
}

// Flush writes the captured response (status code, headers, and body) to the
// underlying ResponseWriter. This should be called exactly once after the
// handler chain completes.
func (rc *ResponseCapturer) Flush() {
	for key, values := range rc.headers {
		for _, v := range values {
			rc.underlying.Header().Add(key, v)
		}
	}
	rc.underlying.WriteHeader(rc.statusCode)
	_, _ = rc.underlying.Write(rc.body.Bytes())
}

// Unwrap returns the underlying ResponseWriter.
func (rc *ResponseCapturer) Unwrap() http.ResponseWriter {
	return rc.underlying
}

// StatusCode returns the captured HTTP status code.
func (rc *ResponseCapturer) StatusCode() int {
	return rc.statusCode
}

// Body returns the captured response body as bytes.
func (rc *ResponseCapturer) Body() []byte {
	return rc.body.Bytes()
}

// IdempotencyMiddleware ensures POST requests with an "Idempotency-Key" header
// are processed exactly once per user. A client that retries an investment
// submission after a timeout gets the original response instead of a second
// investment.
//
// Flow:
//  1. Extract the Idempotency-Key header and the Actor from context.
//  2. Look up the key in the store.
//  3. Case A (Found & Completed): Replay the stored response immediately.
//  4. Case B (Found & Processing): Return 409 Conflict.
//  5. Case C (New): Claim the key, capture the handler's response, store it
//     (2xx-4xx) or release the key (5xx), and flush to the client.
//
// A key reused on a different path is rejected with 409. Non-POST requests,
// requests without the header, and unauthenticated requests pass through.
// Store errors fail open.
func (s *Server) IdempotencyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.IdempotencyStore == nil || r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		actor, ok := types.GetActor(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		if len(key) > maxIdempotencyKeyLength {
			Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidFieldType,
				"Idempotency-Key must not exceed 255 characters",
				nil,
			))
			return
		}

		ctx := r.Context()
		logAttrs := []any{
			slog.String("key", key),
			slog.String("user_id", actor.UserID),
		}

		record, err := s.IdempotencyStore.Get(ctx, key, actor.UserID)
		if err != nil {
			s.Logger.Error("idempotency store get error", append(logAttrs, slog.String("error", err.Error()))...)
			next.ServeHTTP(w, r)
			return
		}

		if record != nil {
			if record.RequestPath != r.URL.Path {
				Error(w, r, types.NewAppError(
					types.ErrCodeConflictIdempotencyKeyReused,
					"This idempotency key was already used for a different request",
					nil,
				))
				return
			}

			switch record.Status {
			case IdempotencyStatusCompleted:
				s.Logger.Info("idempotency key hit, returning cached response",
					append(logAttrs, slog.Int("cached_status", record.ResponseCode))...)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotent-Replayed", "true")
				w.WriteHeader(record.ResponseCode)
				_, _ = w.Write(record.ResponseBody)
				return

			case IdempotencyStatusProcessing:
				s.writeIdempotencyInProgress(w, r, logAttrs)
				return
			}
		}

		if err := s.IdempotencyStore.Create(ctx, key, actor.UserID, r.URL.Path); err != nil {
			if errors.Is(err, ErrIdempotencyKeyExists) {
				s.writeIdempotencyInProgress(w, r, logAttrs)
				return
			}
			s.Logger.Error("idempotency store create error", append(logAttrs, slog.String("error", err.Error()))...)
			next.ServeHTTP(w, r)
			return
		}

		capturer := newResponseCapturer(w)
		next.ServeHTTP(capturer, r)

		// The outcome is recorded even if the client has gone away.
		ctx = context.WithoutCancel(ctx)
		statusCode := capturer.StatusCode()
		if statusCode >= 200 && statusCode < 500 {
			// Client errors are stored too: the same request must produce the
			// same validation failure.
			if err := s.IdempotencyStore.Complete(ctx, key, actor.UserID, statusCode, capturer.Body()); err != nil {
				s.Logger.Error("idempotency store complete error", append(logAttrs, slog.String("error", err.Error()))...)
			}
		} else {
			if err := s.IdempotencyStore.Fail(ctx, key, actor.UserID); err != nil {
				s.Logger.Error("idempotency store fail error", append(logAttrs, slog.String("error", err.Error()))...)
			}
		}

		capturer.Flush()
	})
}

func (s *Server) writeIdempotencyInProgress(w http.ResponseWriter, r *http.Request, logAttrs []any) {
	s.Logger.Warn("idempotency key conflict, request in progress", logAttrs...)
	Error(w, r, types.NewAppError(
		types.ErrCodeConflictIdempotencyInProgress,
		"A request with this idempotency key is currently being processed",
		nil,
	))
}
