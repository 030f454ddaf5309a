package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMissingField     ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidAmount    ErrorCode = "validation_invalid_amount"
	ErrCodeValidationBelowMinimum     ErrorCode = "validation_investment_below_minimum"
	ErrCodeValidationAboveMaximum     ErrorCode = "validation_investment_above_maximum"
	ErrCodeValidationInvalidPlan      ErrorCode = "validation_invalid_investment_plan"
	ErrCodeValidationInvalidTerm      ErrorCode = "validation_invalid_term"
	ErrCodeValidationInvalidFieldType ErrorCode = "validation_invalid_field"

	// Auth (401)
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"
	ErrCodeAuthTokenExpired ErrorCode = "auth_token_expired"

	// Not Found (404)
	ErrCodeNotFoundUser  ErrorCode = "not_found_user"
	ErrCodeNotFoundRoute ErrorCode = "not_found_route"

	// Conflict (409)
	ErrCodeConflictUserExists            ErrorCode = "conflict_user_exists"
	ErrCodeConflictIdempotencyInProgress ErrorCode = "conflict_idempotency_in_progress"
	ErrCodeConflictIdempotencyKeyReused  ErrorCode = "conflict_idempotency_key_reused"

	// Internal/Upstream (500/502/503)
	ErrCodeInternalDB              ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected      ErrorCode = "internal_unexpected_error"
	ErrCodeInternalConfiguration   ErrorCode = "internal_configuration_error"
	ErrCodeInternalLockUnavailable ErrorCode = "internal_lock_unavailable"
	ErrCodeUpstreamUnavailable     ErrorCode = "upstream_unavailable"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized // 401
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case s == string(ErrCodeInternalLockUnavailable):
		return http.StatusServiceUnavailable // 503
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the platform.
// Message is the single human-readable sentence shown to the caller;
// clients of the investment endpoints pattern-match on it.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// IsValidation reports whether err is an AppError in the validation class.
func IsValidation(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return strings.HasPrefix(string(appErr.Code), "validation_")
}

// CodeOf returns the ErrorCode carried by err, or the empty code when err is
// not an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return ""
	}
	return appErr.Code
}
