package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All components MUST use these constants instead of hardcoded strings.
const (
	// Validation (programmer/caller errors; never retried)
	ErrCodeValidationDateRange    ErrorCode = "validation_date_range_invalid"
	ErrCodeValidationNoEntities   ErrorCode = "validation_empty_entity_list"
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"

	// Auth (fatal for the whole client run)
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"

	// Upstream transient (retryable per RetryPolicy)
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamTimeout     ErrorCode = "upstream_timeout"

	// Upstream permanent (dropped immediately, never retried)
	ErrCodeUpstreamRejected   ErrorCode = "upstream_request_rejected"
	ErrCodeUpstreamBadPayload ErrorCode = "upstream_malformed_payload"

	// Internal
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// Transient reports whether an error code represents a retryable upstream
// condition (timeouts, 5xx, rate limits). Permanent upstream rejections and
// everything else terminate immediately without consuming retry attempts.
func (c ErrorCode) Transient() bool {
	switch c {
	case ErrCodeUpstreamUnavailable, ErrCodeUpstreamRateLimited, ErrCodeUpstreamTimeout:
		return true
	default:
		return false
	}
}

// Fatal reports whether an error code should abort the whole client run
// rather than a single fetch task. Authentication failures are fatal because
// no data is retrievable without a token; validation failures are fatal
// because they indicate caller bugs.
func (c ErrorCode) Fatal() bool {
	s := string(c)
	return strings.HasPrefix(s, "auth_") || strings.HasPrefix(s, "validation_")
}

// AppError is the standard application error type used throughout the
// ingestion pipeline. All component errors should be expressed as AppError to
// enable consistent transient/permanent classification and error chain support.
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

// Transient reports whether this error is retryable.
func (e *AppError) Transient() bool {
	return e.Code.Transient()
}

// WithDetails returns a copy of the error with the provided details merged in.
// This is useful for adding context without mutating the original error.
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

// IsTransient reports whether err is an AppError carrying a transient code.
// Non-AppError errors are considered permanent; they indicate programmer
// mistakes or malformed payloads, not upstream flakiness.
func IsTransient(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Transient()
	}
	return false
}

// IsFatal reports whether err should abort the whole client run.
func IsFatal(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code.Fatal()
	}
	return false
}
