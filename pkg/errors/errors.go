// Package errors defines the error types shared across the settlement
// pipeline. Errors carry enough structure for callers to decide between
// retrying, failing a job permanently, or asking the user to re-authorize.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError: the input itself is malformed. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("validation error field=%s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// RateLimitError: the per-platform request window is exhausted.
// ResetAt is when the window rolls over and requests may resume.
type RateLimitError struct {
	Platform string
	ResetAt  time.Time
}

func (e RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded platform=%s reset_at=%s", e.Platform, e.ResetAt.Format(time.RFC3339))
}

// APIError: error from an external platform API call.
// Retryable marks server-side or network failures worth another attempt;
// client errors (4xx except 429) are terminal.
type APIError struct {
	Operation  string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e APIError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("api error operation=%s status=%d retryable=%t", e.Operation, e.StatusCode, e.Retryable)
	}
	return fmt.Sprintf("api error operation=%s status=%d retryable=%t: %v", e.Operation, e.StatusCode, e.Retryable, e.Err)
}

func (e APIError) Unwrap() error { return e.Err }

// NewAPIError creates an API error, deriving retryability from the status
// code: 0 (network), 429 and 5xx are retryable, other 4xx are not.
func NewAPIError(operation string, statusCode int, cause error) *APIError {
	retryable := statusCode == 0 || statusCode == 429 || statusCode >= 500
	return &APIError{Operation: operation, StatusCode: statusCode, Retryable: retryable, Err: cause}
}

// AuthError: a stored social token is missing, expired beyond refresh, or
// revoked upstream. NeedsReauth means the user must run the OAuth flow again;
// transient refresh failures keep NeedsReauth false.
type AuthError struct {
	Platform    string
	UserID      string
	NeedsReauth bool
	Err         error
}

func (e AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("auth error platform=%s user=%s needs_reauth=%t", e.Platform, e.UserID, e.NeedsReauth)
	}
	return fmt.Sprintf("auth error platform=%s user=%s needs_reauth=%t: %v", e.Platform, e.UserID, e.NeedsReauth, e.Err)
}

func (e AuthError) Unwrap() error { return e.Err }

// NewAuthError creates an auth error for a platform/user pair.
func NewAuthError(platform, userID string, needsReauth bool, cause error) *AuthError {
	return &AuthError{Platform: platform, UserID: userID, NeedsReauth: needsReauth, Err: cause}
}

// LockError: a distributed lock operation failed at the store level.
// Contention is not a LockError; acquisition reports that as (false, nil).
type LockError struct {
	Key       string
	Operation string
	Err       error
}

func (e LockError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("lock error operation=%s key=%s", e.Operation, e.Key)
	}
	return fmt.Sprintf("lock error operation=%s key=%s: %v", e.Operation, e.Key, e.Err)
}

func (e LockError) Unwrap() error { return e.Err }

// CacheError: a key-value store operation failed.
type CacheError struct {
	Operation string
	Key       string
	Err       error
}

func (e CacheError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cache error operation=%s key=%s", e.Operation, e.Key)
	}
	return fmt.Sprintf("cache error operation=%s key=%s: %v", e.Operation, e.Key, e.Err)
}

func (e CacheError) Unwrap() error { return e.Err }

// NewCacheError creates a cache error.
func NewCacheError(operation, key string, cause error) *CacheError {
	return &CacheError{Operation: operation, Key: key, Err: cause}
}

// DatabaseError: a persistence operation failed.
type DatabaseError struct {
	Operation string
	Err       error
}

func (e DatabaseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("database error operation=%s", e.Operation)
	}
	return fmt.Sprintf("database error operation=%s: %v", e.Operation, e.Err)
}

func (e DatabaseError) Unwrap() error { return e.Err }

// GatewayError: a payment gateway call failed. Transient failures
// (timeouts, 5xx, explicit gateway backpressure) are retried with backoff;
// permanent failures (rejected account, invalid amount) are terminal.
type GatewayError struct {
	Gateway   string
	Operation string
	Transient bool
	Err       error
}

func (e GatewayError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("gateway error gateway=%s operation=%s transient=%t", e.Gateway, e.Operation, e.Transient)
	}
	return fmt.Sprintf("gateway error gateway=%s operation=%s transient=%t: %v", e.Gateway, e.Operation, e.Transient, e.Err)
}

func (e GatewayError) Unwrap() error { return e.Err }

// NewGatewayError creates a gateway error.
func NewGatewayError(gateway, operation string, transient bool, cause error) *GatewayError {
	return &GatewayError{Gateway: gateway, Operation: operation, Transient: transient, Err: cause}
}

// BusinessRuleError: a domain rule was violated in a way that flags the
// result rather than aborting it (below-minimum payout, suspicious bot
// ratio). Carried on results as a warning, never retried.
type BusinessRuleError struct {
	Rule    string
	Message string
}

func (e BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation rule=%s: %s", e.Rule, e.Message)
}

// NewBusinessRuleError creates a business rule violation.
func NewBusinessRuleError(rule, message string) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message}
}

// IsRetryable reports whether an error is worth another attempt:
// retryable API errors, transient gateway errors, and rate limits
// (after their window resets). Validation and reauth errors never are.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Transient
	}
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return true
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return false
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return !authErr.NeedsReauth
	}
	var brErr *BusinessRuleError
	if errors.As(err, &brErr) {
		return false
	}
	return false
}

// NeedsReauth reports whether the error chain contains an auth error that
// requires the user to re-run the OAuth flow.
func NeedsReauth(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.NeedsReauth
}

// IsValidation reports whether the error chain contains a validation error.
func IsValidation(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}
