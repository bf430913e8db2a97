// Package errors defines the categorized error taxonomy shared by the
// service and API layers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Category classifies an error for logging and HTTP mapping.
type Category string

const (
	// CategoryUpstream covers provider request failures and malformed
	// payloads. Fatal for the ingestion cycle that hit them.
	CategoryUpstream Category = "upstream"
	// CategoryValidation covers rejected request parameters.
	CategoryValidation Category = "validation"
	// CategoryAuthorization covers bearer-token mismatches.
	CategoryAuthorization Category = "authorization"
	// CategoryDatabase covers storage failures.
	CategoryDatabase Category = "database"
	// CategoryBackfill covers gap-fill failures; callers log these as
	// warnings and never fail the enclosing request on them.
	CategoryBackfill Category = "backfill"
	// CategorySystem is the fallback for anything uncategorized.
	CategorySystem Category = "system"
)

// CategorizedError carries a category, an HTTP status and a stable code
// alongside the message and wrapped cause.
type CategorizedError struct {
	Category   Category
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// NewUpstreamError wraps a provider request failure.
func NewUpstreamError(request string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: http.StatusBadGateway,
		Code:       "UPSTREAM_FAILURE",
		Message:    fmt.Sprintf("provider request failed: %s", request),
		Cause:      cause,
		Details: map[string]interface{}{
			"request": request,
		},
	}
}

// NewValidationError rejects a request parameter before any work happens.
func NewValidationError(param, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter %q: %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewUnauthorizedError rejects a request whose bearer token does not match
// the configured secret.
func NewUnauthorizedError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
	}
}

// NewDatabaseError wraps a storage failure.
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewBackfillError wraps a gap-fill failure.
func NewBackfillError(timeframe string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryBackfill,
		StatusCode: http.StatusInternalServerError,
		Code:       "BACKFILL_FAILURE",
		Message:    fmt.Sprintf("backfill failed for timeframe %q", timeframe),
		Cause:      cause,
		Details: map[string]interface{}{
			"timeframe": timeframe,
		},
	}
}

// NewInternalError wraps anything uncategorized.
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize normalizes an arbitrary error into a CategorizedError.
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}
	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr
	}
	return NewInternalError(err.Error(), err)
}
