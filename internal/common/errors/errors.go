// Package errors provides standardized error handling for the assistant pipeline.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Client input errors (request rejected before any upstream call).
	ErrCodeMissingQuery ErrorCode = "MISSING_QUERY"
	ErrCodeMissingID    ErrorCode = "MISSING_ID"

	// Upstream credential / authorization errors.
	ErrCodeTokenRequestFailed ErrorCode = "TOKEN_REQUEST_FAILED"
	ErrCodeUpstreamForbidden  ErrorCode = "UPSTREAM_FORBIDDEN"

	// Upstream resource not provisioned / enabled.
	ErrCodeUpstreamNotFound ErrorCode = "UPSTREAM_NOT_FOUND"

	// Per-entity failures absorbed into partial results.
	ErrCodeEntityFetchFailed ErrorCode = "ENTITY_FETCH_FAILED"

	// Classifier output could not be parsed (replaced by defaults, logged only).
	ErrCodeIntentParsingFailed ErrorCode = "INTENT_PARSING_FAILED"

	// Final answer generation failed.
	ErrCodeCompletionFailed ErrorCode = "COMPLETION_FAILED"

	ErrCodeUpstreamRequestFailed ErrorCode = "UPSTREAM_REQUEST_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Hint      string    `json:"hint,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Remediation Hints
// ==========================

// Permission guidance surfaced with 403 responses so operators can fix the
// app registration without digging through upstream docs.
const (
	HintGraphPermissions = "Required permissions: User.Read.All (Application), and for search: Mail.Read, Calendars.Read, Files.Read.All"
	HintBCPermissions    = "Required permissions: Financials.ReadWrite.All (Application) - ensure admin consent is granted"
)

// Provisioning guidance surfaced with 404 responses from the financials API.
var BCNotFoundHints = []string{
	"Ensure Business Central is provisioned and licensed in your tenant",
	"Check if you have access to Business Central at https://businesscentral.dynamics.com",
	"Verify your subscription includes Business Central",
	"The API might be in beta for your region/environment",
}

// ==========================
// 3. Error Constructors
// ==========================

func NewMissingQueryError() *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingQuery,
		Message:   "Query parameter is required",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewMissingIDError(param string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingID,
		Message:   "Required id parameter is missing",
		Details:   fmt.Sprintf("parameter: %s", param),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewTokenRequestFailedError(audience string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTokenRequestFailed,
		Message:   "Failed to acquire upstream access token",
		Details:   fmt.Sprintf("audience: %s, error: %v", audience, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewUpstreamForbiddenError(service, hint string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamForbidden,
		Message:   "Insufficient privileges",
		Details:   fmt.Sprintf("service: %s, error: %v", service, err),
		Hint:      hint,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewUpstreamNotFoundError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamNotFound,
		Message:   "Upstream resource not available",
		Details:   fmt.Sprintf("service: %s, error: %v", service, err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewEntityFetchError(scope, id string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEntityFetchFailed,
		Message:   "Entity fetch failed",
		Details:   fmt.Sprintf("scope: %s, id: %s, error: %v", scope, id, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewIntentParsingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIntentParsingFailed,
		Message:   "Classifier response could not be parsed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewCompletionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCompletionFailed,
		Message:   "Failed to get response from completion service",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewUpstreamRequestError(service string, status int, body string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamRequestFailed,
		Message:   "Upstream request failed",
		Details:   fmt.Sprintf("service: %s, status: %d, body: %s", service, status, body),
		Retryable: status >= 500,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. HTTP Mapping
// ==========================

// AsStandard extracts a *StandardError from an error chain, if present.
func AsStandard(err error) (*StandardError, bool) {
	var se *StandardError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// HTTPStatus maps an error to the status code the request boundary should
// return. Per-entity failures never reach this mapping; they are absorbed
// into partial results below the boundary.
func HTTPStatus(err error) int {
	se, ok := AsStandard(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch se.Code {
	case ErrCodeMissingQuery, ErrCodeMissingID:
		return http.StatusBadRequest
	case ErrCodeUpstreamForbidden:
		return http.StatusForbidden
	case ErrCodeUpstreamNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func IsCode(err error, code ErrorCode) bool {
	se, ok := AsStandard(err)
	return ok && se.Code == code
}
