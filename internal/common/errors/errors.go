// Package errors provides standardized error handling for the recruitment
// form-connection service.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"

	ErrCodeConnectionExpired ErrorCode = "CONNECTION_EXPIRED"
	ErrCodeCodeMismatch      ErrorCode = "CODE_MISMATCH"
	ErrCodeInvalidStructure  ErrorCode = "INVALID_STRUCTURE"

	ErrCodeFormNotFound         ErrorCode = "FORM_NOT_FOUND"
	ErrCodeMissingField         ErrorCode = "MISSING_FIELD"
	ErrCodeValidationIncidents  ErrorCode = "VALIDATION_INCIDENTS"
	ErrCodeDatabaseQueryFailed  ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeDatabaseInsertFailed ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewUnauthorizedError creates a non-retryable authorization error.
func NewUnauthorizedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthorized,
		Message:   "Caller is not authorized for this operation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable missing-record error.
func NewNotFoundError(entity, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", entity),
		Details:   fmt.Sprintf("%s: %s", entity, id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConnectionExpiredError creates a non-retryable error for a handshake
// connection past its TTL.
func NewConnectionExpiredError(key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConnectionExpired,
		Message:   "Form connection has expired",
		Details:   fmt.Sprintf("key: %s", key),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCodeMismatchError creates a non-retryable handshake validation error.
func NewCodeMismatchError() *StandardError {
	return &StandardError{
		Code:      ErrCodeCodeMismatch,
		Message:   "Validation code does not match the code announced by the script",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStructureError creates a non-retryable form layout error.
func NewInvalidStructureError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidStructure,
		Message:   "Form structure payload failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewFormNotFoundError creates a non-retryable error for an unknown script.
func NewFormNotFoundError(scriptID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFormNotFound,
		Message:   "No form matches the supplied script id",
		Details:   fmt.Sprintf("appsScriptId: %s", scriptID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingFieldError creates a non-retryable request validation error.
func NewMissingFieldError(field string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingField,
		Message:   "Required field missing or malformed",
		Details:   fmt.Sprintf("field: %s", field),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationIncidentsError creates a non-retryable error carrying the
// full list of field coercion incidents in its metadata.
func NewValidationIncidentsError(incidents interface{}) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationIncidents,
		Message:   "One or more fields could not be mapped onto the candidate",
		Retryable: false,
		Metadata: map[string]interface{}{
			"incidents": incidents,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseQueryFailedError creates a retryable store read error.
func NewDatabaseQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseQueryFailed,
		Message:   "Database query failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable store write error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected failure without leaking internals to
// the caller; the cause goes to Details for logging only.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Internal error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
