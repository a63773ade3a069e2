package errors

import (
	"fmt"
)

// ErrorCode categorizes daemon errors: process failures of the external
// collaborators, malformed data at the ingestion boundary, reconciliation
// ambiguity, and store/internal faults.
type ErrorCode string

const (
	// Configuration errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeMissingConfig ErrorCode = "MISSING_CONFIG"

	// Database errors
	ErrCodeDatabaseQuery     ErrorCode = "DATABASE_QUERY"
	ErrCodeDatabaseMigration ErrorCode = "DATABASE_MIGRATION"

	// External collaborator errors
	ErrCodeReaderProcess     ErrorCode = "READER_PROCESS"
	ErrCodeDispatcherProcess ErrorCode = "DISPATCHER_PROCESS"

	// Data errors
	ErrCodeMalformedData  ErrorCode = "MALFORMED_DATA"
	ErrCodeReconciliation ErrorCode = "RECONCILIATION"

	// Internal errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrCodeTimeout       ErrorCode = "TIMEOUT"
)

// AppError represents a structured application error
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Retryable bool                   `json:"retryable"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapRetryable wraps an error and marks it as retryable: the daemon will
// see the same work again on the next poll.
func WrapRetryable(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Retryable
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrCodeInternalError
}

// NewProcessError creates an error for a collaborator process that exited
// non-zero. Process failures are always transient to the daemon: the cycle
// aborts and runs again on the next poll.
func NewProcessError(code ErrorCode, process string, exitCode int, output string) *AppError {
	return WrapRetryable(nil, code, fmt.Sprintf("%s exited with code %d", process, exitCode)).
		WithContext("process", process).
		WithContext("exit_code", exitCode).
		WithContext("output", output)
}

// NewMalformedDataError creates an error for unusable reader output. The
// cycle fails with the store untouched; the same window is re-requested
// next poll.
func NewMalformedDataError(message string, err error) *AppError {
	return Wrap(err, ErrCodeMalformedData, message)
}

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation)
}
