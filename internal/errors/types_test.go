package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	bare := New(ErrCodeInvalidConfig, "poll interval out of range")
	assert.Equal(t, "INVALID_CONFIG: poll interval out of range", bare.Error())

	wrapped := Wrap(errors.New("unexpected end of JSON input"), ErrCodeMalformedData, "bad reader output")
	assert.Equal(t, "MALFORMED_DATA: bad reader output: unexpected end of JSON input", wrapped.Error())
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(cause, ErrCodeDatabaseQuery, "query failed")

	assert.ErrorIs(t, err, cause)

	var appErr *AppError
	require.True(t, errors.As(fmt.Errorf("outer: %w", err), &appErr))
	assert.Equal(t, ErrCodeDatabaseQuery, appErr.Code)
}

func TestWithContext(t *testing.T) {
	err := New(ErrCodeTimeout, "dispatcher timed out").
		WithContext("timeout_sec", 600).
		WithContext("process", "dispatcher")

	assert.Equal(t, 600, err.Context["timeout_sec"])
	assert.Equal(t, "dispatcher", err.Context["process"])
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(WrapRetryable(errors.New("transient"), ErrCodeReaderProcess, "reader failed")))
	assert.False(t, IsRetryable(New(ErrCodeInvalidConfig, "bad config")))
	assert.False(t, IsRetryable(errors.New("plain error")))
	assert.False(t, IsRetryable(nil))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeMalformedData, GetCode(NewMalformedDataError("bad payload", nil)))
	assert.Equal(t, ErrCodeInternalError, GetCode(errors.New("plain error")))
}

func TestNewProcessError(t *testing.T) {
	err := NewProcessError(ErrCodeDispatcherProcess, "dispatcher", 1, "signal-cli unreachable")

	assert.True(t, err.Retryable, "a failed collaborator is retried on the next poll")
	assert.Equal(t, ErrCodeDispatcherProcess, err.Code)
	assert.Contains(t, err.Error(), "dispatcher exited with code 1")
	assert.Equal(t, 1, err.Context["exit_code"])
	assert.Equal(t, "signal-cli unreachable", err.Context["output"])
}

func TestNewDatabaseError(t *testing.T) {
	cause := errors.New("database is locked")
	err := NewDatabaseError("ingest messages", cause)

	assert.Equal(t, ErrCodeDatabaseQuery, err.Code)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "ingest messages", err.Context["operation"])
}
