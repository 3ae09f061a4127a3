package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("connection refused")

	// When: wrapping with AppError
	appErr := New(ErrCodeSourceUnavailable, "user source unreachable", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, appErr)
	assert.Equal(t, originalErr, errors.Unwrap(appErr))
	assert.True(t, errors.Is(appErr, originalErr))
}

func TestAppError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "source error",
			code:     ErrCodeSourceTimeout,
			message:  "request timed out",
			expected: "[ERR_302_SOURCE_TIMEOUT] request timed out",
		},
		{
			name:     "lookup error",
			code:     ErrCodeUserNotFound,
			message:  "user with id 7 not found",
			expected: "[ERR_405_USER_NOT_FOUND] user with id 7 not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestAppError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := NotFound("id", "1")
	err2 := NotFound("email", "a@x.com")

	// Then: they match by code
	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, New(ErrCodeEmptyBatch, "", nil)))
}

func TestAppError_Is_MatchesThroughWrapping(t *testing.T) {
	// Given: an empty batch error wrapped by the ingestion error and fmt
	err := fmt.Errorf("run: %w", IngestionError(EmptyBatch("users", "empty")))

	// Then: both codes are reachable
	assert.True(t, errors.Is(err, New(ErrCodeEmptyBatch, "", nil)))
	assert.True(t, HasCode(err, ErrCodeIngestionFailed))
	assert.True(t, HasCode(err, ErrCodeEmptyBatch))
	assert.False(t, HasCode(err, ErrCodeSourceUnavailable))
	assert.Equal(t, ErrCodeIngestionFailed, GetCode(err))
}

func TestAppError_WithDetails_AddsContext(t *testing.T) {
	// Given: a base error
	err := New(ErrCodeTransformFailed, "record skipped", nil)

	// When: adding details
	err = err.WithDetail("index", "4").WithDetail("field", "age")

	// Then: details are available
	assert.Equal(t, "4", err.Details["index"])
	assert.Equal(t, "age", err.Details["field"])
}

func TestAppError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeLockFailed, CategoryIO},
		{ErrCodeSourceUnavailable, CategorySource},
		{ErrCodeSourceInvalid, CategorySource},
		{ErrCodeEmptyBatch, CategoryValidation},
		{ErrCodeUserNotFound, CategoryValidation},
		{ErrCodeStoreFailed, CategoryInternal},
		{ErrCodeIngestionFailed, CategoryInternal},
		{"BAD", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestAppError_SeverityFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		{ErrCodeDiskFull, SeverityFatal},
		{ErrCodeUserNotFound, SeverityInfo},
		{ErrCodeSourceUnavailable, SeverityWarning},
		{ErrCodeEmptyBatch, SeverityError},
		{ErrCodeStoreFailed, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestAppError_RetryableFromCode(t *testing.T) {
	tests := []struct {
		code          string
		wantRetryable bool
	}{
		{ErrCodeSourceUnavailable, true},
		{ErrCodeSourceTimeout, true},
		{ErrCodeSourceInvalid, false},
		{ErrCodeEmptyBatch, false},
		{ErrCodeStoreFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestEmptyBatch_CarriesReason(t *testing.T) {
	err := EmptyBatch("users", "missing")

	assert.Equal(t, ErrCodeEmptyBatch, err.Code)
	assert.Equal(t, "missing", err.Details["reason"])
	assert.Equal(t, "users", err.Details["collection"])
	assert.False(t, err.Retryable)
}

func TestSourceUnavailable_IsRetryableWithSuggestion(t *testing.T) {
	err := SourceUnavailable("GET failed", errors.New("dial tcp"))

	assert.True(t, err.Retryable)
	assert.NotEmpty(t, err.Suggestion)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestIsRetryable_ChecksRetryableFlag(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"retryable AppError", SourceUnavailable("down", nil), true},
		{"non-retryable AppError", EmptyBatch("users", "empty"), false},
		{"fmt-wrapped retryable error", fmt.Errorf("fetch: %w", New(ErrCodeSourceTimeout, "slow", nil)), true},
		{"standard error", errors.New("standard error"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal_ChecksFatalSeverity(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeDiskFull, "no space left", nil)))
	assert.False(t, IsFatal(NotFound("id", "3")))
	assert.False(t, IsFatal(errors.New("standard error")))
	assert.True(t, IsFatal(IngestionError(New(ErrCodeDiskFull, "no space left", nil))))
}
