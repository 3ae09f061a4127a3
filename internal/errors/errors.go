package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the structured error type for userindex.
// It carries the context needed for retry decisions, logging and user presentation.
type AppError struct {
	// Code is the unique error code (e.g., "ERR_405_USER_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Source, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code, so errors.Is(err, errors.New(code, "", nil)) works.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *AppError) WithSuggestion(suggestion string) *AppError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AppError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an AppError from an existing error.
// The error's message becomes the AppError message.
func Wrap(code string, err error) *AppError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *AppError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *AppError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *AppError {
	return New(ErrCodeInternal, message, cause)
}

// SourceUnavailable reports a transient remote failure. Retryable.
func SourceUnavailable(message string, cause error) *AppError {
	return New(ErrCodeSourceUnavailable, message, cause).
		WithSuggestion("Check that the user source is reachable, then run 'userindex load' again")
}

// EmptyBatch reports a batch with no usable records. The reason detail is
// one of "missing", "empty" or "all_invalid".
func EmptyBatch(collection, reason string) *AppError {
	return New(ErrCodeEmptyBatch,
		fmt.Sprintf("source returned no usable %q records", collection), nil).
		WithDetail("collection", collection).
		WithDetail("reason", reason)
}

// NotFound reports a point lookup miss.
func NotFound(key, value string) *AppError {
	return New(ErrCodeUserNotFound, fmt.Sprintf("user with %s %s not found", key, value), nil).
		WithDetail(key, value)
}

// IngestionError wraps the cause of a failed ingestion run.
func IngestionError(cause error) *AppError {
	return New(ErrCodeIngestionFailed, "ingestion failed: "+cause.Error(), cause)
}

// IsRetryable checks if an error, or any AppError in its chain, is retryable.
func IsRetryable(err error) bool {
	var ae *AppError
	if stderrors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// IsFatal reports whether any AppError in the chain has fatal severity.
func IsFatal(err error) bool {
	for err != nil {
		if ae, ok := err.(*AppError); ok && ae.Severity == SeverityFatal {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// HasCode reports whether any AppError in the chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		if ae, ok := err.(*AppError); ok && ae.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// GetCode extracts the error code of the outermost AppError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var ae *AppError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category of the outermost AppError in the chain.
func GetCategory(err error) Category {
	var ae *AppError
	if stderrors.As(err, &ae) {
		return ae.Category
	}
	return ""
}
