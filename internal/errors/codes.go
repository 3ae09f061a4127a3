// Package errors provides structured error handling for userindex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (files, sockets, locks)
//   - 3XX: Remote source errors
//   - 4XX: Validation and lookup errors
//   - 5XX: Internal errors (store, index, ingestion)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategorySource indicates remote user source errors.
	CategorySource Category = "SOURCE"
	// CategoryValidation indicates input validation and lookup errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates store, index and pipeline errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"

	// IO errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeDiskFull       = "ERR_203_DISK_FULL"
	ErrCodeLockFailed     = "ERR_204_LOCK_FAILED"

	// Source errors (300-399)
	ErrCodeSourceUnavailable = "ERR_301_SOURCE_UNAVAILABLE"
	ErrCodeSourceTimeout     = "ERR_302_SOURCE_TIMEOUT"
	ErrCodeSourceInvalid     = "ERR_303_SOURCE_INVALID"

	// Validation errors (400-499)
	ErrCodeInvalidInput    = "ERR_401_INVALID_INPUT"
	ErrCodeEmptyBatch      = "ERR_402_EMPTY_BATCH"
	ErrCodeTransformFailed = "ERR_403_TRANSFORM_FAILED"
	ErrCodeQueryEmpty      = "ERR_404_QUERY_EMPTY"
	ErrCodeUserNotFound    = "ERR_405_USER_NOT_FOUND"
	ErrCodeVersionConflict = "ERR_406_VERSION_CONFLICT"
	ErrCodeDuplicateKey    = "ERR_407_DUPLICATE_KEY"

	// Internal errors (500-599)
	ErrCodeInternal            = "ERR_501_INTERNAL"
	ErrCodeStoreFailed         = "ERR_502_STORE_FAILED"
	ErrCodeSearchFailed        = "ERR_503_SEARCH_FAILED"
	ErrCodeIndexFailed         = "ERR_504_INDEX_FAILED"
	ErrCodeIngestionFailed     = "ERR_505_INGESTION_FAILED"
	ErrCodeIngestionInProgress = "ERR_506_INGESTION_IN_PROGRESS"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	numStr := code[4:7]

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategorySource
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeDiskFull:
		return SeverityFatal
	case ErrCodeUserNotFound, ErrCodeIngestionInProgress:
		return SeverityInfo
	}

	// Transient source errors get warning severity
	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a transient fault.
// An empty batch is a data-integrity signal and is never retried.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeSourceUnavailable, ErrCodeSourceTimeout:
		return true
	default:
		return false
	}
}
