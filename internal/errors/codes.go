// Package errors provides structured error handling for loreseek.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO / blob store errors
//   - 3XX: Transient store and network errors (retryable)
//   - 4XX: Validation and document errors
//   - 5XX: Lifecycle and internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file, disk, and blob store I/O errors.
	CategoryIO Category = "IO"
	// CategoryTransient indicates transient store/network errors.
	CategoryTransient Category = "TRANSIENT"
	// CategoryValidation indicates input and document validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryLifecycle indicates rebuild lifecycle errors.
	CategoryLifecycle Category = "LIFECYCLE"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO / blob errors (200-299)
	ErrCodeBlobNotFound    = "ERR_201_BLOB_NOT_FOUND"
	ErrCodeBlobUnavailable = "ERR_202_BLOB_UNAVAILABLE"
	ErrCodeCorruptIndex    = "ERR_203_CORRUPT_INDEX"

	// Transient store/network errors (300-399), retryable
	ErrCodeStoreTimeout     = "ERR_301_STORE_TIMEOUT"
	ErrCodeStoreUnavailable = "ERR_302_STORE_UNAVAILABLE"
	ErrCodeEmbedFailed      = "ERR_303_EMBED_FAILED"

	// Validation / document errors (400-499)
	ErrCodeMalformedDocument = "ERR_401_MALFORMED_DOCUMENT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeInvalidWeights    = "ERR_403_INVALID_WEIGHTS"

	// Lifecycle / internal errors (500-599)
	ErrCodeRebuildInProgress    = "ERR_501_REBUILD_IN_PROGRESS"
	ErrCodeSwapAtomicityUnknown = "ERR_502_SWAP_ATOMICITY_UNKNOWN"
	ErrCodeRollbackCleanup      = "ERR_503_ROLLBACK_CLEANUP"
	ErrCodeIndexWrite           = "ERR_504_INDEX_WRITE"
	ErrCodeInternal             = "ERR_505_INTERNAL"
)

// categoryFromCode derives the category from the code's number block.
func categoryFromCode(code string) Category {
	switch {
	case len(code) < 5:
		return CategoryInternal
	case code[4] == '1':
		return CategoryConfig
	case code[4] == '2':
		return CategoryIO
	case code[4] == '3':
		return CategoryTransient
	case code[4] == '4':
		return CategoryValidation
	case code[4] == '5':
		if code == ErrCodeInternal {
			return CategoryInternal
		}
		return CategoryLifecycle
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity. Ambiguous swap outcomes are fatal and
// require an operator; cleanup failures only degrade.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeSwapAtomicityUnknown:
		return SeverityFatal
	case ErrCodeRollbackCleanup, ErrCodeMalformedDocument, ErrCodeBlobUnavailable:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether operations failing with this code may be
// retried by the caller.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeStoreTimeout, ErrCodeStoreUnavailable, ErrCodeEmbedFailed:
		return true
	default:
		return false
	}
}
