package errors

import (
	"errors"
	"fmt"
)

// LoreError is the structured error type for loreseek. It carries an error
// code plus enough context for logging and operator presentation.
type LoreError struct {
	// Code is the unique error code (e.g., "ERR_501_REBUILD_IN_PROGRESS").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Transient, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *LoreError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *LoreError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code, enabling errors.Is against code sentinels.
func (e *LoreError) Is(target error) bool {
	if t, ok := target.(*LoreError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *LoreError) WithDetail(key, value string) *LoreError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new LoreError with the given code and message.
// Category, severity, and the retryable flag are derived from the code.
func New(code string, message string, cause error) *LoreError {
	return &LoreError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Newf creates a new LoreError with a formatted message and no cause.
func Newf(code string, format string, args ...any) *LoreError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a LoreError from an existing error.
// The error's message becomes the LoreError message. Returns nil for nil.
func Wrap(code string, err error) *LoreError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// CodeSentinel returns a comparison target for errors.Is checks by code.
func CodeSentinel(code string) error {
	return &LoreError{Code: code}
}

// HasCode reports whether err or any error in its chain carries the code.
func HasCode(err error, code string) bool {
	return errors.Is(err, CodeSentinel(code))
}

// IsRetryable reports whether err or any wrapped LoreError is retryable.
func IsRetryable(err error) bool {
	var le *LoreError
	if errors.As(err, &le) {
		return le.Retryable
	}
	return false
}
