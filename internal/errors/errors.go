package errors

import (
	"errors"
	"fmt"
)

// SiftError is the structured error returned across docsift's pipeline stages.
// Batch stages absorb per-item failures; a SiftError means the whole operation
// could not proceed.
type SiftError struct {
	// Code is the unique error code (e.g., "ERR_501_INDEX_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is derived from the code's hundreds digit.
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates if the operation can be retried as-is.
	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface. The cause, when set, follows the message.
func (e *SiftError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SiftError) Unwrap() error {
	return e.Cause
}

// Is matches another SiftError by code, so errors.Is(err, &SiftError{Code: c}) works.
func (e *SiftError) Is(target error) bool {
	if t, ok := target.(*SiftError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail and returns the error for chaining.
func (e *SiftError) WithDetail(key, value string) *SiftError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets the user-facing suggestion and returns the error for chaining.
func (e *SiftError) WithSuggestion(suggestion string) *SiftError {
	e.Suggestion = suggestion
	return e
}

// New creates a SiftError. Category, severity and retryability come from the code.
func New(code string, message string, cause error) *SiftError {
	return &SiftError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code string, format string, args ...any) *SiftError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a SiftError from an existing error, reusing its message.
func Wrap(code string, err error) *SiftError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration error.
func ConfigError(message string, cause error) *SiftError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates a filesystem error.
func IOError(message string, cause error) *SiftError {
	return New(ErrCodeFileNotFound, message, cause)
}

// NetworkError creates a retryable network error.
func NetworkError(message string, cause error) *SiftError {
	return New(ErrCodeNetworkTimeout, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SiftError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable reports whether err (or anything it wraps) is a retryable SiftError.
func IsRetryable(err error) bool {
	var se *SiftError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// IsFatal reports whether err carries fatal severity.
func IsFatal(err error) bool {
	var se *SiftError
	if errors.As(err, &se) {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the code of the outermost SiftError in err's chain.
func GetCode(err error) string {
	var se *SiftError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category of the outermost SiftError in err's chain.
func GetCategory(err error) Category {
	var se *SiftError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// HasCode reports whether err's chain contains a SiftError with the given code.
func HasCode(err error, code string) bool {
	return errors.Is(err, &SiftError{Code: code})
}
