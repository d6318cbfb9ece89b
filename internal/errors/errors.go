// Package errors provides structured error types for sortcheck.
// All errors include a category, code, message, and retryable flag so callers
// can tell catalog, storage, parse, and ordering failures apart.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the component that raised them.
type ErrorCategory string

const (
	ErrCategoryCatalog    ErrorCategory = "CATALOG"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryParse      ErrorCategory = "PARSE"
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Catalog codes
	CodeNotFound    = "NOT_FOUND"
	CodeUnavailable = "UNAVAILABLE"

	// Storage codes
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"
	CodeReadFailed     = "READ_FAILED"

	// Parse codes
	CodeMalformedFile     = "MALFORMED_FILE"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeUnsupportedType   = "UNSUPPORTED_TYPE"

	// Validation codes
	CodeUnsortedData  = "UNSORTED_DATA"
	CodeInvalidKeyLen = "INVALID_KEY_LEN"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// SortcheckError is the structured error type used throughout the system.
type SortcheckError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *SortcheckError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *SortcheckError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *SortcheckError) Is(target error) bool {
	var t *SortcheckError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new SortcheckError.
func New(category ErrorCategory, code, message string) *SortcheckError {
	return &SortcheckError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new SortcheckError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *SortcheckError {
	return &SortcheckError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *SortcheckError) WithDetails(details map[string]interface{}) *SortcheckError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is marked retryable.
// sortcheck itself never retries; the flag is informational for callers.
func IsRetryable(err error) bool {
	var se *SortcheckError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a SortcheckError.
func GetCategory(err error) ErrorCategory {
	var se *SortcheckError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a SortcheckError.
func GetCode(err error) string {
	var se *SortcheckError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	case category == ErrCategoryCatalog && code == CodeUnavailable:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewCatalogError(code, message string, cause error) *SortcheckError {
	return Wrap(ErrCategoryCatalog, code, message, cause)
}

func NewStorageError(code, message string, cause error) *SortcheckError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewParseError(code, message string, cause error) *SortcheckError {
	return Wrap(ErrCategoryParse, code, message, cause)
}

func NewValidationError(code, message string) *SortcheckError {
	return New(ErrCategoryValidation, code, message)
}

func NewInternalError(message string, cause error) *SortcheckError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
