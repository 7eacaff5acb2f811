package types

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by pipeline stage.
type ErrorCategory string

const (
	ErrCategoryInput     ErrorCategory = "INPUT"
	ErrCategoryAlignment ErrorCategory = "ALIGNMENT"
	ErrCategoryArchive   ErrorCategory = "ARCHIVE"
	ErrCategoryCatalog   ErrorCategory = "CATALOG"
	ErrCategoryStorage   ErrorCategory = "STORAGE"
)

// Error codes for each category.
const (
	// Input codes
	CodeParseFailed  = "PARSE_FAILED"
	CodeMissingField = "MISSING_FIELD"
	CodeNotMonotonic = "NOT_MONOTONIC"

	// Alignment codes. Every alignment error is a data-integrity problem:
	// none is retryable and none permits a partial archive write.
	CodeInputMismatch       = "INPUT_MISMATCH"
	CodeNegativeTimestamp   = "NEGATIVE_TIMESTAMP"
	CodeAlignmentImpossible = "ALIGNMENT_IMPOSSIBLE"

	// Archive codes
	CodeWriteFailed = "WRITE_FAILED"

	// Catalog codes
	CodeRegisterFailed = "REGISTER_FAILED"

	// Storage codes
	CodeUploadFailed = "UPLOAD_FAILED"
)

// ConversionError is the structured error type used throughout the pipeline.
type ConversionError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error returns a formatted error string.
func (e *ConversionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *ConversionError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *ConversionError) Is(target error) bool {
	var t *ConversionError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// WithDetails returns a copy of the error with additional details attached.
func (e *ConversionError) WithDetails(details map[string]interface{}) *ConversionError {
	cp := *e
	cp.Details = details
	return &cp
}

// NewError creates a new ConversionError.
func NewError(category ErrorCategory, code, message string) *ConversionError {
	return &ConversionError{Category: category, Code: code, Message: message}
}

// WrapError creates a new ConversionError wrapping an existing error.
func WrapError(category ErrorCategory, code, message string, cause error) *ConversionError {
	return &ConversionError{Category: category, Code: code, Message: message, Cause: cause}
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a ConversionError.
func GetCategory(err error) ErrorCategory {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
func GetCode(err error) string {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// Convenience constructors for common errors.

func NewAlignmentError(code, message string) *ConversionError {
	return NewError(ErrCategoryAlignment, code, message)
}

func NewInputError(code, message string, cause error) *ConversionError {
	return WrapError(ErrCategoryInput, code, message, cause)
}

func NewArchiveError(message string, cause error) *ConversionError {
	return WrapError(ErrCategoryArchive, CodeWriteFailed, message, cause)
}

func NewCatalogError(message string, cause error) *ConversionError {
	return WrapError(ErrCategoryCatalog, CodeRegisterFailed, message, cause)
}

func NewStorageError(message string, cause error) *ConversionError {
	return WrapError(ErrCategoryStorage, CodeUploadFailed, message, cause)
}
