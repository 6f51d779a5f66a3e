package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a malformed or out-of-bounds request
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeUnavailable indicates the document store could not serve any strategy
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"

	// ErrorTypeDegraded indicates a single retrieval strategy failed or timed out
	ErrorTypeDegraded ErrorType = "DEGRADED"

	// ErrorTypeConversion indicates a raw document could not be coerced into an entity
	ErrorTypeConversion ErrorType = "CONVERSION"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewValidationErrorf formats a validation error message
func NewValidationErrorf(format string, args ...interface{}) *AppError {
	return NewValidationError(fmt.Sprintf(format, args...))
}

// NewUnavailableError creates an error for a fully unreachable upstream
func NewUnavailableError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewDegradedError creates an error for a single failed strategy
func NewDegradedError(strategy string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeDegraded,
		Message: fmt.Sprintf("strategy %s degraded", strategy),
		Err:     err,
	}
}

// NewConversionError creates an error for a document that failed coercion
func NewConversionError(docID, field string, err error) *AppError {
	msg := fmt.Sprintf("document %q: field %s", docID, field)
	if docID == "" {
		msg = fmt.Sprintf("document: field %s", field)
	}
	return &AppError{
		Type:    ErrorTypeConversion,
		Message: msg,
		Err:     err,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// TypeOf returns the type of the first AppError in err's chain, or ErrorTypeInternal.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsType reports whether err's chain contains an AppError of type t.
func IsType(err error, t ErrorType) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == t
}
