package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeInvalidState indicates a status transition the state machine does not allow
	ErrorTypeInvalidState ErrorType = "INVALID_STATE"

	// ErrorTypeNoCandidates indicates matching ran but no provider qualified
	ErrorTypeNoCandidates ErrorType = "NO_CANDIDATES"

	// ErrorTypeUnavailable indicates the backing store could not be reached
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"
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

// NewInvalidStateError creates a new invalid state transition error
func NewInvalidStateError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInvalidState,
		Message: message,
	}
}

// NewNoCandidatesError creates a new no candidates error
func NewNoCandidatesError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNoCandidates,
		Message: message,
	}
}

// NewUnavailableError creates a new store unavailable error
func NewUnavailableError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeUnavailable,
		Message: message,
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

// TypeOf returns the type of the first AppError in err's chain, or "" if there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err's chain contains an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsNotFound reports whether err is a NOT_FOUND error
func IsNotFound(err error) bool { return IsType(err, ErrorTypeNotFound) }

// IsInvalidState reports whether err is an INVALID_STATE error
func IsInvalidState(err error) bool { return IsType(err, ErrorTypeInvalidState) }

// IsNoCandidates reports whether err is a NO_CANDIDATES error
func IsNoCandidates(err error) bool { return IsType(err, ErrorTypeNoCandidates) }

// IsUnavailable reports whether err is an UNAVAILABLE error
func IsUnavailable(err error) bool { return IsType(err, ErrorTypeUnavailable) }
