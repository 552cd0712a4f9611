package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WrapWithType wraps an error with a specific error type
func WrapWithType(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		Err:        err,
		Retryable:  IsTransient(errType),
		StatusCode: statusForType(errType),
	}
}

// WrapInternal wraps an internal error
func WrapInternal(err error, message string) *AppError {
	return WrapWithType(err, ErrorTypeInternal, CodeInternal, message)
}

// WrapNotFound wraps a not found error
func WrapNotFound(err error, message string) *AppError {
	return WrapWithType(err, ErrorTypeNotFound, CodeNotFound, message)
}

// WrapGeneration wraps a storage failure raised during a harvesting run
func WrapGeneration(err error, message string) *AppError {
	return wrapStoreFailure(err, CodeGenerationFailed, message)
}

// WrapEvaluation wraps a failure raised while loading aggregates or applying jurisdiction rules
func WrapEvaluation(err error, message string) *AppError {
	return wrapStoreFailure(err, CodeEvaluationFailed, message)
}

// wrapStoreFailure keeps the type and code of an unavailable, transient or
// timed out dependency and records the underlying message as the "cause" detail.
func wrapStoreFailure(err error, code, message string) *AppError {
	errType := ErrorTypeInternal
	var inner *AppError
	if errors.As(err, &inner) && IsTransient(inner.Type) {
		errType, code = inner.Type, inner.Code
	}

	wrapped := WrapWithType(err, errType, code, message)
	if err != nil {
		wrapped.WithDetail("cause", err.Error())
	}
	return wrapped
}

// IsTransient determines if an error type is transient
func IsTransient(errType ErrorType) bool {
	switch errType {
	case ErrorTypeTransient, ErrorTypeTimeout, ErrorTypeUnavailable:
		return true
	default:
		return false
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       CodeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       CodeConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       CodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}
