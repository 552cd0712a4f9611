package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal server errors
	ErrorTypeInternal ErrorType = "internal"

	// ErrorTypeValidation represents input validation errors
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeNotFound represents resource not found errors
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeConflict represents resource conflict errors
	ErrorTypeConflict ErrorType = "conflict"

	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeUnavailable represents a dependency that refuses work (open breaker, lost connection)
	ErrorTypeUnavailable ErrorType = "unavailable"

	// ErrorTypeTransient represents transient errors
	ErrorTypeTransient ErrorType = "transient"
)

// Error codes surfaced to API callers
const (
	CodeInternal                  = "INTERNAL_ERROR"
	CodeValidation                = "VALIDATION_ERROR"
	CodeNotFound                  = "NOT_FOUND"
	CodeConflict                  = "CONFLICT"
	CodeTimeout                   = "TIMEOUT"
	CodeStoreUnavailable          = "STORE_UNAVAILABLE"
	CodeTaxSummaryNotFound        = "TAX_SUMMARY_NOT_FOUND"
	CodeGenerationFailed          = "GENERATION_FAILED"
	CodeRefreshIncomplete         = "SUGGESTION_REFRESH_INCOMPLETE"
	CodeEvaluationFailed          = "EVALUATION_FAILED"
	CodeRegenerationInProgress    = "REGENERATION_IN_PROGRESS"
	CodeInvalidStatusTransition   = "INVALID_STATUS_TRANSITION"
	CodeSuggestionNotFound        = "SUGGESTION_NOT_FOUND"
	CodeRecordNotFound            = "RECORD_NOT_FOUND"
)

// AppError represents an application error with additional context
type AppError struct {
	Type       ErrorType         `json:"type"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Err        error             `json:"-"`
	Retryable  bool              `json:"retryable"`
	StatusCode int               `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on code and type so sentinel values work with errors.Is
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Sentinel errors for errors.Is comparisons
var (
	ErrNotFound = &AppError{
		Type:       ErrorTypeNotFound,
		Code:       CodeNotFound,
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrRecordNotFound = &AppError{
		Type:       ErrorTypeNotFound,
		Code:       CodeRecordNotFound,
		Message:    "Record not found",
		StatusCode: http.StatusNotFound,
	}

	ErrTaxSummaryNotFound = &AppError{
		Type:       ErrorTypeNotFound,
		Code:       CodeTaxSummaryNotFound,
		Message:    "Tax summary not found",
		StatusCode: http.StatusNotFound,
	}

	ErrSuggestionNotFound = &AppError{
		Type:       ErrorTypeNotFound,
		Code:       CodeSuggestionNotFound,
		Message:    "Suggestion not found",
		StatusCode: http.StatusNotFound,
	}

	ErrRegenerationInProgress = &AppError{
		Type:       ErrorTypeConflict,
		Code:       CodeRegenerationInProgress,
		Message:    "Suggestion regeneration already in progress for this portfolio and tax year",
		StatusCode: http.StatusConflict,
	}

	ErrStoreUnavailable = &AppError{
		Type:       ErrorTypeUnavailable,
		Code:       CodeStoreUnavailable,
		Message:    "Record store unavailable",
		StatusCode: http.StatusServiceUnavailable,
		Retryable:  true,
	}
)

// New creates a new AppError
func New(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		StatusCode: statusForType(errType),
	}
}

func statusForType(errType ErrorType) int {
	switch errType {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypeUnavailable, ErrorTypeTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetType returns the error type
func GetType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// GetCode returns the error code
func GetCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// GetStatusCode returns the HTTP status code for an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.StatusCode != 0 {
			return appErr.StatusCode
		}
		return statusForType(appErr.Type)
	}
	return http.StatusInternalServerError
}

// GetDetails returns the details map of an AppError, or nil
func GetDetails(err error) map[string]string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Details
	}
	return nil
}

// Is and As re-export the standard helpers so callers need only one errors import
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }
