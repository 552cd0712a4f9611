package errors

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"strings"
	"syscall"
)

// ClassifyError classifies an error for circuit breaker and response logic
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrorTypeInternal
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrorTypeNotFound
	}
	if errors.Is(err, sql.ErrConnDone) {
		return ErrorTypeUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
		return ErrorTypeTransient
	}

	var syscallErr syscall.Errno
	if errors.As(err, &syscallErr) {
		switch syscallErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED:
			return ErrorTypeTransient
		case syscall.ETIMEDOUT:
			return ErrorTypeTimeout
		}
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded") {
		return ErrorTypeTimeout
	}

	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "connection reset") ||
		strings.Contains(errMsg, "broken pipe") {
		return ErrorTypeTransient
	}

	if strings.Contains(errMsg, "duplicate") || strings.Contains(errMsg, "already exists") {
		return ErrorTypeConflict
	}

	return ErrorTypeInternal
}

// IsCircuitBreakerError determines if an error should count against the record store breaker.
// Not-found and validation outcomes are answers, not failures.
func IsCircuitBreakerError(err error) bool {
	switch ClassifyError(err) {
	case ErrorTypeTimeout, ErrorTypeTransient, ErrorTypeUnavailable:
		return true
	default:
		return false
	}
}
