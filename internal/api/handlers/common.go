package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/stack-service/tax_service/internal/api/middleware"
	"github.com/stack-service/tax_service/pkg/errors"
	"github.com/stack-service/tax_service/pkg/logger"
	"github.com/stack-service/tax_service/pkg/tracing"
)

// ErrorResponse is the error body of the harvesting endpoints
type ErrorResponse struct {
	Success   bool              `json:"success"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	TraceID   string            `json:"trace_id,omitempty"`
}

// getRequestID extracts request ID from context
func getRequestID(c *gin.Context) string {
	return c.GetString(middleware.RequestIDKey)
}

// requestLogger returns the request scoped logger set by the logging middleware
func requestLogger(c *gin.Context, fallback *logger.Logger) *logger.Logger {
	if v, ok := c.Get(middleware.LoggerKey); ok {
		if l, ok := v.(*logger.Logger); ok {
			return l
		}
	}
	return fallback
}

// respondError maps an error to its status code and the standard error body
func respondError(c *gin.Context, err error) {
	status := errors.GetStatusCode(err)
	code := errors.GetCode(err)
	message := "Internal server error"
	var appErr *errors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}

	c.JSON(status, ErrorResponse{
		Success:   false,
		Code:      code,
		Message:   message,
		Details:   errors.GetDetails(err),
		RequestID: getRequestID(c),
		TraceID:   tracing.GetTraceIDFromContext(c.Request.Context()),
	})
}

// respondBadRequest sends a validation error
func respondBadRequest(c *gin.Context, message string) {
	respondError(c, errors.NewValidationError(message))
}
