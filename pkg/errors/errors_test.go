package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_IsMatchesCodeAndType(t *testing.T) {
	err := WrapWithType(errors.New("no rows"), ErrorTypeNotFound, CodeSuggestionNotFound, "suggestion s1 not found")
	wrapped := fmt.Errorf("handler: %w", err)

	assert.True(t, Is(wrapped, ErrSuggestionNotFound))
	assert.False(t, Is(wrapped, ErrTaxSummaryNotFound))
	assert.Equal(t, http.StatusNotFound, GetStatusCode(wrapped))
	assert.Equal(t, CodeSuggestionNotFound, GetCode(wrapped))
}

func TestAppError_WithDetail(t *testing.T) {
	err := NewValidationError("bad status").WithDetail("from", "executed").WithDetail("to", "pending")

	assert.Equal(t, map[string]string{"from": "executed", "to": "pending"}, GetDetails(err))
	assert.Equal(t, http.StatusBadRequest, GetStatusCode(err))
	assert.Nil(t, GetDetails(errors.New("plain")))
}

func TestGetStatusCode_PlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(errors.New("boom")))
	assert.Equal(t, CodeInternal, GetCode(errors.New("boom")))
	assert.Equal(t, ErrorTypeInternal, GetType(errors.New("boom")))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ""},
		{"app error", NewConflictError("dup"), ErrorTypeConflict},
		{"deadline", context.DeadlineExceeded, ErrorTypeTimeout},
		{"canceled", context.Canceled, ErrorTypeInternal},
		{"no rows", sql.ErrNoRows, ErrorTypeNotFound},
		{"conn done", sql.ErrConnDone, ErrorTypeUnavailable},
		{"refused text", errors.New("dial tcp 127.0.0.1:5432: connection refused"), ErrorTypeTransient},
		{"timeout text", errors.New("i/o timeout"), ErrorTypeTimeout},
		{"duplicate text", errors.New("duplicate key value violates unique constraint"), ErrorTypeConflict},
		{"other", errors.New("boom"), ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestIsCircuitBreakerError(t *testing.T) {
	assert.True(t, IsCircuitBreakerError(errors.New("connection reset by peer")))
	assert.True(t, IsCircuitBreakerError(context.DeadlineExceeded))
	assert.False(t, IsCircuitBreakerError(ErrRecordNotFound))
	assert.False(t, IsCircuitBreakerError(NewValidationError("bad")))
}

func TestWrapGeneration_KeepsUnavailableCause(t *testing.T) {
	outage := WrapWithType(errors.New("circuit breaker is open"), ErrorTypeUnavailable, CodeStoreUnavailable, "record store unavailable")

	err := WrapGeneration(outage, "failed to load tax summary")

	assert.Equal(t, CodeStoreUnavailable, GetCode(err))
	assert.Equal(t, http.StatusServiceUnavailable, GetStatusCode(err))
	assert.True(t, IsRetryable(err))
	assert.Contains(t, GetDetails(err)["cause"], "circuit breaker is open")
}

func TestWrapEvaluation_RecordsCause(t *testing.T) {
	err := WrapEvaluation(errors.New("failed to filter GermanCapitalGain: pq: relation does not exist"), "failed to load aggregates")

	assert.Equal(t, CodeEvaluationFailed, GetCode(err))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(err))
	assert.Equal(t, "failed to load aggregates", err.Message)
	assert.Contains(t, GetDetails(err)["cause"], "relation does not exist")

	notFound := WrapGeneration(ErrRecordNotFound, "failed to load asset")
	assert.Equal(t, CodeGenerationFailed, GetCode(notFound))
}
