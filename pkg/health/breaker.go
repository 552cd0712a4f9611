package health

import (
	"context"

	"github.com/sony/gobreaker"
)

// BreakerChecker reports the state of a circuit breaker guarding a dependency
type BreakerChecker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerChecker creates a checker for cb
func NewBreakerChecker(name string, cb *gobreaker.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{name: name, breaker: cb}
}

// Check maps open to unhealthy and half-open to degraded
func (c *BreakerChecker) Check(ctx context.Context) CheckResult {
	state := c.breaker.State()
	counts := c.breaker.Counts()

	var result CheckResult
	switch state {
	case gobreaker.StateOpen:
		result = NewCheckResult(c.Name(), StatusUnhealthy, "circuit open", nil)
	case gobreaker.StateHalfOpen:
		result = NewDegradedResult(c.Name(), "circuit half-open")
	default:
		result = NewHealthyResult(c.Name(), "circuit closed")
	}

	return result.
		WithMetadata("state", state.String()).
		WithMetadata("consecutive_failures", counts.ConsecutiveFailures)
}

// Name returns the checker name
func (c *BreakerChecker) Name() string {
	return c.name + "_breaker"
}
