package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/stack-service/tax_service/pkg/errors"
	"github.com/stack-service/tax_service/pkg/logger"
	"github.com/stack-service/tax_service/pkg/metrics"
)

type Config struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

func DefaultConfig() Config {
	return Config{
		MaxRequests:  3,
		Interval:     10 * time.Second,
		Timeout:      60 * time.Second,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

// New builds a breaker whose failure count ignores answers such as not-found
// or validation errors; only dependency faults trip it.
func New(name string, cfg Config, log *logger.Logger) *gobreaker.CircuitBreaker {
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 3
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.6
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.IsCircuitBreakerError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateCircuitBreakerState(name, stateValue(to))
			if log != nil {
				log.Warnw("Circuit breaker state changed",
					"breaker", name,
					"from", from.String(),
					"to", to.String())
			}
		},
	}
	metrics.UpdateCircuitBreakerState(name, 0)
	return gobreaker.NewCircuitBreaker(settings)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// IsOpen reports whether err was produced by a breaker refusing the call
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
