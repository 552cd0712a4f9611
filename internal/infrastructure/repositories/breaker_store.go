package repositories

import (
	"context"

	"github.com/sony/gobreaker"

	"github.com/stack-service/tax_service/internal/domain/repositories"
	"github.com/stack-service/tax_service/pkg/circuitbreaker"
	"github.com/stack-service/tax_service/pkg/errors"
)

// BreakerStore guards a record store with a circuit breaker
type BreakerStore struct {
	inner   repositories.RecordStore
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps inner with cb
func NewBreakerStore(inner repositories.RecordStore, cb *gobreaker.CircuitBreaker) *BreakerStore {
	return &BreakerStore{inner: inner, breaker: cb}
}

func (s *BreakerStore) Filter(ctx context.Context, collection string, criteria repositories.Criteria) ([]repositories.Record, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.inner.Filter(ctx, collection, criteria)
	})
	if err != nil {
		return nil, mapBreakerError(err)
	}
	return result.([]repositories.Record), nil
}

func (s *BreakerStore) Create(ctx context.Context, collection string, data interface{}) (repositories.Record, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.inner.Create(ctx, collection, data)
	})
	if err != nil {
		return repositories.Record{}, mapBreakerError(err)
	}
	return result.(repositories.Record), nil
}

func (s *BreakerStore) Update(ctx context.Context, collection, id string, patch map[string]interface{}) (repositories.Record, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.inner.Update(ctx, collection, id, patch)
	})
	if err != nil {
		return repositories.Record{}, mapBreakerError(err)
	}
	return result.(repositories.Record), nil
}

func (s *BreakerStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.inner.Delete(ctx, collection, id)
	})
	return mapBreakerError(err)
}

// WithinTx runs the whole transaction as one breaker call. Stores without
// transaction support run fn against the guarded store directly.
func (s *BreakerStore) WithinTx(ctx context.Context, fn func(repositories.RecordStore) error) error {
	tx, ok := s.inner.(repositories.Transactor)
	if !ok {
		return fn(s)
	}
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, tx.WithinTx(ctx, fn)
	})
	return mapBreakerError(err)
}

func mapBreakerError(err error) error {
	if err == nil {
		return nil
	}
	if circuitbreaker.IsOpen(err) {
		return errors.WrapWithType(err, errors.ErrorTypeUnavailable, errors.CodeStoreUnavailable, "record store unavailable")
	}
	return err
}
