package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/stack-service/tax_service/internal/domain/repositories"
	"github.com/stack-service/tax_service/pkg/errors"
	"github.com/stack-service/tax_service/pkg/metrics"
	"github.com/stack-service/tax_service/pkg/tracing"
)

// MemoryStore is an in-process record store used for local runs and tests
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]repositories.Record
	clock       func() time.Time
}

// NewMemoryStore creates an empty in-memory record store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]repositories.Record),
		clock:       time.Now,
	}
}

// WithClock overrides the timestamp source
func (s *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	s.clock = clock
	return s
}

// Filter returns records of collection whose top-level fields equal criteria, in insertion order
func (s *MemoryStore) Filter(ctx context.Context, collection string, criteria repositories.Criteria) (records []repositories.Record, err error) {
	_, done := observeMemory(ctx, "FILTER", collection)
	defer func() { done(err, int64(len(records))) }()

	want := make(map[string][]byte, len(criteria))
	for field, value := range criteria {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, errors.NewValidationError(fmt.Sprintf("invalid filter value for %s: %v", field, err))
		}
		want[field] = encoded
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.collections[collection] {
		ok, err := matches(record.Data, want)
		if err != nil {
			return nil, fmt.Errorf("failed to filter %s: %w", collection, err)
		}
		if ok {
			records = append(records, cloneRecord(record))
		}
	}
	return records, nil
}

// Create stores data as a new record
func (s *MemoryStore) Create(ctx context.Context, collection string, data interface{}) (record repositories.Record, err error) {
	_, done := observeMemory(ctx, "CREATE", collection)
	defer func() { done(err, 1) }()

	doc, err := toDocument(data)
	if err != nil {
		return repositories.Record{}, errors.NewValidationError(fmt.Sprintf("invalid %s payload: %v", collection, err))
	}
	id := ensureID(doc)

	payload, err := json.Marshal(doc)
	if err != nil {
		return repositories.Record{}, fmt.Errorf("failed to encode %s: %w", collection, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.collections[collection] {
		if existing.ID == id {
			return repositories.Record{}, errors.NewConflictError(fmt.Sprintf("%s %s already exists", collection, id))
		}
	}

	now := s.clock()
	record = repositories.Record{ID: id, Data: payload, CreatedAt: now, UpdatedAt: now}
	s.collections[collection] = append(s.collections[collection], record)
	return cloneRecord(record), nil
}

// Update merges patch into the stored document
func (s *MemoryStore) Update(ctx context.Context, collection, id string, patch map[string]interface{}) (record repositories.Record, err error) {
	_, done := observeMemory(ctx, "UPDATE", collection)
	defer func() { done(err, 1) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.collections[collection]
	for i := range records {
		if records[i].ID != id {
			continue
		}

		var doc map[string]interface{}
		if err := json.Unmarshal(records[i].Data, &doc); err != nil {
			return repositories.Record{}, fmt.Errorf("failed to decode %s %s: %w", collection, id, err)
		}
		for k, v := range patch {
			if k != "id" {
				doc[k] = v
			}
		}
		payload, err := json.Marshal(doc)
		if err != nil {
			return repositories.Record{}, errors.NewValidationError(fmt.Sprintf("invalid %s patch: %v", collection, err))
		}

		records[i].Data = payload
		records[i].UpdatedAt = s.clock()
		return cloneRecord(records[i]), nil
	}

	return repositories.Record{}, recordNotFound(collection, id)
}

// Delete removes one record
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) (err error) {
	_, done := observeMemory(ctx, "DELETE", collection)
	defer func() { done(err, 1) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.collections[collection]
	for i := range records {
		if records[i].ID == id {
			s.collections[collection] = append(records[:i:i], records[i+1:]...)
			return nil
		}
	}
	return recordNotFound(collection, id)
}

// WithinTx snapshots the store and restores it if fn fails. Writes from
// concurrent callers during fn are not isolated.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(repositories.RecordStore) error) error {
	s.mu.RLock()
	snapshot := make(map[string][]repositories.Record, len(s.collections))
	for name, records := range s.collections {
		snapshot[name] = append([]repositories.Record(nil), records...)
	}
	s.mu.RUnlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.collections = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// Count returns the number of records in collection
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func matches(data json.RawMessage, want map[string][]byte) (bool, error) {
	if len(want) == 0 {
		return true, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false, err
	}

	for field, expected := range want {
		actual, ok := fields[field]
		if !ok {
			return false, nil
		}
		var compacted bytes.Buffer
		if err := json.Compact(&compacted, actual); err != nil {
			return false, err
		}
		if !bytes.Equal(compacted.Bytes(), expected) {
			return false, nil
		}
	}
	return true, nil
}

func cloneRecord(r repositories.Record) repositories.Record {
	r.Data = append(json.RawMessage(nil), r.Data...)
	return r
}

func observeMemory(ctx context.Context, op, collection string) (context.Context, func(error, int64)) {
	start := time.Now()
	ctx, span := tracing.StartStoreSpan(ctx, tracing.StoreSpanConfig{
		System:     "memory",
		Operation:  op,
		Collection: collection,
	})
	return ctx, func(err error, rows int64) {
		metrics.RecordStoreOperation(op, collection, time.Since(start).Seconds(), err)
		tracing.EndStoreSpan(span, err, rows)
	}
}
