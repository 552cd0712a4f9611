package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/stack-service/tax_service/internal/domain/repositories"
	"github.com/stack-service/tax_service/pkg/errors"
	"github.com/stack-service/tax_service/pkg/metrics"
	"github.com/stack-service/tax_service/pkg/tracing"
)

// recordRow mirrors a row of the records table. Data is a plain []byte so
// database/sql copies the driver buffer on scan.
type recordRow struct {
	ID        string    `db:"id"`
	Data      []byte    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r recordRow) toRecord() repositories.Record {
	return repositories.Record{
		ID:        r.ID,
		Data:      json.RawMessage(r.Data),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// DefaultSlowQueryThreshold is the duration above which a statement is logged
const DefaultSlowQueryThreshold = 500 * time.Millisecond

// PostgresStore keeps every collection in one JSONB table
type PostgresStore struct {
	db        sqlx.ExtContext
	root      *sqlx.DB // nil when bound to a transaction
	logger    *zap.Logger
	slowQuery time.Duration
}

// NewPostgresStore creates a record store backed by PostgreSQL
func NewPostgresStore(db *sqlx.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:        db,
		root:      db,
		logger:    logger,
		slowQuery: DefaultSlowQueryThreshold,
	}
}

// WithSlowQueryThreshold overrides the slow statement threshold
func (s *PostgresStore) WithSlowQueryThreshold(threshold time.Duration) *PostgresStore {
	s.slowQuery = threshold
	return s
}

// Filter returns every record of collection whose data contains criteria,
// in insertion order
func (s *PostgresStore) Filter(ctx context.Context, collection string, criteria repositories.Criteria) (records []repositories.Record, err error) {
	ctx, done := s.observe(ctx, "FILTER", collection)
	defer func() { done(err, int64(len(records))) }()

	if criteria == nil {
		criteria = repositories.Criteria{}
	}
	filter, err := json.Marshal(criteria)
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid filter for %s: %v", collection, err))
	}

	query := `
		SELECT id, data, created_at, updated_at
		FROM records
		WHERE collection = $1 AND data @> $2::jsonb
		ORDER BY seq
	`

	var rows []recordRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, collection, string(filter)); err != nil {
		s.logger.Error("failed to filter records",
			zap.Error(err),
			zap.String("collection", collection),
		)
		return nil, fmt.Errorf("failed to filter %s: %w", collection, err)
	}

	records = make([]repositories.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, nil
}

// Create stores data as a new record. A missing or empty "id" field is
// replaced with a generated UUID.
func (s *PostgresStore) Create(ctx context.Context, collection string, data interface{}) (record repositories.Record, err error) {
	ctx, done := s.observe(ctx, "CREATE", collection)
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

	query := `
		INSERT INTO records (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		RETURNING id, data, created_at, updated_at
	`

	var row recordRow
	if err := sqlx.GetContext(ctx, s.db, &row, query, collection, id, string(payload)); err != nil {
		s.logger.Error("failed to create record",
			zap.Error(err),
			zap.String("collection", collection),
			zap.String("id", id),
		)
		return repositories.Record{}, fmt.Errorf("failed to create %s: %w", collection, err)
	}

	return row.toRecord(), nil
}

// Update merges patch into the stored document
func (s *PostgresStore) Update(ctx context.Context, collection, id string, patch map[string]interface{}) (record repositories.Record, err error) {
	ctx, done := s.observe(ctx, "UPDATE", collection)
	defer func() { done(err, 1) }()

	clean := make(map[string]interface{}, len(patch))
	for k, v := range patch {
		if k != "id" {
			clean[k] = v
		}
	}
	payload, err := json.Marshal(clean)
	if err != nil {
		return repositories.Record{}, errors.NewValidationError(fmt.Sprintf("invalid %s patch: %v", collection, err))
	}

	query := `
		UPDATE records
		SET data = data || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2
		RETURNING id, data, created_at, updated_at
	`

	var row recordRow
	if err := sqlx.GetContext(ctx, s.db, &row, query, collection, id, string(payload)); err != nil {
		if err == sql.ErrNoRows {
			return repositories.Record{}, recordNotFound(collection, id)
		}
		s.logger.Error("failed to update record",
			zap.Error(err),
			zap.String("collection", collection),
			zap.String("id", id),
		)
		return repositories.Record{}, fmt.Errorf("failed to update %s: %w", collection, err)
	}

	return row.toRecord(), nil
}

// Delete removes one record
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) (err error) {
	ctx, done := s.observe(ctx, "DELETE", collection)
	var affected int64
	defer func() { done(err, affected) }()

	query := `DELETE FROM records WHERE collection = $1 AND id = $2`

	result, err := s.db.ExecContext(ctx, query, collection, id)
	if err != nil {
		s.logger.Error("failed to delete record",
			zap.Error(err),
			zap.String("collection", collection),
			zap.String("id", id),
		)
		return fmt.Errorf("failed to delete %s: %w", collection, err)
	}

	affected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return recordNotFound(collection, id)
	}
	return nil
}

// WithinTx runs fn against a store bound to a single transaction. Nested
// calls reuse the outer transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(repositories.RecordStore) error) error {
	if s.root == nil {
		return fn(s)
	}

	tx, err := s.root.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txStore := &PostgresStore{db: tx, logger: s.logger, slowQuery: s.slowQuery}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) observe(ctx context.Context, op, collection string) (context.Context, func(error, int64)) {
	start := time.Now()
	ctx, span := tracing.StartStoreSpan(ctx, tracing.StoreSpanConfig{
		System:     "postgresql",
		Operation:  op,
		Collection: collection,
	})
	return ctx, func(err error, rows int64) {
		elapsed := time.Since(start)
		if s.slowQuery > 0 && elapsed > s.slowQuery {
			s.logger.Warn("Slow query detected",
				zap.String("operation", op),
				zap.String("collection", collection),
				zap.Duration("duration", elapsed),
				zap.Duration("threshold", s.slowQuery),
			)
		}
		metrics.RecordStoreOperation(op, collection, elapsed.Seconds(), err)
		tracing.EndStoreSpan(span, err, rows)
	}
}

// toDocument normalizes an entity or map into a JSON object
func toDocument(data interface{}) (map[string]interface{}, error) {
	if m, ok := data.(map[string]interface{}); ok {
		doc := make(map[string]interface{}, len(m)+1)
		for k, v := range m {
			doc[k] = v
		}
		return doc, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("payload is not an object")
	}
	return doc, nil
}

func ensureID(doc map[string]interface{}) string {
	if id, ok := doc["id"].(string); ok && id != "" {
		return id
	}
	id := uuid.New().String()
	doc["id"] = id
	return id
}

func recordNotFound(collection, id string) error {
	return errors.WrapWithType(errors.ErrRecordNotFound, errors.ErrorTypeNotFound, errors.CodeRecordNotFound,
		fmt.Sprintf("%s %s not found", collection, id))
}
