package tracing

import (
	"context"
	"database/sql"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	storeTracerName = "record-store"
)

// StoreSpanConfig holds configuration for record store span creation
type StoreSpanConfig struct {
	System     string // postgresql, memory
	Operation  string // FILTER, CREATE, UPDATE, DELETE
	Collection string
}

// StartStoreSpan creates a new span for a record store call
func StartStoreSpan(ctx context.Context, cfg StoreSpanConfig) (context.Context, trace.Span) {
	tracer := otel.Tracer(storeTracerName)

	spanName := cfg.Operation
	if cfg.Collection != "" {
		spanName = cfg.Operation + " " + cfg.Collection
	}

	system := cfg.System
	if system == "" {
		system = "postgresql"
	}

	attrs := []attribute.KeyValue{
		attribute.String("db.system", system),
		attribute.String("db.operation", cfg.Operation),
	}
	if cfg.Collection != "" {
		attrs = append(attrs, attribute.String("db.collection.name", cfg.Collection))
	}

	return tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// EndStoreSpan ends a record store span with appropriate status.
// rows < 0 skips the rows attribute.
func EndStoreSpan(span trace.Span, err error, rows int64) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, sql.ErrNoRows):
		span.SetStatus(codes.Ok, "no rows found")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if rows >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", rows))
	}

	span.End()
}
