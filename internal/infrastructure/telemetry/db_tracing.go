package telemetry

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database span instrumentation.
type DBTracingConfig struct {
	Enabled            bool
	LogFullSQL         bool // include query variables in spans (dev only)
	SlowQueryThreshold time.Duration
}

type dbTracingContextKey string

const queryStartKey dbTracingContextKey = "db_query_start"

// RegisterDBTracing attaches the otelgorm plugin and a slow-query callback to
// the given GORM instance. Batch tracking writes run many statements per
// request, so per-statement spans are the main tool for diagnosing slow syncs.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled")
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName("fulfillment"),
	}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	threshold := cfg.SlowQueryThreshold
	if threshold <= 0 {
		threshold = 200 * time.Millisecond
	}
	if err := registerSpanCallbacks(db, threshold); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", threshold),
	)
	return nil
}

// registerSpanCallbacks wires before/after hooks on each statement type so the
// active span carries row counts, table names and slow-query markers.
func registerSpanCallbacks(db *gorm.DB, threshold time.Duration) error {
	before := func(db *gorm.DB) {
		if db.Statement.Context != nil {
			db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey, time.Now())
		}
	}
	after := func(db *gorm.DB) {
		annotateSpan(db, threshold)
	}

	if err := db.Callback().Create().Before("gorm:create").Register("db_tracing:before_create", before); err != nil {
		return err
	}
	if err := db.Callback().Query().Before("gorm:query").Register("db_tracing:before_query", before); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("db_tracing:before_update", before); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("db_tracing:before_delete", before); err != nil {
		return err
	}
	if err := db.Callback().Raw().Before("gorm:raw").Register("db_tracing:before_raw", before); err != nil {
		return err
	}

	if err := db.Callback().Create().After("gorm:create").Register("db_tracing:after_create", after); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register("db_tracing:after_query", after); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("db_tracing:after_update", after); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("db_tracing:after_delete", after); err != nil {
		return err
	}
	if err := db.Callback().Raw().After("gorm:raw").Register("db_tracing:after_raw", after); err != nil {
		return err
	}

	return nil
}

// annotateSpan enriches the active span after a statement completes.
func annotateSpan(db *gorm.DB, threshold time.Duration) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if start, ok := ctx.Value(queryStartKey).(time.Time); ok {
		elapsed := time.Since(start)
		if elapsed > threshold {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
			span.AddEvent("slow_query_warning", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", threshold.Milliseconds()),
			))
		}
	}
}
