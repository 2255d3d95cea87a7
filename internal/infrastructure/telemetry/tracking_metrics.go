package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// TrackingMetrics provides fulfillment metrics for piece tracking.
// It tracks batch activity, per-piece failures, and order readiness transitions.
type TrackingMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	batchTotal       *Counter
	piecesUpdated    *Counter
	pieceErrorsTotal *Counter
	orderReadyTotal  *Counter
	batchSize        *Histogram
	batchDuration    *Histogram
}

// TrackingMetricsConfig holds configuration for tracking metrics.
type TrackingMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewTrackingMetrics creates a new TrackingMetrics instance.
func NewTrackingMetrics(cfg TrackingMetricsConfig) (*TrackingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tm := &TrackingMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error

	tm.batchTotal, err = NewCounter(
		cfg.Meter,
		"fulfillment_tracking_batch_total",
		"Total number of tracking batches applied",
		"{batches}",
	)
	if err != nil {
		return nil, err
	}

	tm.piecesUpdated, err = NewCounter(
		cfg.Meter,
		"fulfillment_tracking_pieces_updated_total",
		"Total number of piece rows updated by tracking batches",
		"{pieces}",
	)
	if err != nil {
		return nil, err
	}

	tm.pieceErrorsTotal, err = NewCounter(
		cfg.Meter,
		"fulfillment_tracking_piece_errors_total",
		"Total number of per-piece failures inside tracking batches",
		"{errors}",
	)
	if err != nil {
		return nil, err
	}

	tm.orderReadyTotal, err = NewCounter(
		cfg.Meter,
		"fulfillment_order_ready_total",
		"Total number of orders promoted to READY by tracking batches",
		"{orders}",
	)
	if err != nil {
		return nil, err
	}

	tm.batchSize, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "fulfillment_tracking_batch_size",
		Description: "Distribution of tracking batch sizes in piece updates",
		Unit:        "{pieces}",
		Boundaries:  BatchSizeBuckets,
	})
	if err != nil {
		return nil, err
	}

	tm.batchDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "fulfillment_tracking_batch_duration_seconds",
		Description: "Tracking batch processing latency distribution in seconds",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return tm, nil
}

// TrackingMode labels which synchronization path handled a batch.
type TrackingMode string

const (
	TrackingModePiece  TrackingMode = "piece"
	TrackingModeLegacy TrackingMode = "legacy"
)

// RecordBatch records the outcome of one tracking batch.
func (tm *TrackingMetrics) RecordBatch(ctx context.Context, tenantID uuid.UUID, mode TrackingMode, updated, failed int, duration time.Duration) {
	tm.batchTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrTrackingMode.String(string(mode)),
	)
	if updated > 0 {
		tm.piecesUpdated.Add(ctx, int64(updated),
			AttrTenantID.String(tenantID.String()),
			AttrTrackingMode.String(string(mode)),
		)
	}
	if failed > 0 {
		tm.pieceErrorsTotal.Add(ctx, int64(failed),
			AttrTenantID.String(tenantID.String()),
			AttrTrackingMode.String(string(mode)),
		)
	}
	tm.batchSize.Record(ctx, float64(updated+failed),
		AttrTrackingMode.String(string(mode)),
	)
	tm.batchDuration.RecordDuration(ctx, duration,
		AttrTrackingMode.String(string(mode)),
	)
}

// RecordOrderReady records an order promoted to READY.
func (tm *TrackingMetrics) RecordOrderReady(ctx context.Context, tenantID uuid.UUID) {
	tm.orderReadyTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
	)
}

// MetricsError represents an error in metrics setup or recording.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewTrackingMetrics", Err: "meter cannot be nil"}
