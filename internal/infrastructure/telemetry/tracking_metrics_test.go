package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/fulfillment/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

func TestNewTrackingMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	tm, err := telemetry.NewTrackingMetrics(telemetry.TrackingMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
	})

	require.NoError(t, err)
	require.NotNil(t, tm)
}

func TestNewTrackingMetrics_NilMeter(t *testing.T) {
	tm, err := telemetry.NewTrackingMetrics(telemetry.TrackingMetricsConfig{
		Meter:  nil,
		Logger: zap.NewNop(),
	})

	require.Error(t, err)
	assert.Nil(t, tm)
	assert.Equal(t, "NewTrackingMetrics: meter cannot be nil", err.Error())
}

func TestTrackingMetrics_RecordBatch(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	tm, err := telemetry.NewTrackingMetrics(telemetry.TrackingMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()
	tenantID := uuid.New()

	// Should not panic
	tm.RecordBatch(ctx, tenantID, telemetry.TrackingModePiece, 3, 1, 25*time.Millisecond)
	tm.RecordBatch(ctx, tenantID, telemetry.TrackingModeLegacy, 0, 0, time.Millisecond)
}

func TestTrackingMetrics_RecordOrderReady(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	tm, err := telemetry.NewTrackingMetrics(telemetry.TrackingMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	tm.RecordOrderReady(context.Background(), uuid.New())
}
