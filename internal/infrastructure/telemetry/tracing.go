package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer name under which application-level spans are
// emitted. The HTTP middleware uses its own instrumentation tracer; this
// one carries the batch-processing spans started inside the services.
const TracerName = "fulfillment-backend"

// Span attribute keys for batch-processing spans. Metric labels live in
// metrics.go as attribute.Key values; these plain strings go through the
// key-value helpers below.
const (
	SpanAttrOrderID      = "order_id"
	SpanAttrTenantID     = "tenant_id"
	SpanAttrBatchSize    = "batch_size"
	SpanAttrTrackingMode = "tracking_mode"
)

// StartSpan starts an internal span on the application tracer. The caller
// owns the returned span and must call span.End().
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindInternal))
}

// StartServiceSpan starts a span named {service}.{method}, the convention
// used for service entry points:
//
//	ctx, span := telemetry.StartServiceSpan(ctx, "tracking", "apply_batch")
//	defer span.End()
func StartServiceSpan(ctx context.Context, service, method string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, method))
}

// SetAttributes adds attributes to a span from alternating key-value pairs:
//
//	telemetry.SetAttributes(span,
//	    telemetry.SpanAttrOrderID, orderID.String(),
//	    telemetry.SpanAttrBatchSize, len(req.Updates),
//	)
func SetAttributes(span trace.Span, keyValues ...interface{}) {
	if span == nil {
		return
	}
	span.SetAttributes(kvAttributes(keyValues)...)
}

// SetAttribute adds a single attribute to the span.
func SetAttribute(span trace.Span, key string, value interface{}) {
	if span == nil {
		return
	}
	span.SetAttributes(toAttribute(key, value))
}

// RecordError records the error on the span and marks the span status as
// failed. A nil error is a no-op.
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span as successful.
func SetOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds a time-stamped event to the span, with optional attributes
// given as alternating key-value pairs:
//
//	telemetry.AddEvent(span, "order_marked_ready",
//	    telemetry.SpanAttrOrderID, orderID.String(),
//	)
func AddEvent(span trace.Span, name string, keyValues ...interface{}) {
	if span == nil {
		return
	}
	span.AddEvent(name, trace.WithAttributes(kvAttributes(keyValues)...))
}

// kvAttributes turns alternating key-value pairs into span attributes.
// Non-string keys and a trailing odd value are skipped.
func kvAttributes(keyValues []interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, toAttribute(key, keyValues[i+1]))
	}
	return attrs
}

func toAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
