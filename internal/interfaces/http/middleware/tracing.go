// Package middleware provides HTTP middleware for the fulfillment backend.
package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// maxRequestIDLen caps request IDs copied from headers into spans.
	maxRequestIDLen = 128
	// maxTenantIDLen caps tenant IDs copied from headers into spans.
	maxTenantIDLen = 64
)

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	// ServiceName is the name of the service for trace identification.
	ServiceName string
	// Enabled controls whether tracing is active.
	Enabled bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "fulfillment-backend",
		Enabled:     true,
	}
}

// TracingWithConfig returns OpenTelemetry tracing middleware built on
// otelgin. Spans are named "METHOD route_pattern" (e.g.
// "POST /api/v1/orders/:orderId/tracking") and enriched after the handler
// runs with request_id, tenant_id, and user_id so a slow batch can be traced
// back to the workshop and operator that submitted it. Responses of 4xx/5xx
// mark the span with an error status.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	base := otelgin.Middleware(cfg.ServiceName)

	return func(c *gin.Context) {
		// base runs the rest of the chain; the span is complete except for
		// status when it returns.
		base(c)

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		enrichSpan(c, span)

		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, errorStatusMessage(status))
			span.SetAttributes(attribute.Int("http.status_code", status))
		}
	}
}

// enrichSpan copies request identity onto the span.
func enrichSpan(c *gin.Context, span trace.Span) {
	if requestID := spanRequestID(c); requestID != "" {
		span.SetAttributes(attribute.String("request_id", requestID))
	}
	if tenantID := spanTenantID(c); tenantID != "" {
		span.SetAttributes(attribute.String("tenant_id", tenantID))
	}
	if userID := spanUserID(c); userID != "" {
		span.SetAttributes(attribute.String("user_id", userID))
	}
}

// spanRequestID prefers the ID set by the RequestID middleware and falls
// back to the header, truncated so an oversized header cannot bloat spans.
func spanRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok && id != "" {
			return id
		}
	}

	headerID := c.GetHeader("X-Request-ID")
	if len(headerID) > maxRequestIDLen {
		return headerID[:maxRequestIDLen]
	}
	return headerID
}

// spanTenantID prefers the JWT claim. The X-Tenant-ID header fallback is
// only accepted in UUID form so arbitrary header bytes never reach trace
// storage.
func spanTenantID(c *gin.Context) string {
	if tenantID, exists := c.Get(JWTTenantIDKey); exists {
		if id, ok := tenantID.(string); ok && id != "" {
			return id
		}
	}

	header := c.GetHeader(TenantHeaderKey)
	if header != "" && len(header) <= maxTenantIDLen && uuidRegex.MatchString(header) {
		return header
	}
	return ""
}

func spanUserID(c *gin.Context) string {
	if userID, exists := c.Get(JWTUserIDKey); exists {
		if id, ok := userID.(string); ok && id != "" {
			return id
		}
	}
	return ""
}

func errorStatusMessage(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "Internal Server Error"
	case status == http.StatusUnauthorized:
		return "Unauthorized"
	case status == http.StatusForbidden:
		return "Forbidden"
	case status == http.StatusNotFound:
		return "Not Found"
	default:
		return "Client Error"
	}
}
