package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupTestMeter builds a meter provider backed by a manual reader so tests
// can collect what the middleware recorded.
func setupTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})
	return mp, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)
	return rm
}

func findMetricByName(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// newMeteredRouter mounts the metrics middleware on the tracking routes.
func newMeteredRouter(meter *sdkmetric.MeterProvider) *gin.Engine {
	r := gin.New()
	r.Use(HTTPMetricsWithMeter(meter.Meter("http.server"), true))
	r.POST("/api/v1/orders/:orderId/tracking", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"applied": 3, "failed": 0})
	})
	r.GET("/api/v1/orders/:orderId/lines/:lineId/pieces", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pieces": []string{}})
	})
	return r
}

func postTracking(r *gin.Engine, orderID string) *httptest.ResponseRecorder {
	body := strings.NewReader(`{"updates":[{"piece_ref":"p-1","step":"sewing"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID+"/tracking", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHTTPMetrics_DisabledPassthrough(t *testing.T) {
	r := gin.New()
	r.Use(HTTPMetrics(HTTPMetricsConfig{Enabled: false}))
	r.GET("/api/v1/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPMetrics_NilMeterProvider(t *testing.T) {
	r := gin.New()
	r.Use(HTTPMetrics(HTTPMetricsConfig{Enabled: true, MeterProvider: nil}))
	r.GET("/api/v1/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPMetrics_CountsBatchSubmissions(t *testing.T) {
	mp, reader := setupTestMeter(t)
	r := newMeteredRouter(mp)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, postTracking(r, "ord-1").Code)
	}

	rm := collectMetrics(t, reader)
	m := findMetricByName(rm, "http_server_request_total")
	require.NotNil(t, m, "request counter not recorded")

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)

	attrs := sum.DataPoints[0].Attributes
	method, _ := attrs.Value(attribute.Key("http.method"))
	assert.Equal(t, "POST", method.AsString())
	status, _ := attrs.Value(attribute.Key("http.status_code"))
	assert.Equal(t, int64(http.StatusOK), status.AsInt64())
}

func TestHTTPMetrics_RoutePatternKeepsCardinalityDown(t *testing.T) {
	mp, reader := setupTestMeter(t)
	r := newMeteredRouter(mp)

	// Different orders must land on one series keyed by the route pattern.
	postTracking(r, "ord-1")
	postTracking(r, "ord-2")
	postTracking(r, "ord-3")

	rm := collectMetrics(t, reader)
	m := findMetricByName(rm, "http_server_request_total")
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1, "concrete order IDs must not fan out into series")

	route, found := sum.DataPoints[0].Attributes.Value(attribute.Key("http.route"))
	require.True(t, found)
	assert.Equal(t, "/api/v1/orders/:orderId/tracking", route.AsString())
}

func TestHTTPMetrics_UnmatchedRoute(t *testing.T) {
	mp, reader := setupTestMeter(t)
	r := newMeteredRouter(mp)

	req := httptest.NewRequest(http.MethodGet, "/no/such/route", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)

	rm := collectMetrics(t, reader)
	m := findMetricByName(rm, "http_server_request_total")
	require.NotNil(t, m)

	sum := m.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	route, _ := sum.DataPoints[0].Attributes.Value(attribute.Key("http.route"))
	assert.Equal(t, "unknown", route.AsString())
}

func TestHTTPMetrics_TenantLabel(t *testing.T) {
	mp, reader := setupTestMeter(t)

	r := gin.New()
	// Simulate the JWT middleware having resolved the tenant.
	r.Use(func(c *gin.Context) {
		c.Set(JWTTenantIDKey, "3f0b8f3e-0000-0000-0000-000000000042")
		c.Next()
	})
	r.Use(HTTPMetricsWithMeter(mp.Meter("http.server"), true))
	r.POST("/api/v1/orders/:orderId/tracking", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	postTracking(r, "ord-1")

	rm := collectMetrics(t, reader)
	m := findMetricByName(rm, "http_server_request_total")
	require.NotNil(t, m)

	sum := m.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	tenant, found := sum.DataPoints[0].Attributes.Value(attribute.Key("tenant_id"))
	require.True(t, found, "tenant label missing from request counter")
	assert.Equal(t, "3f0b8f3e-0000-0000-0000-000000000042", tenant.AsString())
}

func TestHTTPMetrics_DurationHistogram(t *testing.T) {
	mp, reader := setupTestMeter(t)
	r := newMeteredRouter(mp)

	postTracking(r, "ord-1")
	postTracking(r, "ord-1")

	rm := collectMetrics(t, reader)
	m := findMetricByName(rm, "http_server_request_duration_seconds")
	require.NotNil(t, m, "duration histogram not recorded")

	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)

	// Latency series must not carry status or tenant labels.
	_, hasStatus := hist.DataPoints[0].Attributes.Value(attribute.Key("http.status_code"))
	assert.False(t, hasStatus)
}

func TestHTTPMetrics_RequestAndResponseSize(t *testing.T) {
	mp, reader := setupTestMeter(t)
	r := newMeteredRouter(mp)

	postTracking(r, "ord-1")

	rm := collectMetrics(t, reader)

	reqSize := findMetricByName(rm, "http_server_request_size_bytes")
	require.NotNil(t, reqSize)
	reqHist := reqSize.Data.(metricdata.Histogram[float64])
	require.Len(t, reqHist.DataPoints, 1)
	assert.Greater(t, reqHist.DataPoints[0].Sum, float64(0))

	respSize := findMetricByName(rm, "http_server_response_size_bytes")
	require.NotNil(t, respSize)
	respHist := respSize.Data.(metricdata.Histogram[float64])
	require.Len(t, respHist.DataPoints, 1)
	assert.Greater(t, respHist.DataPoints[0].Sum, float64(0))
}

func TestHTTPMetrics_NoRequestSizeForEmptyBody(t *testing.T) {
	mp, reader := setupTestMeter(t)
	r := newMeteredRouter(mp)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord-1/lines/line-1/pieces", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	rm := collectMetrics(t, reader)
	assert.Nil(t, findMetricByName(rm, "http_server_request_size_bytes"),
		"bodyless GET must not record a request size")
}

func TestHTTPMetrics_ActiveRequestsSettleToZero(t *testing.T) {
	mp, reader := setupTestMeter(t)
	r := newMeteredRouter(mp)

	postTracking(r, "ord-1")
	postTracking(r, "ord-2")

	rm := collectMetrics(t, reader)
	m := findMetricByName(rm, "http_server_active_requests")
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(0), sum.DataPoints[0].Value, "in-flight gauge must drain after requests finish")
}

func TestHTTPMetricsWithMeter_Disabled(t *testing.T) {
	mp, reader := setupTestMeter(t)

	r := gin.New()
	r.Use(HTTPMetricsWithMeter(mp.Meter("http.server"), false))
	r.GET("/api/v1/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	rm := collectMetrics(t, reader)
	assert.Nil(t, findMetricByName(rm, "http_server_request_total"))
}

func TestRoutePattern(t *testing.T) {
	r := gin.New()
	var got string
	r.POST("/api/v1/orders/:orderId/tracking", func(c *gin.Context) {
		got = routePattern(c)
		c.Status(http.StatusOK)
	})

	postTracking(r, "ord-99")
	assert.Equal(t, "/api/v1/orders/:orderId/tracking", got)
}

func TestGetTenantIDFromContext(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, getTenantIDFromContext(c))

	c.Set(JWTTenantIDKey, "tenant-42")
	assert.Equal(t, "tenant-42", getTenantIDFromContext(c))

	c.Set(JWTTenantIDKey, 42)
	assert.Empty(t, getTenantIDFromContext(c), "non-string tenant value is ignored")
}

func TestDefaultHTTPMetricsConfig(t *testing.T) {
	cfg := DefaultHTTPMetricsConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "fulfillment-backend", cfg.ServiceName)
}
