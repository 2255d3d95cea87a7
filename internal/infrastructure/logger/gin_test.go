package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newObservedRouter(level zap.AtomicLevel) (*gin.Engine, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.Use(GinMiddleware(zap.New(core)))
	return router, logs
}

func TestGinMiddleware_LogsTrackingRequest(t *testing.T) {
	router, logs := newObservedRouter(zap.NewAtomicLevelAt(zap.InfoLevel))
	router.POST("/api/v1/orders/:orderId/tracking", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/tracking?dry_run=false", nil)
	req.Header.Set("X-Tenant-ID", "tenant-blue")
	req.Header.Set("User-Agent", "scanner-gateway/2.1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zap.InfoLevel, entry.Level)
	assert.Equal(t, "HTTP Request", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/api/v1/orders/ord-1/tracking", fields["path"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.Equal(t, "tenant-blue", fields["tenant_header"])
	assert.Equal(t, "scanner-gateway/2.1", fields["user_agent"])
	assert.Equal(t, "dry_run=false", fields["query"])
}

func TestGinMiddleware_ClientErrorLogsAtWarn(t *testing.T) {
	router, logs := newObservedRouter(zap.NewAtomicLevelAt(zap.InfoLevel))
	router.POST("/api/v1/orders/:orderId/tracking", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/orders/bad/tracking", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zap.WarnLevel, logs.All()[0].Level)
}

func TestGinMiddleware_ServerErrorLogsAtError(t *testing.T) {
	router, logs := newObservedRouter(zap.NewAtomicLevelAt(zap.InfoLevel))
	router.GET("/api/v1/orders/:orderId", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord-1", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zap.ErrorLevel, logs.All()[0].Level)
}

func TestGinMiddleware_PropagatesLoggerIntoRequestContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("request_id", "req-777")
		c.Next()
	})
	router.Use(GinMiddleware(zap.New(core)))
	router.GET("/api/v1/orders/:orderId/lines/:lineId/pieces", func(c *gin.Context) {
		FromContext(c.Request.Context()).Info("pieces listed")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/o/lines/l/pieces", nil))

	var handlerEntry *observer.LoggedEntry
	for _, e := range logs.All() {
		if e.Message == "pieces listed" {
			entry := e
			handlerEntry = &entry
		}
	}
	require.NotNil(t, handlerEntry, "handler log entry missing")
	assert.Equal(t, "req-777", handlerEntry.ContextMap()["request_id"])
}

func TestRecovery_PanicBecomes500(t *testing.T) {
	router, logs := newObservedRouter(zap.NewAtomicLevelAt(zap.InfoLevel))
	router.POST("/api/v1/orders/:orderId/tracking", func(c *gin.Context) {
		panic("piece sequence out of range")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/tracking", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var panicEntry *observer.LoggedEntry
	for _, e := range logs.All() {
		if e.Message == "Panic recovered" {
			entry := e
			panicEntry = &entry
		}
	}
	require.NotNil(t, panicEntry)
	assert.Equal(t, zap.ErrorLevel, panicEntry.Level)
	assert.Equal(t, "piece sequence out of range", panicEntry.ContextMap()["error"])
}

func TestGetGinLogger_NopWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	log := GetGinLogger(c)

	require.NotNil(t, log)
	log.Info("must not panic")
}

func TestGetGinLogger_ReturnsRequestLogger(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	core, logs := observer.New(zap.InfoLevel)
	c.Set("logger", zap.New(core))

	GetGinLogger(c).Info("ready count recomputed")

	assert.Equal(t, 1, logs.Len())
}
