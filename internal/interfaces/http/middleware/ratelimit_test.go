package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fulfillment/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRateLimitedRouter(limit int, window time.Duration) *gin.Engine {
	router := gin.New()
	router.Use(RateLimit(NewRateLimiter(limit, window)))
	router.POST("/api/v1/orders/:orderId/tracking", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return router
}

func submitBatch(router *gin.Engine, tenantID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/o-1/tracking", nil)
	if tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowWithinLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("tenant-blue"), "request %d should pass", i+1)
	}
	assert.False(t, rl.Allow("tenant-blue"))
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := NewRateLimiter(1, 30*time.Millisecond)

	assert.True(t, rl.Allow("tenant-blue"))
	assert.False(t, rl.Allow("tenant-blue"))

	time.Sleep(50 * time.Millisecond)
	assert.True(t, rl.Allow("tenant-blue"))
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	assert.True(t, rl.Allow("tenant-blue"))
	assert.True(t, rl.Allow("tenant-green"))
	assert.False(t, rl.Allow("tenant-blue"))
	assert.False(t, rl.Allow("tenant-green"))
}

func TestRateLimit_429AfterLimit(t *testing.T) {
	router := newRateLimitedRouter(2, time.Minute)

	assert.Equal(t, http.StatusOK, submitBatch(router, "tenant-blue").Code)
	assert.Equal(t, http.StatusOK, submitBatch(router, "tenant-blue").Code)

	w := submitBatch(router, "tenant-blue")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeRateLimited)
}

func TestRateLimit_TenantsAreIsolated(t *testing.T) {
	// One tenant's scanner fleet exhausting its window must not block
	// another tenant submitting from the same host.
	router := newRateLimitedRouter(1, time.Minute)

	assert.Equal(t, http.StatusOK, submitBatch(router, "tenant-blue").Code)
	assert.Equal(t, http.StatusTooManyRequests, submitBatch(router, "tenant-blue").Code)
	assert.Equal(t, http.StatusOK, submitBatch(router, "tenant-green").Code)
}

func TestRateLimit_SetsHeaders(t *testing.T) {
	router := newRateLimitedRouter(5, time.Minute)

	w := submitBatch(router, "tenant-blue")

	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))

	w = submitBatch(router, "tenant-blue")
	assert.Equal(t, "3", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimiter_ConcurrentTake(t *testing.T) {
	rl := NewRateLimiter(100, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("tenant-blue") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, allowed)
}
