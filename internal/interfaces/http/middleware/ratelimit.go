package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fulfillment/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window in-memory limiter keyed per caller. Keys are
// tenant-scoped when the tenant header is present, so one tenant's scanner
// fleet flooding batch submissions cannot starve the others.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
}

type bucket struct {
	remaining int
	resetAt   time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window. A
// background sweep drops buckets that have sat idle for two windows.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
	}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, b := range rl.buckets {
			if now.Sub(b.resetAt) > rl.window {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

// take consumes one token for key, reporting whether the request is allowed
// and how many tokens remain in the current window.
func (rl *RateLimiter) take(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok || now.After(b.resetAt) {
		rl.buckets[key] = &bucket{
			remaining: rl.limit - 1,
			resetAt:   now.Add(rl.window),
		}
		return true, rl.limit - 1
	}

	if b.remaining <= 0 {
		return false, 0
	}
	b.remaining--
	return true, b.remaining
}

// Allow reports whether a request under key fits in the current window.
func (rl *RateLimiter) Allow(key string) bool {
	allowed, _ := rl.take(key)
	return allowed
}

// RateLimit returns a middleware enforcing the limiter. The key combines the
// tenant header with the client IP: per-tenant fairness first, per-host
// within a tenant second.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if tenantID := c.GetHeader("X-Tenant-ID"); tenantID != "" {
			key = tenantID + ":" + key
		}

		allowed, remaining := limiter.take(key)

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRateLimited,
				"Too many requests. Please try again later.",
				getRequestIDFromContext(c),
			))
			return
		}

		c.Next()
	}
}
