package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Constants for in-memory cache configuration
const (
	defaultCleanupInterval = 30 * time.Second
)

// InMemoryFlagCache implements featureflag.FlagCache using in-memory storage.
// Suitable for single-instance deployments and testing; distributed
// deployments should use the Redis cache so invalidations reach every
// instance.
type InMemoryFlagCache struct {
	entries sync.Map // map[string]*flagEntry
	logger  *zap.Logger
	stopCh  chan struct{}
	stopped int32

	// Stats for monitoring
	hits   int64
	misses int64
}

// flagEntry wraps a cached flag value with expiration time
type flagEntry struct {
	enabled   bool
	expiresAt time.Time
}

func (e *flagEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// InMemoryFlagCacheOption is a functional option for configuring the cache
type InMemoryFlagCacheOption func(*InMemoryFlagCache)

// WithInMemoryLogger sets the logger for the cache
func WithInMemoryLogger(logger *zap.Logger) InMemoryFlagCacheOption {
	return func(c *InMemoryFlagCache) {
		c.logger = logger
	}
}

// NewInMemoryFlagCache creates a new in-memory flag cache
func NewInMemoryFlagCache(opts ...InMemoryFlagCacheOption) *InMemoryFlagCache {
	cache := &InMemoryFlagCache{
		logger: zap.NewNop(),
		stopCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(cache)
	}

	go cache.cleanupExpired()

	return cache
}

// flagCacheKey generates the cache key for a (flag, tenant) pair
func flagCacheKey(flagKey string, tenantID uuid.UUID) string {
	return flagKey + ":" + tenantID.String()
}

// Get returns the cached value for a (flag, tenant) pair. The second result
// reports whether a live entry was found.
func (c *InMemoryFlagCache) Get(_ context.Context, flagKey string, tenantID uuid.UUID) (bool, bool) {
	v, ok := c.entries.Load(flagCacheKey(flagKey, tenantID))
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return false, false
	}
	entry := v.(*flagEntry)
	if entry.isExpired() {
		c.entries.Delete(flagCacheKey(flagKey, tenantID))
		atomic.AddInt64(&c.misses, 1)
		return false, false
	}
	atomic.AddInt64(&c.hits, 1)
	return entry.enabled, true
}

// Set caches a (flag, tenant) value for the given TTL
func (c *InMemoryFlagCache) Set(_ context.Context, flagKey string, tenantID uuid.UUID, enabled bool, ttl time.Duration) {
	c.entries.Store(flagCacheKey(flagKey, tenantID), &flagEntry{
		enabled:   enabled,
		expiresAt: time.Now().Add(ttl),
	})
}

// Invalidate drops every tenant's cached value for a flag
func (c *InMemoryFlagCache) Invalidate(_ context.Context, flagKey string) {
	prefix := flagKey + ":"
	c.entries.Range(func(key, _ any) bool {
		if strings.HasPrefix(key.(string), prefix) {
			c.entries.Delete(key)
		}
		return true
	})
}

// Stats returns hit/miss counters for monitoring
func (c *InMemoryFlagCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Stop terminates the background cleanup goroutine
func (c *InMemoryFlagCache) Stop() {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
}

// cleanupExpired periodically removes expired entries
func (c *InMemoryFlagCache) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.entries.Range(func(key, v any) bool {
				if v.(*flagEntry).isExpired() {
					c.entries.Delete(key)
				}
				return true
			})
		}
	}
}
