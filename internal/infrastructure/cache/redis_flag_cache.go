package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Constants for Redis cache configuration
const (
	defaultScanBatchSize = 100
	flagKeyPrefix        = "flag:"
)

// RedisFlagCache implements featureflag.FlagCache using Redis, sharing
// evaluated flag values across instances.
type RedisFlagCache struct {
	client     *redis.Client
	ownsClient bool // true if we created the client and should close it
	logger     *zap.Logger
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisFlagCache creates a new Redis flag cache with its own client
func NewRedisFlagCache(cfg RedisConfig, logger *zap.Logger) (*RedisFlagCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisFlagCache{
		client:     client,
		ownsClient: true,
		logger:     logger,
	}, nil
}

// NewRedisFlagCacheWithClient creates a cache with an existing Redis client.
// Useful for testing or when sharing a client across components.
func NewRedisFlagCacheWithClient(client *redis.Client, logger *zap.Logger) *RedisFlagCache {
	return &RedisFlagCache{
		client: client,
		logger: logger,
	}
}

func redisFlagKey(flagKey string, tenantID uuid.UUID) string {
	return flagKeyPrefix + flagKey + ":tenant:" + tenantID.String()
}

// Get returns the cached value for a (flag, tenant) pair
func (c *RedisFlagCache) Get(ctx context.Context, flagKey string, tenantID uuid.UUID) (bool, bool) {
	val, err := c.client.Get(ctx, redisFlagKey(flagKey, tenantID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("flag cache read failed",
				zap.String("flag_key", flagKey),
				zap.Error(err))
		}
		return false, false
	}
	return val == "1", true
}

// Set caches a (flag, tenant) value for the given TTL. Failures are logged
// and swallowed: the cache is an optimization, never a dependency.
func (c *RedisFlagCache) Set(ctx context.Context, flagKey string, tenantID uuid.UUID, enabled bool, ttl time.Duration) {
	val := "0"
	if enabled {
		val = "1"
	}
	if err := c.client.Set(ctx, redisFlagKey(flagKey, tenantID), val, ttl).Err(); err != nil {
		c.logger.Warn("flag cache write failed",
			zap.String("flag_key", flagKey),
			zap.Error(err))
	}
}

// Invalidate drops every tenant's cached value for a flag
func (c *RedisFlagCache) Invalidate(ctx context.Context, flagKey string) {
	pattern := flagKeyPrefix + flagKey + ":tenant:*"
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, defaultScanBatchSize).Result()
		if err != nil {
			c.logger.Warn("flag cache invalidation scan failed",
				zap.String("flag_key", flagKey),
				zap.Error(err))
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.logger.Warn("flag cache invalidation delete failed",
					zap.String("flag_key", flagKey),
					zap.Error(err))
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// Close releases the Redis client if this cache owns it
func (c *RedisFlagCache) Close() error {
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}
