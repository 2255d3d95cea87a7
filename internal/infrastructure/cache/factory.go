package cache

import (
	"fmt"

	"github.com/fulfillment/backend/internal/domain/featureflag"
	"github.com/fulfillment/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// FlagCacheFactory creates flag caches based on configuration
type FlagCacheFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FlagCacheFactoryOption is a functional option for configuring the factory
type FlagCacheFactoryOption func(*FlagCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FlagCacheFactoryOption {
	return func(f *FlagCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory cache
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) FlagCacheFactoryOption {
	return func(f *FlagCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFlagCacheFactory creates a new factory
func NewFlagCacheFactory(cfg config.RedisConfig, opts ...FlagCacheFactoryOption) *FlagCacheFactory {
	f := &FlagCacheFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateCache creates a flag cache, preferring Redis and falling back to
// in-memory when Redis is unavailable and fallback is allowed.
func (f *FlagCacheFactory) CreateCache() (featureflag.FlagCache, error) {
	cache, err := NewRedisFlagCache(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}, f.logger)
	if err == nil {
		f.logger.Info("using Redis flag cache")
		return cache, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for flag cache but unavailable: %w", err)
	}

	// In-memory invalidations do not reach other instances; flag changes
	// then propagate only via TTL expiry.
	f.logger.Warn("Redis unavailable, falling back to in-memory flag cache",
		zap.Error(err))
	return NewInMemoryFlagCache(WithInMemoryLogger(f.logger)), nil
}
