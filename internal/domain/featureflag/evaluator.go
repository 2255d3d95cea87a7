package featureflag

import (
	"context"
	"errors"
	"time"

	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Evaluator resolves a flag's effective value for one tenant: the tenant
// override wins when present, otherwise the flag default. Unknown flags
// evaluate to disabled.
type Evaluator struct {
	flagRepo     FeatureFlagRepository
	overrideRepo FlagOverrideRepository
	cache        FlagCache
	cacheTTL     time.Duration
}

// EvaluatorOption is a functional option for configuring the evaluator
type EvaluatorOption func(*Evaluator)

// WithCache enables result caching with the given TTL.
func WithCache(cache FlagCache, ttl time.Duration) EvaluatorOption {
	return func(e *Evaluator) {
		e.cache = cache
		e.cacheTTL = ttl
	}
}

// NewEvaluator creates a new evaluator
func NewEvaluator(flagRepo FeatureFlagRepository, overrideRepo FlagOverrideRepository, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		flagRepo:     flagRepo,
		overrideRepo: overrideRepo,
		cacheTTL:     time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsEnabled evaluates a flag for a tenant.
func (e *Evaluator) IsEnabled(ctx context.Context, flagKey string, tenantID uuid.UUID) (bool, error) {
	if e.cache != nil {
		if enabled, ok := e.cache.Get(ctx, flagKey, tenantID); ok {
			return enabled, nil
		}
	}

	enabled, err := e.evaluate(ctx, flagKey, tenantID)
	if err != nil {
		return false, err
	}

	if e.cache != nil {
		e.cache.Set(ctx, flagKey, tenantID, enabled, e.cacheTTL)
	}
	return enabled, nil
}

func (e *Evaluator) evaluate(ctx context.Context, flagKey string, tenantID uuid.UUID) (bool, error) {
	override, err := e.overrideRepo.FindByFlagAndTenant(ctx, flagKey, tenantID)
	if err == nil {
		return override.Enabled, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return false, err
	}

	flag, err := e.flagRepo.FindByKey(ctx, flagKey)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return flag.DefaultEnabled, nil
}
