package featureflag

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FeatureFlagRepository persists feature flag definitions.
type FeatureFlagRepository interface {
	FindByKey(ctx context.Context, key string) (*FeatureFlag, error)
	FindAll(ctx context.Context) ([]FeatureFlag, error)
	Save(ctx context.Context, flag *FeatureFlag) error
}

// FlagOverrideRepository persists per-tenant flag overrides.
type FlagOverrideRepository interface {
	FindByFlagAndTenant(ctx context.Context, flagKey string, tenantID uuid.UUID) (*FlagOverride, error)
	Save(ctx context.Context, override *FlagOverride) error
	DeleteByFlagAndTenant(ctx context.Context, flagKey string, tenantID uuid.UUID) error
}

// FlagCache caches evaluated flag values per (flag, tenant) pair.
type FlagCache interface {
	Get(ctx context.Context, flagKey string, tenantID uuid.UUID) (bool, bool)
	Set(ctx context.Context, flagKey string, tenantID uuid.UUID, enabled bool, ttl time.Duration)
	Invalidate(ctx context.Context, flagKey string)
}
