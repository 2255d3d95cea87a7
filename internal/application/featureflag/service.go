package featureflag

import (
	"context"
	"time"

	"github.com/fulfillment/backend/internal/domain/featureflag"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FlagService manages flag definitions and per-tenant overrides. Every
// mutation invalidates the flag's cached evaluations so mode changes take
// effect within one cache miss instead of one TTL.
type FlagService struct {
	flags     featureflag.FeatureFlagRepository
	overrides featureflag.FlagOverrideRepository
	cache     featureflag.FlagCache
	logger    *zap.Logger
}

// NewFlagService creates a new FlagService. The cache may be nil.
func NewFlagService(
	flags featureflag.FeatureFlagRepository,
	overrides featureflag.FlagOverrideRepository,
	cache featureflag.FlagCache,
	logger *zap.Logger,
) *FlagService {
	return &FlagService{
		flags:     flags,
		overrides: overrides,
		cache:     cache,
		logger:    logger,
	}
}

// FlagResponse is the read model for a flag definition.
type FlagResponse struct {
	Key            string    `json:"key"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	DefaultEnabled bool      `json:"default_enabled"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toFlagResponse(f *featureflag.FeatureFlag) FlagResponse {
	return FlagResponse{
		Key:            f.Key,
		Name:           f.Name,
		Description:    f.Description,
		DefaultEnabled: f.DefaultEnabled,
		UpdatedAt:      f.UpdatedAt,
	}
}

// List returns every flag definition.
func (s *FlagService) List(ctx context.Context) ([]FlagResponse, error) {
	flags, err := s.flags.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]FlagResponse, len(flags))
	for i := range flags {
		out[i] = toFlagResponse(&flags[i])
	}
	return out, nil
}

// SetDefault updates a flag's default value, creating the flag if needed.
func (s *FlagService) SetDefault(ctx context.Context, key, name string, enabled bool) (*FlagResponse, error) {
	flag, err := featureflag.NewFeatureFlag(key, name, enabled)
	if err != nil {
		return nil, err
	}
	if err := s.flags.Save(ctx, flag); err != nil {
		return nil, err
	}
	s.invalidate(ctx, flag.Key)

	resp := toFlagResponse(flag)
	return &resp, nil
}

// SetOverride pins a flag's value for one tenant.
func (s *FlagService) SetOverride(ctx context.Context, key string, tenantID uuid.UUID, enabled bool) error {
	override, err := featureflag.NewFlagOverride(key, tenantID, enabled)
	if err != nil {
		return err
	}
	if err := s.overrides.Save(ctx, override); err != nil {
		return err
	}
	s.logger.Info("flag override set",
		zap.String("flag_key", key),
		zap.String("tenant_id", tenantID.String()),
		zap.Bool("enabled", enabled))
	s.invalidate(ctx, key)
	return nil
}

// ClearOverride removes a tenant's override, reverting it to the default.
func (s *FlagService) ClearOverride(ctx context.Context, key string, tenantID uuid.UUID) error {
	if err := featureflag.ValidateKey(key); err != nil {
		return err
	}
	if err := s.overrides.DeleteByFlagAndTenant(ctx, key, tenantID); err != nil {
		return err
	}
	s.logger.Info("flag override cleared",
		zap.String("flag_key", key),
		zap.String("tenant_id", tenantID.String()))
	s.invalidate(ctx, key)
	return nil
}

func (s *FlagService) invalidate(ctx context.Context, key string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, key)
	}
}
