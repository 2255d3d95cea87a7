package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/fulfillment/backend/internal/domain/featureflag"
	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormFeatureFlagRepository implements FeatureFlagRepository using GORM
type GormFeatureFlagRepository struct {
	db *gorm.DB
}

// NewGormFeatureFlagRepository creates a new GormFeatureFlagRepository
func NewGormFeatureFlagRepository(db *gorm.DB) *GormFeatureFlagRepository {
	return &GormFeatureFlagRepository{db: db}
}

// FindByKey finds a flag by its key
func (r *GormFeatureFlagRepository) FindByKey(ctx context.Context, key string) (*featureflag.FeatureFlag, error) {
	var flag featureflag.FeatureFlag
	if err := r.db.WithContext(ctx).
		Where("key = ?", key).
		First(&flag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &flag, nil
}

// FindAll returns every flag definition
func (r *GormFeatureFlagRepository) FindAll(ctx context.Context) ([]featureflag.FeatureFlag, error) {
	var flags []featureflag.FeatureFlag
	if err := r.db.WithContext(ctx).Order("key ASC").Find(&flags).Error; err != nil {
		return nil, err
	}
	return flags, nil
}

// Save upserts a flag definition by key
func (r *GormFeatureFlagRepository) Save(ctx context.Context, flag *featureflag.FeatureFlag) error {
	flag.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "default_enabled", "updated_at"}),
	}).Create(flag).Error
}

// GormFlagOverrideRepository implements FlagOverrideRepository using GORM
type GormFlagOverrideRepository struct {
	db *gorm.DB
}

// NewGormFlagOverrideRepository creates a new GormFlagOverrideRepository
func NewGormFlagOverrideRepository(db *gorm.DB) *GormFlagOverrideRepository {
	return &GormFlagOverrideRepository{db: db}
}

// FindByFlagAndTenant finds a tenant's override for a flag
func (r *GormFlagOverrideRepository) FindByFlagAndTenant(ctx context.Context, flagKey string, tenantID uuid.UUID) (*featureflag.FlagOverride, error) {
	var override featureflag.FlagOverride
	if err := r.db.WithContext(ctx).
		Where("flag_key = ? AND tenant_id = ?", flagKey, tenantID).
		First(&override).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &override, nil
}

// Save upserts a tenant override
func (r *GormFlagOverrideRepository) Save(ctx context.Context, override *featureflag.FlagOverride) error {
	override.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "flag_key"}, {Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "updated_at"}),
	}).Create(override).Error
}

// DeleteByFlagAndTenant removes a tenant's override
func (r *GormFlagOverrideRepository) DeleteByFlagAndTenant(ctx context.Context, flagKey string, tenantID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("flag_key = ? AND tenant_id = ?", flagKey, tenantID).
		Delete(&featureflag.FlagOverride{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
