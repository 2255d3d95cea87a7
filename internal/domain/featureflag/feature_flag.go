package featureflag

import (
	"regexp"
	"strings"

	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// FlagKeyPieceTracking selects per-piece tracking for a tenant. When the flag
// is disabled the tracking engine falls back to legacy line-aggregate mode.
const FlagKeyPieceTracking = "piece_tracking"

// keyRegex validates flag keys: must start with a lowercase letter,
// followed by lowercase letters, numbers, underscores, hyphens, or dots
var keyRegex = regexp.MustCompile(`^[a-z][a-z0-9_.-]*$`)

// FeatureFlag is a boolean switch controlling application behavior.
//
// Feature flags are GLOBAL (not tenant-scoped): the flag carries the default;
// tenant-specific behavior is achieved through FlagOverride entities.
type FeatureFlag struct {
	shared.BaseAggregateRoot
	Key            string `gorm:"uniqueIndex"`
	Name           string
	Description    string
	DefaultEnabled bool
}

// NewFeatureFlag creates a new feature flag
func NewFeatureFlag(key, name string, defaultEnabled bool) (*FeatureFlag, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_FLAG_NAME", "Flag name cannot be empty")
	}

	return &FeatureFlag{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Key:               key,
		Name:              name,
		DefaultEnabled:    defaultEnabled,
	}, nil
}

// ValidateKey checks that a flag key is well-formed.
func ValidateKey(key string) error {
	if key == "" {
		return shared.NewDomainError("INVALID_FLAG_KEY", "Flag key cannot be empty")
	}
	if !keyRegex.MatchString(key) {
		return shared.NewDomainError("INVALID_FLAG_KEY", "Flag key must start with a lowercase letter and contain only lowercase letters, numbers, underscores, hyphens or dots")
	}
	return nil
}

// FlagOverride pins a flag's value for one tenant.
type FlagOverride struct {
	shared.BaseEntity
	FlagKey  string    `gorm:"index:idx_flag_overrides_key_tenant,unique"`
	TenantID uuid.UUID `gorm:"type:uuid;index:idx_flag_overrides_key_tenant,unique"`
	Enabled  bool
}

// NewFlagOverride creates a tenant override for a flag.
func NewFlagOverride(flagKey string, tenantID uuid.UUID, enabled bool) (*FlagOverride, error) {
	if err := ValidateKey(flagKey); err != nil {
		return nil, err
	}
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	return &FlagOverride{
		BaseEntity: shared.NewBaseEntity(),
		FlagKey:    flagKey,
		TenantID:   tenantID,
		Enabled:    enabled,
	}, nil
}
