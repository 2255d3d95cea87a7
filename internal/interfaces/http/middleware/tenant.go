package middleware

import (
	"net/http"
	"strings"

	"github.com/fulfillment/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TenantIDKey     = "tenant_id"
	TenantCodeKey   = "tenant_code"
	TenantHeaderKey = "X-Tenant-ID"
)

// TenantInfo holds the validated tenant identity.
type TenantInfo struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
}

// TenantValidator checks that a resolved tenant exists and is active.
type TenantValidator interface {
	ValidateTenant(tenantID string) (*TenantInfo, error)
}

// TenantMiddlewareConfig holds configuration for tenant resolution.
type TenantMiddlewareConfig struct {
	// HeaderEnabled allows X-Tenant-ID for service-to-service calls.
	HeaderEnabled bool
	// JWTEnabled reads the tenant claim set by the JWT middleware.
	JWTEnabled bool
	// SubdomainEnabled resolves the tenant from the request host.
	SubdomainEnabled bool
	// BaseDomain anchors subdomain resolution, e.g. "fulfillment.example.com".
	BaseDomain string
	// SkipPaths bypass tenant resolution entirely (health, system).
	SkipPaths []string
	// Required rejects requests that resolve no tenant.
	Required bool
	// Validator optionally confirms the tenant is known and active.
	Validator TenantValidator
	Logger    *zap.Logger
}

// DefaultTenantConfig enables JWT and header resolution with health
// endpoints skipped.
func DefaultTenantConfig() TenantMiddlewareConfig {
	return TenantMiddlewareConfig{
		HeaderEnabled: true,
		JWTEnabled:    true,
		SkipPaths:     []string{"/health", "/healthz", "/ready", "/metrics", "/api/v1/health"},
		Required:      true,
	}
}

// TenantMiddlewareWithConfig resolves the tenant for the request. Resolution
// order is JWT claim, then header, then subdomain; the winning tenant ID is
// stored in the gin context and pushed into the request context so every
// repository call and log line downstream is tenant-scoped.
func TenantMiddlewareWithConfig(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath || strings.HasPrefix(path, skipPath+"/") {
				c.Next()
				return
			}
		}

		tenantID, method := resolveTenant(c, cfg)

		if tenantID != "" {
			if _, err := uuid.Parse(tenantID); err != nil {
				abortTenantUnauthorized(c, "Invalid tenant ID format")
				return
			}
		}

		if tenantID == "" {
			if cfg.Required {
				abortTenantUnauthorized(c, "Tenant identification required")
				return
			}
			c.Next()
			return
		}

		var info *TenantInfo
		if cfg.Validator != nil {
			var err error
			info, err = cfg.Validator.ValidateTenant(tenantID)
			if err != nil {
				log := cfg.Logger
				if log == nil {
					log = logger.FromContext(c.Request.Context())
				}
				log.Warn("Tenant validation failed",
					zap.String("tenant_id", tenantID),
					zap.Error(err),
				)
				abortTenantUnauthorized(c, "Invalid or inactive tenant")
				return
			}
		}

		c.Set(TenantIDKey, tenantID)
		if info != nil {
			c.Set(TenantCodeKey, info.Code)
		}

		ctx := c.Request.Context()
		ctx, _ = logger.WithTenantID(ctx, logger.FromContext(ctx), tenantID)
		c.Request = c.Request.WithContext(ctx)

		if cfg.Logger != nil {
			cfg.Logger.Debug("Tenant identified",
				zap.String("tenant_id", tenantID),
				zap.String("method", method),
			)
		}

		c.Next()
	}
}

// resolveTenant walks the configured sources in priority order and reports
// which one produced the tenant ID.
func resolveTenant(c *gin.Context, cfg TenantMiddlewareConfig) (string, string) {
	if cfg.JWTEnabled {
		if v, exists := c.Get(JWTTenantIDKey); exists {
			if tid, ok := v.(string); ok && tid != "" {
				return tid, "jwt"
			}
		}
	}

	if cfg.HeaderEnabled {
		if tid := c.GetHeader(TenantHeaderKey); tid != "" {
			return tid, "header"
		}
	}

	if cfg.SubdomainEnabled && cfg.BaseDomain != "" {
		if tid := tenantFromSubdomain(c.Request.Host, cfg.BaseDomain); tid != "" {
			return tid, "subdomain"
		}
	}

	return "", ""
}

// tenantFromSubdomain extracts the tenant from hosts like
// "acme.fulfillment.example.com" when the base domain is
// "fulfillment.example.com".
func tenantFromSubdomain(host, baseDomain string) string {
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	if !strings.HasSuffix(host, baseDomain) {
		return ""
	}

	subdomain := strings.TrimSuffix(host, "."+baseDomain)
	if subdomain == host || subdomain == "" || subdomain == "www" {
		return ""
	}

	parts := strings.Split(subdomain, ".")
	return parts[0]
}

func abortTenantUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	})
}

// GetTenantID retrieves the resolved tenant ID from the gin context.
func GetTenantID(c *gin.Context) string {
	if tenantID, exists := c.Get(TenantIDKey); exists {
		if tid, ok := tenantID.(string); ok {
			return tid
		}
	}
	return ""
}
