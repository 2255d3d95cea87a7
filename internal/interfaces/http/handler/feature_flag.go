package handler

import (
	flagapp "github.com/fulfillment/backend/internal/application/featureflag"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FeatureFlagHandler handles flag administration endpoints
type FeatureFlagHandler struct {
	BaseHandler
	flagService *flagapp.FlagService
}

// NewFeatureFlagHandler creates a new FeatureFlagHandler
func NewFeatureFlagHandler(flagService *flagapp.FlagService) *FeatureFlagHandler {
	return &FeatureFlagHandler{
		flagService: flagService,
	}
}

// SetFlagDefaultRequest represents a request to set a flag's default value
// @Description Request body for updating a flag definition
type SetFlagDefaultRequest struct {
	Name    string `json:"name" binding:"required,min=1,max=200" example:"Per-piece tracking"`
	Enabled bool   `json:"enabled" example:"true"`
}

// SetFlagOverrideRequest represents a request to pin a flag for one tenant
// @Description Request body for setting a tenant override
type SetFlagOverrideRequest struct {
	Enabled bool `json:"enabled" example:"true"`
}

// List godoc
// @Summary      List feature flags
// @Description  Return every flag definition with its default value
// @Tags         feature-flags
// @Produce      json
// @Success      200 {object} dto.Response{data=[]flagapp.FlagResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/flags [get]
func (h *FeatureFlagHandler) List(c *gin.Context) {
	flags, err := h.flagService.List(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, flags)
}

// SetDefault godoc
// @Summary      Set a flag's default value
// @Description  Create or update a flag definition
// @Tags         feature-flags
// @Accept       json
// @Produce      json
// @Param        key path string true "Flag key" example:"piece_tracking"
// @Param        request body SetFlagDefaultRequest true "Flag definition"
// @Success      200 {object} dto.Response{data=flagapp.FlagResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/flags/{key} [put]
func (h *FeatureFlagHandler) SetDefault(c *gin.Context) {
	var req SetFlagDefaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	flag, err := h.flagService.SetDefault(c.Request.Context(), c.Param("key"), req.Name, req.Enabled)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, flag)
}

// SetOverride godoc
// @Summary      Pin a flag for one tenant
// @Description  Set a tenant-specific override that wins over the flag's default
// @Tags         feature-flags
// @Accept       json
// @Produce      json
// @Param        key path string true "Flag key" example:"piece_tracking"
// @Param        tenantId path string true "Tenant ID" format(uuid)
// @Param        request body SetFlagOverrideRequest true "Override value"
// @Success      204
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/flags/{key}/tenants/{tenantId} [put]
func (h *FeatureFlagHandler) SetOverride(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID format")
		return
	}

	var req SetFlagOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	if err := h.flagService.SetOverride(c.Request.Context(), c.Param("key"), tenantID, req.Enabled); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.NoContent(c)
}

// ClearOverride godoc
// @Summary      Clear a tenant's flag override
// @Description  Remove the tenant override, reverting the tenant to the flag default
// @Tags         feature-flags
// @Produce      json
// @Param        key path string true "Flag key" example:"piece_tracking"
// @Param        tenantId path string true "Tenant ID" format(uuid)
// @Success      204
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/flags/{key}/tenants/{tenantId} [delete]
func (h *FeatureFlagHandler) ClearOverride(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID format")
		return
	}

	if err := h.flagService.ClearOverride(c.Request.Context(), c.Param("key"), tenantID); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.NoContent(c)
}
