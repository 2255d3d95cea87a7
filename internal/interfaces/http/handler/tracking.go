package handler

import (
	"time"

	fulfillmentapp "github.com/fulfillment/backend/internal/application/fulfillment"
	"github.com/fulfillment/backend/internal/domain/fulfillment"
	"github.com/fulfillment/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// TrackingHandler handles piece tracking batch endpoints
type TrackingHandler struct {
	BaseHandler
	trackingService *fulfillmentapp.TrackingService
	metrics         *telemetry.TrackingMetrics
}

// TrackingHandlerOption configures optional handler collaborators
type TrackingHandlerOption func(*TrackingHandler)

// WithTrackingMetrics attaches batch metrics recording to the handler.
func WithTrackingMetrics(metrics *telemetry.TrackingMetrics) TrackingHandlerOption {
	return func(h *TrackingHandler) {
		h.metrics = metrics
	}
}

// NewTrackingHandler creates a new TrackingHandler
func NewTrackingHandler(trackingService *fulfillmentapp.TrackingService, opts ...TrackingHandlerOption) *TrackingHandler {
	h := &TrackingHandler{
		trackingService: trackingService,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterTrackingValidations registers the custom binding validations used
// by the tracking endpoints. Must be called once before routes are served.
func RegisterTrackingValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("pieceref", func(fl validator.FieldLevel) bool {
			_, err := fulfillment.ParsePieceRef(fl.Field().String())
			return err == nil
		})
	}
}

// PieceUpdateRequest is one piece's update within a tracking batch
// @Description Single piece update: a stable piece UUID or a "lineID:sequence" reference plus the changed fields
type PieceUpdateRequest struct {
	LineID    string  `json:"line_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440001"`
	Ref       string  `json:"ref" binding:"required,pieceref" example:"550e8400-e29b-41d4-a716-446655440001:2"`
	IsReady   *bool   `json:"is_ready,omitempty" example:"true"`
	Step      *string `json:"step,omitempty" example:"PRESS"`
	Location  *string `json:"location,omitempty" example:"RAIL-3"`
	Notes     *string `json:"notes,omitempty" example:"collar stain treated twice"`
	Rejected  *bool   `json:"rejected,omitempty" example:"false"`
	Color     *string `json:"color,omitempty" example:"white"`
	Brand     *string `json:"brand,omitempty" example:"Hugo Boss"`
	TagCode   *string `json:"tag_code,omitempty" example:"T-0042"`
	HasStain  *bool   `json:"has_stain,omitempty" example:"true"`
	HasDamage *bool   `json:"has_damage,omitempty" example:"false"`
}

// LegacyLineCountRequest is a legacy-mode per-line ready count override
// @Description Explicit ready count for one line, used by tenants without per-piece tracking
type LegacyLineCountRequest struct {
	LineID     string `json:"line_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440001"`
	ReadyCount *int   `json:"ready_count,omitempty" example:"3"`
}

// BatchTrackingRequest represents a tracking batch for one order
// @Description Request body for applying a batch of piece tracking updates
type BatchTrackingRequest struct {
	Updates         []PieceUpdateRequest     `json:"updates" binding:"dive"`
	LegacyCounts    []LegacyLineCountRequest `json:"legacy_counts,omitempty" binding:"dive"`
	StorageLocation *string                  `json:"storage_location,omitempty" example:"A-12"`
}

// BatchTrackingResponse represents the outcome of a tracking batch
// @Description Batch outcome counters plus any per-piece failures
type BatchTrackingResponse struct {
	Success         bool                 `json:"success" example:"true"`
	Mode            string               `json:"mode" example:"piece"`
	PiecesUpdated   int                  `json:"pieces_updated" example:"4"`
	LinesUpdated    int                  `json:"lines_updated" example:"2"`
	ReadyCount      int                  `json:"ready_count" example:"3"`
	StepsRecorded   int                  `json:"steps_recorded" example:"1"`
	LocationsSet    int                  `json:"locations_set" example:"1"`
	OrderTransition bool                 `json:"order_transition" example:"false"`
	Errors          []PieceErrorResponse `json:"errors,omitempty"`
}

// PieceErrorResponse describes one failed piece write
// @Description Per-piece failure detail
type PieceErrorResponse struct {
	PieceID string `json:"piece_id" example:"550e8400-e29b-41d4-a716-446655440002"`
	Ref     string `json:"ref" example:"550e8400-e29b-41d4-a716-446655440001:2"`
	Message string `json:"message" example:"piece no longer exists"`
}

// ApplyBatch godoc
// @Summary      Apply a tracking batch to an order
// @Description  Apply a batch of per-piece tracking updates (or legacy line counts) to an order, synchronizing line ready counts and evaluating the order's READY transition
// @Tags         tracking
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        orderId path string true "Order ID" format(uuid)
// @Param        request body BatchTrackingRequest true "Tracking batch"
// @Success      200 {object} dto.Response{data=BatchTrackingResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{orderId}/tracking [post]
func (h *TrackingHandler) ApplyBatch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	var req BatchTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	if len(req.Updates) == 0 && len(req.LegacyCounts) == 0 && req.StorageLocation == nil {
		h.BadRequest(c, "Batch must contain at least one update, legacy count or storage location")
		return
	}

	appReq := fulfillmentapp.BatchTrackingRequest{
		StorageLocation: req.StorageLocation,
		Actor:           actorFrom(c),
	}

	for _, u := range req.Updates {
		lineID, err := uuid.Parse(u.LineID)
		if err != nil {
			h.BadRequest(c, "Invalid line ID format")
			return
		}
		appReq.Updates = append(appReq.Updates, fulfillmentapp.PieceUpdateInput{
			LineID:    lineID,
			Ref:       u.Ref,
			IsReady:   u.IsReady,
			Step:      u.Step,
			Location:  u.Location,
			Notes:     u.Notes,
			Rejected:  u.Rejected,
			Color:     u.Color,
			Brand:     u.Brand,
			TagCode:   u.TagCode,
			HasStain:  u.HasStain,
			HasDamage: u.HasDamage,
		})
	}

	for _, lc := range req.LegacyCounts {
		lineID, err := uuid.Parse(lc.LineID)
		if err != nil {
			h.BadRequest(c, "Invalid line ID format")
			return
		}
		appReq.LegacyCounts = append(appReq.LegacyCounts, fulfillmentapp.LegacyLineInput{
			LineID:     lineID,
			ReadyCount: lc.ReadyCount,
		})
	}

	start := time.Now()
	result, err := h.trackingService.ApplyBatch(c.Request.Context(), tenantID, orderID, appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	if h.metrics != nil {
		ctx := c.Request.Context()
		h.metrics.RecordBatch(ctx, tenantID, telemetry.TrackingMode(result.Mode),
			result.PiecesUpdated, len(result.Errors), time.Since(start))
		if result.OrderTransition {
			h.metrics.RecordOrderReady(ctx, tenantID)
		}
	}

	h.Success(c, toBatchTrackingResponse(result))
}

// actorFrom resolves the acting user for audit fields: the authenticated
// user when present, otherwise the development header.
func actorFrom(c *gin.Context) string {
	if userID, err := getUserID(c); err == nil {
		return userID.String()
	}
	return "anonymous"
}

func toBatchTrackingResponse(result *fulfillmentapp.BatchTrackingResponse) BatchTrackingResponse {
	resp := BatchTrackingResponse{
		Success:         result.Success,
		Mode:            result.Mode,
		PiecesUpdated:   result.PiecesUpdated,
		LinesUpdated:    result.LinesUpdated,
		ReadyCount:      result.ReadyCount,
		StepsRecorded:   result.StepsRecorded,
		LocationsSet:    result.LocationsSet,
		OrderTransition: result.OrderTransition,
	}
	for _, e := range result.Errors {
		resp.Errors = append(resp.Errors, PieceErrorResponse{
			PieceID: e.PieceID.String(),
			Ref:     e.Ref,
			Message: e.Message,
		})
	}
	return resp
}
