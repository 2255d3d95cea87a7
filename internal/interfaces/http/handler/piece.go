package handler

import (
	"time"

	fulfillmentapp "github.com/fulfillment/backend/internal/application/fulfillment"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PieceHandler handles piece lifecycle endpoints
type PieceHandler struct {
	BaseHandler
	pieceService *fulfillmentapp.PieceService
}

// NewPieceHandler creates a new PieceHandler
func NewPieceHandler(pieceService *fulfillmentapp.PieceService) *PieceHandler {
	return &PieceHandler{
		pieceService: pieceService,
	}
}

// PieceResponse represents a piece in API responses
// @Description Piece response
type PieceResponse struct {
	ID            string    `json:"id" example:"550e8400-e29b-41d4-a716-446655440002"`
	OrderID       string    `json:"order_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	LineID        string    `json:"line_id" example:"550e8400-e29b-41d4-a716-446655440001"`
	Sequence      int       `json:"sequence" example:"2"`
	Status        string    `json:"status" example:"PROCESSING"`
	IsReady       bool      `json:"is_ready" example:"false"`
	IsRejected    bool      `json:"is_rejected" example:"false"`
	Location      string    `json:"location,omitempty" example:"RAIL-3"`
	Notes         string    `json:"notes,omitempty" example:""`
	Color         string    `json:"color,omitempty" example:"white"`
	Brand         string    `json:"brand,omitempty" example:""`
	TagCode       string    `json:"tag_code,omitempty" example:"T-0042"`
	HasStain      bool      `json:"has_stain" example:"false"`
	HasDamage     bool      `json:"has_damage" example:"false"`
	UpdatedBy     string    `json:"updated_by,omitempty" example:""`
	UpdatedReason string    `json:"updated_reason,omitempty" example:""`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DeletePieceResponse represents the outcome of a piece deletion
// @Description Piece deletion outcome including the line's re-derived ready count
type DeletePieceResponse struct {
	ReadyCount int `json:"ready_count" example:"1"`
}

// Create godoc
// @Summary      Create a line's piece set
// @Description  Create exactly one piece per ordered unit for a line, numbered 1..quantity. Fails if pieces already exist.
// @Tags         pieces
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        orderId path string true "Order ID" format(uuid)
// @Param        lineId path string true "Line ID" format(uuid)
// @Success      201 {object} dto.Response{data=[]PieceResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{orderId}/lines/{lineId}/pieces [post]
func (h *PieceHandler) Create(c *gin.Context) {
	tenantID, orderID, lineID, ok := h.pathIDs(c)
	if !ok {
		return
	}

	pieces, err := h.pieceService.CreateForLine(c.Request.Context(), tenantID, orderID, lineID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toPieceResponses(pieces))
}

// List godoc
// @Summary      List a line's pieces
// @Description  Return a line's pieces ordered by sequence
// @Tags         pieces
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        orderId path string true "Order ID" format(uuid)
// @Param        lineId path string true "Line ID" format(uuid)
// @Success      200 {object} dto.Response{data=[]PieceResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{orderId}/lines/{lineId}/pieces [get]
func (h *PieceHandler) List(c *gin.Context) {
	tenantID, orderID, lineID, ok := h.pathIDs(c)
	if !ok {
		return
	}

	pieces, err := h.pieceService.ListForLine(c.Request.Context(), tenantID, orderID, lineID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toPieceResponses(pieces))
}

// Delete godoc
// @Summary      Delete a piece
// @Description  Delete a single piece and re-derive its line's ready count
// @Tags         pieces
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        orderId path string true "Order ID" format(uuid)
// @Param        pieceId path string true "Piece ID" format(uuid)
// @Success      200 {object} dto.Response{data=DeletePieceResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{orderId}/pieces/{pieceId} [delete]
func (h *PieceHandler) Delete(c *gin.Context) {
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
	pieceID, err := uuid.Parse(c.Param("pieceId"))
	if err != nil {
		h.BadRequest(c, "Invalid piece ID format")
		return
	}

	readyCount, err := h.pieceService.Delete(c.Request.Context(), tenantID, orderID, pieceID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, DeletePieceResponse{ReadyCount: readyCount})
}

func (h *PieceHandler) pathIDs(c *gin.Context) (tenantID, orderID, lineID uuid.UUID, ok bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return uuid.Nil, uuid.Nil, uuid.Nil, false
	}
	orderID, err = uuid.Parse(c.Param("orderId"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return uuid.Nil, uuid.Nil, uuid.Nil, false
	}
	lineID, err = uuid.Parse(c.Param("lineId"))
	if err != nil {
		h.BadRequest(c, "Invalid line ID format")
		return uuid.Nil, uuid.Nil, uuid.Nil, false
	}
	return tenantID, orderID, lineID, true
}

func toPieceResponses(pieces []fulfillmentapp.PieceResponse) []PieceResponse {
	out := make([]PieceResponse, len(pieces))
	for i, p := range pieces {
		out[i] = PieceResponse{
			ID:            p.ID,
			OrderID:       p.OrderID,
			LineID:        p.LineID,
			Sequence:      p.Sequence,
			Status:        p.Status,
			IsReady:       p.IsReady,
			IsRejected:    p.IsRejected,
			Location:      p.Location,
			Notes:         p.Notes,
			Color:         p.Color,
			Brand:         p.Brand,
			TagCode:       p.TagCode,
			HasStain:      p.HasStain,
			HasDamage:     p.HasDamage,
			UpdatedBy:     p.UpdatedBy,
			UpdatedReason: p.UpdatedReason,
			CreatedAt:     p.CreatedAt,
			UpdatedAt:     p.UpdatedAt,
		}
	}
	return out
}
