package fulfillment

import (
	"time"

	"github.com/fulfillment/backend/internal/domain/fulfillment"
	"github.com/google/uuid"
)

// PieceUpdateInput is one per-piece update request inside a tracking batch.
// Ref is a raw piece reference (stable ID or line:sequence). All other fields
// are partial: nil means "leave untouched".
type PieceUpdateInput struct {
	LineID    uuid.UUID
	Ref       string
	IsReady   *bool
	Step      *string
	Location  *string
	Notes     *string
	Rejected  *bool
	Color     *string
	Brand     *string
	TagCode   *string
	HasStain  *bool
	HasDamage *bool
}

// LegacyLineInput carries a legacy-mode per-line ready-count override.
type LegacyLineInput struct {
	LineID     uuid.UUID
	ReadyCount *int
}

// BatchTrackingRequest is the inbound contract of the batch orchestrator.
type BatchTrackingRequest struct {
	Updates []PieceUpdateInput
	// StorageLocation, when supplied, is persisted on the order
	// unconditionally before the transition evaluation.
	StorageLocation *string
	// LegacyCounts apply only in legacy line-aggregate mode.
	LegacyCounts []LegacyLineInput
	// Actor is the audit identity performing the batch.
	Actor string
}

// BatchTrackingResponse reports the aggregate outcome of one batch call.
// Partial success is explicit: Success is false whenever Errors is non-empty
// even if PiecesUpdated is non-zero; callers must not treat the response as
// atomic.
type BatchTrackingResponse struct {
	Success         bool                          `json:"success"`
	Mode            string                        `json:"mode"`
	PiecesUpdated   int                           `json:"pieces_updated"`
	LinesUpdated    int                           `json:"lines_updated"`
	ReadyCount      int                           `json:"ready_count"`
	StepsRecorded   int                           `json:"steps_recorded"`
	LocationsSet    int                           `json:"locations_set"`
	OrderTransition bool                          `json:"order_transitioned"`
	Errors          []fulfillment.PieceWriteError `json:"errors,omitempty"`
}

// PieceResponse is the read model for a single piece.
type PieceResponse struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id"`
	LineID        string    `json:"line_id"`
	Sequence      int       `json:"sequence"`
	Status        string    `json:"status"`
	IsReady       bool      `json:"is_ready"`
	IsRejected    bool      `json:"is_rejected"`
	Location      string    `json:"location,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Color         string    `json:"color,omitempty"`
	Brand         string    `json:"brand,omitempty"`
	TagCode       string    `json:"tag_code,omitempty"`
	HasStain      bool      `json:"has_stain"`
	HasDamage     bool      `json:"has_damage"`
	UpdatedBy     string    `json:"updated_by,omitempty"`
	UpdatedReason string    `json:"updated_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ToPieceResponse maps a piece to its read model.
func ToPieceResponse(p *fulfillment.Piece) PieceResponse {
	return PieceResponse{
		ID:            p.ID.String(),
		OrderID:       p.OrderID.String(),
		LineID:        p.LineID.String(),
		Sequence:      p.Sequence,
		Status:        p.Status.String(),
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
