package fulfillment

import (
	"time"

	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// PieceStatus represents the processing status of a single piece
type PieceStatus string

const (
	PieceStatusIntake     PieceStatus = "INTAKE"
	PieceStatusProcessing PieceStatus = "PROCESSING"
	PieceStatusQA         PieceStatus = "QA"
	PieceStatusReady      PieceStatus = "READY"
)

// IsValid checks if the status is a valid PieceStatus
func (s PieceStatus) IsValid() bool {
	switch s {
	case PieceStatusIntake, PieceStatusProcessing, PieceStatusQA, PieceStatusReady:
		return true
	}
	return false
}

// String returns the string representation of PieceStatus
func (s PieceStatus) String() string {
	return string(s)
}

// Piece is the smallest trackable unit of an order line (one garment).
// Pieces are created once when the line is created, exactly Quantity of them
// with sequences 1..Quantity, and are mutated many times by tracking batches.
type Piece struct {
	shared.BaseEntity
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index"`
	OrderID       uuid.UUID `gorm:"type:uuid;not null;index"`
	LineID        uuid.UUID `gorm:"type:uuid;not null;index:idx_pieces_line_seq,unique"`
	Sequence      int       `gorm:"not null;index:idx_pieces_line_seq,unique"`
	Status        PieceStatus
	IsReady       bool
	IsRejected    bool
	Location      string
	Notes         string
	Color         string
	Brand         string
	TagCode       string
	HasStain      bool
	HasDamage     bool
	UpdatedBy     string
	UpdatedReason string
}

// NewPieceSet creates the full piece set for a newly created line: quantity
// pieces with sequences 1..quantity, all in INTAKE.
func NewPieceSet(tenantID, orderID, lineID uuid.UUID, quantity int) ([]Piece, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if orderID == uuid.Nil || lineID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LINE", "Order ID and line ID cannot be empty")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}

	pieces := make([]Piece, quantity)
	for i := range pieces {
		pieces[i] = Piece{
			BaseEntity: shared.NewBaseEntity(),
			TenantID:   tenantID,
			OrderID:    orderID,
			LineID:     lineID,
			Sequence:   i + 1,
			Status:     PieceStatusIntake,
		}
	}
	return pieces, nil
}

// CountsAsReady is the single predicate deciding whether a piece contributes
// to its line's ready count: fully processed and not rejected.
func (p *Piece) CountsAsReady() bool {
	return p.Status == PieceStatusReady && !p.IsRejected
}

// Tracking returns the piece's current derivable tracking state.
func (p *Piece) Tracking() TrackingState {
	return TrackingState{Status: p.Status, IsReady: p.IsReady}
}

// Touch stamps the audit fields for a tracking mutation.
func (p *Piece) Touch(by, reason string, at time.Time) {
	p.UpdatedBy = by
	p.UpdatedReason = reason
	p.UpdatedAt = at
}
