package fulfillment

import (
	"time"

	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLine is an order line item: an ordered quantity of one service
// (e.g. "shirt wash & press" x 5). Quantity and the price fields are written
// at order creation and immutable afterwards. ReadyCount is derived state:
// it must always equal the count of this line's pieces satisfying
// Piece.CountsAsReady and is re-derivable at any time.
type OrderLine struct {
	shared.BaseEntity
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index"`
	OrderID     uuid.UUID `gorm:"type:uuid;not null;index"`
	ServiceName string
	ServiceCode string
	Quantity    int
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4)"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4)"`
	ReadyCount  int
	LastStep    string
	LastStepAt  *time.Time
	LastStepBy  string
	// Metadata is a free-form JSON blob maintained only by legacy
	// line-aggregate tracking; per-piece tracking never writes it.
	Metadata string
	Version  int `gorm:"not null;default:1"`
}

// NewOrderLine creates a new order line.
func NewOrderLine(tenantID, orderID uuid.UUID, serviceName, serviceCode string, quantity int, unitPrice decimal.Decimal) (*OrderLine, error) {
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER", "Order ID cannot be empty")
	}
	if serviceName == "" {
		return nil, shared.NewDomainError("INVALID_SERVICE_NAME", "Service name cannot be empty")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}

	return &OrderLine{
		BaseEntity:  shared.NewBaseEntity(),
		TenantID:    tenantID,
		OrderID:     orderID,
		ServiceName: serviceName,
		ServiceCode: serviceCode,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Amount:      unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		Version:     1,
	}, nil
}

// SetReadyCount records a freshly derived ready count.
func (l *OrderLine) SetReadyCount(count int) error {
	if count < 0 || count > l.Quantity {
		return shared.NewDomainError("INVALID_READY_COUNT", "Ready count must be between 0 and the ordered quantity")
	}
	l.ReadyCount = count
	return nil
}

// RecordStep stamps the most recent processing step touched on this line.
func (l *OrderLine) RecordStep(step, by string, at time.Time) {
	if step == "" {
		return
	}
	l.LastStep = step
	l.LastStepAt = &at
	l.LastStepBy = by
}

// IsSatisfied reports whether every ordered piece of this line is ready.
func (l *OrderLine) IsSatisfied() bool {
	return l.ReadyCount >= l.Quantity
}
