package fulfillment

import (
	"time"

	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Event types emitted by the fulfillment domain
const (
	EventTypeOrderReady = "fulfillment.order.ready"
)

// OrderReadyEvent is emitted when an order transitions to READY.
type OrderReadyEvent struct {
	shared.BaseDomainEvent
	OrderNumber     string `json:"order_number"`
	StorageLocation string `json:"storage_location"`
}

// NewOrderReadyEvent creates an OrderReadyEvent for the given order.
func NewOrderReadyEvent(o *Order, at time.Time) *OrderReadyEvent {
	return &OrderReadyEvent{
		BaseDomainEvent: shared.BaseDomainEvent{
			ID:            uuid.New(),
			Type:          EventTypeOrderReady,
			Timestamp:     at,
			AggID:         o.ID,
			AggType:       "Order",
			TenantIDValue: o.TenantID,
			Version:       1,
		},
		OrderNumber:     o.OrderNumber,
		StorageLocation: o.StorageLocation,
	}
}
