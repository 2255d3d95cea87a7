package fulfillment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// OrderStatus represents the status of a fulfillment order
type OrderStatus string

const (
	OrderStatusIntake     OrderStatus = "INTAKE"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusReady      OrderStatus = "READY"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusIntake, OrderStatusProcessing, OrderStatusReady, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	switch s {
	case OrderStatusIntake:
		return target == OrderStatusProcessing || target == OrderStatusCancelled
	case OrderStatusProcessing:
		return target == OrderStatusReady || target == OrderStatusCancelled
	case OrderStatusReady:
		return target == OrderStatusDelivered
	case OrderStatusDelivered, OrderStatusCancelled:
		return false // Terminal states
	}
	return false
}

// HistoryEntryTypeStatusChange marks an order status transition record.
const HistoryEntryTypeStatusChange = "STATUS_CHANGE"

// OrderHistoryEntry is one append-only record in an order's history log.
// Entries are written in the same transaction as the mutation they describe
// and are never edited or deleted.
type OrderHistoryEntry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;index"`
	EntryType  string
	FromStatus OrderStatus
	ToStatus   OrderStatus
	Actor      string
	Payload    string
	CreatedAt  time.Time
}

// Order is the fulfillment order aggregate root. Orders are mutated by this
// subsystem only for the PROCESSING -> READY auto-transition; every other
// lifecycle mutation belongs to the surrounding order administration.
type Order struct {
	shared.TenantAggregateRoot
	OrderNumber  string
	CustomerID   uuid.UUID
	CustomerName string
	Status       OrderStatus
	// StorageLocation is where a completed order can be picked up
	// (e.g. rack slot "A-12"). The READY transition requires it.
	StorageLocation string
	ReadyAt         *time.Time
	DeliveredAt     *time.Time
	Notes           string
}

// NewOrder creates a new fulfillment order in INTAKE.
func NewOrder(tenantID uuid.UUID, orderNumber string, customerID uuid.UUID, customerName string) (*Order, error) {
	if orderNumber == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}

	return &Order{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		OrderNumber:         orderNumber,
		CustomerID:          customerID,
		CustomerName:        customerName,
		Status:              OrderStatusIntake,
	}, nil
}

// SetStorageLocation records the pickup location for the order.
func (o *Order) SetStorageLocation(location string, at time.Time) {
	o.StorageLocation = location
	o.UpdatedAt = at
}

// MarkReady transitions the order PROCESSING -> READY and returns the
// STATUS_CHANGE history entry describing the transition. The transition
// requires a storage location: completion always carries an explicit
// "where to find it" signal.
func (o *Order) MarkReady(actor string, at time.Time) (*OrderHistoryEntry, error) {
	if !o.Status.CanTransitionTo(OrderStatusReady) {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot mark order ready in %s status", o.Status))
	}
	if o.StorageLocation == "" {
		return nil, shared.NewDomainError("NO_STORAGE_LOCATION", "Storage location must be set before the order can be marked ready")
	}

	from := o.Status
	o.Status = OrderStatusReady
	o.ReadyAt = &at
	o.UpdatedAt = at
	o.AddDomainEvent(NewOrderReadyEvent(o, at))

	entry := NewStatusChangeEntry(o, from, OrderStatusReady, actor, map[string]string{
		"reason":           "all pieces ready",
		"storage_location": o.StorageLocation,
	}, at)
	return entry, nil
}

// NewStatusChangeEntry builds an immutable STATUS_CHANGE history record.
func NewStatusChangeEntry(o *Order, from, to OrderStatus, actor string, payload map[string]string, at time.Time) *OrderHistoryEntry {
	raw, _ := json.Marshal(payload)
	return &OrderHistoryEntry{
		ID:         uuid.New(),
		TenantID:   o.TenantID,
		OrderID:    o.ID,
		EntryType:  HistoryEntryTypeStatusChange,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Payload:    string(raw),
		CreatedAt:  at,
	}
}

// IsReady returns true if the order has been marked ready for pickup.
func (o *Order) IsReady() bool {
	return o.Status == OrderStatusReady
}

// IsProcessing returns true if the order is being processed.
func (o *Order) IsProcessing() bool {
	return o.Status == OrderStatusProcessing
}
