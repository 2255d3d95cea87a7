package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is something that happened in the domain, attributed to an
// aggregate and a tenant.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	TenantID() uuid.UUID
}

// BaseDomainEvent implements DomainEvent for embedding in concrete events.
type BaseDomainEvent struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggID         uuid.UUID `json:"aggregate_id"`
	AggType       string    `json:"aggregate_type"`
	TenantIDValue uuid.UUID `json:"tenant_id"`
	Version       int       `json:"schema_version,omitempty"`
}

// EventID returns the unique event identifier.
func (e *BaseDomainEvent) EventID() uuid.UUID { return e.ID }

// EventType returns the event's type string.
func (e *BaseDomainEvent) EventType() string { return e.Type }

// OccurredAt returns when the event happened.
func (e *BaseDomainEvent) OccurredAt() time.Time { return e.Timestamp }

// AggregateID returns the ID of the aggregate that raised the event.
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.AggID }

// AggregateType returns the kind of aggregate that raised the event.
func (e *BaseDomainEvent) AggregateType() string { return e.AggType }

// TenantID returns the tenant the event belongs to.
func (e *BaseDomainEvent) TenantID() uuid.UUID { return e.TenantIDValue }
