package fulfillment

import (
	"context"

	"github.com/google/uuid"
)

// PieceWrite is one fully derived, ready-to-persist piece update. Fields maps
// column names to final values; derivation has already happened, the store
// applies it verbatim.
type PieceWrite struct {
	PieceID uuid.UUID
	Ref     PieceRef
	Fields  map[string]any
}

// PieceWriteError records one piece update the store rejected. Sibling
// updates in the same batch are unaffected.
type PieceWriteError struct {
	PieceID uuid.UUID `json:"piece_id"`
	Ref     string    `json:"ref"`
	Message string    `json:"message"`
}

// TrackingBatchResult reports the outcome of one line's tracking batch.
type TrackingBatchResult struct {
	Updated    int
	ReadyCount int
	Errors     []PieceWriteError
}

// PieceRepository is the store for individual trackable pieces. Every lookup
// is scoped by tenant in addition to its primary key, as a second
// authorization boundary independent of the request-layer checks.
type PieceRepository interface {
	// CreateBatch persists a freshly created piece set for one line.
	CreateBatch(ctx context.Context, pieces []Piece) error
	// FindByID fetches a piece by stable ID, scoped by tenant, order and
	// line. A uuid.Nil lineID skips the line filter (single-piece
	// operations that only know the order).
	FindByID(ctx context.Context, tenantID, orderID, lineID, id uuid.UUID) (*Piece, error)
	// FindBySequence fetches a piece by its synthetic (line, sequence) address.
	FindBySequence(ctx context.Context, tenantID, orderID, lineID uuid.UUID, sequence int) (*Piece, error)
	// FindByLine fetches all pieces of a line ordered by sequence.
	FindByLine(ctx context.Context, tenantID, lineID uuid.UUID) ([]Piece, error)
	// CountByLine counts the pieces currently stored for a line.
	CountByLine(ctx context.Context, tenantID, lineID uuid.UUID) (int64, error)
	// CountReady counts the line's pieces satisfying Piece.CountsAsReady.
	CountReady(ctx context.Context, tenantID, lineID uuid.UUID) (int64, error)
	// Delete removes a single piece.
	Delete(ctx context.Context, tenantID, orderID, id uuid.UUID) error
}

// OrderLineRepository is the store for order lines and the transactional
// boundary of per-line tracking writes.
type OrderLineRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*OrderLine, error)
	FindByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]OrderLine, error)
	// ApplyTrackingBatch applies a line's piece writes, recounts the ready
	// pieces and persists the count plus the line's step fields, all in one
	// transaction guarded by the line's version. Individual piece writes are
	// best-effort: a rejected write is reported in the result without
	// aborting its siblings. Returns shared.ErrConcurrencyConflict when the
	// line version check fails; the whole transaction is rolled back then.
	ApplyTrackingBatch(ctx context.Context, line *OrderLine, writes []PieceWrite) (*TrackingBatchResult, error)
	// SyncReadyCount recounts a line's ready pieces and persists the count.
	// Idempotent; with ApplyTrackingBatch it is the only writer of ReadyCount
	// in per-piece tracking mode.
	SyncReadyCount(ctx context.Context, tenantID, lineID uuid.UUID) (int, error)
	// SaveLegacyAggregate overwrites the line's aggregate tracking fields
	// (ready count, step, metadata) under a version check. Legacy mode only.
	SaveLegacyAggregate(ctx context.Context, line *OrderLine) error
}

// OrderRepository is the store for orders and their append-only history.
type OrderRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Order, error)
	// SetStorageLocation persists the pickup location unconditionally.
	SetStorageLocation(ctx context.Context, order *Order) error
	// MarkReadyIfSatisfied re-reads the order and all its lines inside one
	// transaction; when every line is satisfied and a storage location is
	// present it transitions the order to READY under a version check and
	// appends the STATUS_CHANGE history entry atomically. Returns true when
	// the transition happened.
	MarkReadyIfSatisfied(ctx context.Context, tenantID, orderID uuid.UUID, actor string) (bool, error)
	// History returns the order's history entries, oldest first.
	History(ctx context.Context, tenantID, orderID uuid.UUID) ([]OrderHistoryEntry, error)
}
