package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fulfillment/backend/internal/domain/fulfillment"
	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormOrderLineRepository implements OrderLineRepository using GORM
type GormOrderLineRepository struct {
	db *gorm.DB
}

// NewGormOrderLineRepository creates a new GormOrderLineRepository
func NewGormOrderLineRepository(db *gorm.DB) *GormOrderLineRepository {
	return &GormOrderLineRepository{db: db}
}

// FindByIDForTenant finds a line by ID within a tenant
func (r *GormOrderLineRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*fulfillment.OrderLine, error) {
	var line fulfillment.OrderLine
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&line).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &line, nil
}

// FindByOrder returns an order's lines in creation order
func (r *GormOrderLineRepository) FindByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]fulfillment.OrderLine, error) {
	var lines []fulfillment.OrderLine
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
		Order("created_at ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// ApplyTrackingBatch applies one line's piece writes and re-derives the
// line's ready count in a single transaction.
//
// Piece writes are best-effort: each runs inside its own savepoint, so a
// failed write rolls back alone and is reported in the result while its
// siblings commit. The recount that follows only sees the writes that stuck,
// which keeps the persisted ready count consistent with the pieces no matter
// which subset failed.
//
// The closing line update is version-checked; a lost race against a
// concurrent batch rolls the whole transaction back with
// shared.ErrConcurrencyConflict so the caller can refetch and retry.
func (r *GormOrderLineRepository) ApplyTrackingBatch(ctx context.Context, line *fulfillment.OrderLine, writes []fulfillment.PieceWrite) (*fulfillment.TrackingBatchResult, error) {
	result := &fulfillment.TrackingBatchResult{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, w := range writes {
			sp := fmt.Sprintf("piece_write_%d", i)
			tx.SavePoint(sp)

			res := tx.Model(&fulfillment.Piece{}).
				Where("tenant_id = ? AND line_id = ? AND id = ?", line.TenantID, line.ID, w.PieceID).
				Updates(w.Fields)

			switch {
			case res.Error != nil:
				tx.RollbackTo(sp)
				result.Errors = append(result.Errors, fulfillment.PieceWriteError{
					PieceID: w.PieceID,
					Ref:     w.Ref.String(),
					Message: res.Error.Error(),
				})
			case res.RowsAffected == 0:
				// Deleted between resolution and write.
				result.Errors = append(result.Errors, fulfillment.PieceWriteError{
					PieceID: w.PieceID,
					Ref:     w.Ref.String(),
					Message: "piece no longer exists",
				})
			default:
				result.Updated++
			}
		}

		var ready int64
		if err := tx.Model(&fulfillment.Piece{}).
			Where("tenant_id = ? AND line_id = ? AND status = ? AND is_rejected = ?",
				line.TenantID, line.ID, fulfillment.PieceStatusReady, false).
			Count(&ready).Error; err != nil {
			return err
		}
		result.ReadyCount = int(ready)

		currentVersion := line.Version
		res := tx.Model(&fulfillment.OrderLine{}).
			Where("tenant_id = ? AND id = ? AND version = ?", line.TenantID, line.ID, currentVersion).
			Updates(map[string]interface{}{
				"ready_count":  result.ReadyCount,
				"last_step":    line.LastStep,
				"last_step_at": line.LastStepAt,
				"last_step_by": line.LastStepBy,
				"version":      currentVersion + 1,
				"updated_at":   time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}
		line.Version = currentVersion + 1

		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SyncReadyCount re-derives a line's ready count from its pieces and persists
// it. Used after out-of-band piece changes (deletes).
func (r *GormOrderLineRepository) SyncReadyCount(ctx context.Context, tenantID, lineID uuid.UUID) (int, error) {
	var count int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ready int64
		if err := tx.Model(&fulfillment.Piece{}).
			Where("tenant_id = ? AND line_id = ? AND status = ? AND is_rejected = ?",
				tenantID, lineID, fulfillment.PieceStatusReady, false).
			Count(&ready).Error; err != nil {
			return err
		}
		count = int(ready)

		res := tx.Model(&fulfillment.OrderLine{}).
			Where("tenant_id = ? AND id = ?", tenantID, lineID).
			Updates(map[string]interface{}{
				"ready_count": count,
				"version":     gorm.Expr("version + 1"),
				"updated_at":  time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// SaveLegacyAggregate persists the line-aggregate tracking fields with a
// version check. Legacy mode trusts the caller's counts, so the write is a
// plain column update with no piece recount.
func (r *GormOrderLineRepository) SaveLegacyAggregate(ctx context.Context, line *fulfillment.OrderLine) error {
	currentVersion := line.Version
	res := r.db.WithContext(ctx).Model(&fulfillment.OrderLine{}).
		Where("tenant_id = ? AND id = ? AND version = ?", line.TenantID, line.ID, currentVersion).
		Updates(map[string]interface{}{
			"ready_count":  line.ReadyCount,
			"last_step":    line.LastStep,
			"last_step_at": line.LastStepAt,
			"last_step_by": line.LastStepBy,
			"metadata":     line.Metadata,
			"version":      currentVersion + 1,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	line.Version = currentVersion + 1
	return nil
}
