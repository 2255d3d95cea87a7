package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/fulfillment/backend/internal/domain/fulfillment"
	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByIDForTenant finds an order by ID within a tenant
func (r *GormOrderRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*fulfillment.Order, error) {
	var order fulfillment.Order
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// SetStorageLocation persists the order's pickup location
func (r *GormOrderRepository) SetStorageLocation(ctx context.Context, order *fulfillment.Order) error {
	res := r.db.WithContext(ctx).Model(&fulfillment.Order{}).
		Where("tenant_id = ? AND id = ?", order.TenantID, order.ID).
		Updates(map[string]interface{}{
			"storage_location": order.StorageLocation,
			"updated_at":       order.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MarkReadyIfSatisfied transitions the order PROCESSING -> READY when every
// line's ready count has reached its quantity. The evaluation, the status
// update and the history record share one transaction: an order is never
// READY without its STATUS_CHANGE entry.
//
// The order row is re-read inside the transaction and the update is
// version-checked, so two concurrent evaluations cannot both transition.
// Returns false with no error when the order is not (or no longer) eligible.
func (r *GormOrderRepository) MarkReadyIfSatisfied(ctx context.Context, tenantID, orderID uuid.UUID, actor string) (bool, error) {
	transitioned := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order fulfillment.Order
		if err := tx.Where("tenant_id = ? AND id = ?", tenantID, orderID).
			First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		if !order.IsProcessing() || order.StorageLocation == "" {
			return nil
		}

		var lines []fulfillment.OrderLine
		if err := tx.Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
			Find(&lines).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}
		for i := range lines {
			if !lines[i].IsSatisfied() {
				return nil
			}
		}

		entry, err := order.MarkReady(actor, time.Now())
		if err != nil {
			return err
		}

		currentVersion := order.Version
		res := tx.Model(&fulfillment.Order{}).
			Where("tenant_id = ? AND id = ? AND version = ? AND status = ?",
				tenantID, orderID, currentVersion, fulfillment.OrderStatusProcessing).
			Updates(map[string]interface{}{
				"status":     order.Status,
				"ready_at":   order.ReadyAt,
				"version":    currentVersion + 1,
				"updated_at": order.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Raced with another evaluation that already transitioned.
			return nil
		}

		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		// The history entry is the durable record of the transition; the
		// in-memory event has been handled once it is written.
		order.ClearDomainEvents()

		transitioned = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return transitioned, nil
}

// History returns an order's history log, oldest first
func (r *GormOrderRepository) History(ctx context.Context, tenantID, orderID uuid.UUID) ([]fulfillment.OrderHistoryEntry, error) {
	var entries []fulfillment.OrderHistoryEntry
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
