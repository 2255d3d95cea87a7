package persistence

import (
	"context"
	"errors"

	"github.com/fulfillment/backend/internal/domain/fulfillment"
	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPieceRepository implements PieceRepository using GORM
type GormPieceRepository struct {
	db *gorm.DB
}

// NewGormPieceRepository creates a new GormPieceRepository
func NewGormPieceRepository(db *gorm.DB) *GormPieceRepository {
	return &GormPieceRepository{db: db}
}

// CreateBatch inserts a line's full piece set in one transaction.
func (r *GormPieceRepository) CreateBatch(ctx context.Context, pieces []fulfillment.Piece) error {
	if len(pieces) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&pieces).Error
}

// FindByID finds a piece by stable ID within a tenant, order and line. A
// uuid.Nil lineID skips the line filter for callers that only know the order.
func (r *GormPieceRepository) FindByID(ctx context.Context, tenantID, orderID, lineID, id uuid.UUID) (*fulfillment.Piece, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ? AND id = ?", tenantID, orderID, id)
	if lineID != uuid.Nil {
		query = query.Where("line_id = ?", lineID)
	}

	var piece fulfillment.Piece
	if err := query.First(&piece).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &piece, nil
}

// FindBySequence finds a piece by its per-line sequence number.
func (r *GormPieceRepository) FindBySequence(ctx context.Context, tenantID, orderID, lineID uuid.UUID, sequence int) (*fulfillment.Piece, error) {
	var piece fulfillment.Piece
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ? AND line_id = ? AND sequence = ?", tenantID, orderID, lineID, sequence).
		First(&piece).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &piece, nil
}

// FindByLine returns a line's pieces ordered by sequence
func (r *GormPieceRepository) FindByLine(ctx context.Context, tenantID, lineID uuid.UUID) ([]fulfillment.Piece, error) {
	var pieces []fulfillment.Piece
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND line_id = ?", tenantID, lineID).
		Order("sequence ASC").
		Find(&pieces).Error; err != nil {
		return nil, err
	}
	return pieces, nil
}

// CountByLine counts a line's pieces
func (r *GormPieceRepository) CountByLine(ctx context.Context, tenantID, lineID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&fulfillment.Piece{}).
		Where("tenant_id = ? AND line_id = ?", tenantID, lineID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountReady counts a line's pieces that contribute to the ready count:
// status READY and not rejected.
func (r *GormPieceRepository) CountReady(ctx context.Context, tenantID, lineID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&fulfillment.Piece{}).
		Where("tenant_id = ? AND line_id = ? AND status = ? AND is_rejected = ?",
			tenantID, lineID, fulfillment.PieceStatusReady, false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Delete removes a piece
func (r *GormPieceRepository) Delete(ctx context.Context, tenantID, orderID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
		Delete(&fulfillment.Piece{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
