package fulfillment

import (
	"context"
	"time"

	"github.com/fulfillment/backend/internal/domain/fulfillment"
	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PieceService owns the piece lifecycle entry points around the tracking
// engine: creating a line's piece set (invoked by order creation), deleting a
// single piece, and the read-only piece listing for UI and reporting.
type PieceService struct {
	pieces fulfillment.PieceRepository
	lines  fulfillment.OrderLineRepository
	logger *zap.Logger
	now    func() time.Time
}

// PieceServiceOption is a functional option for configuring the service
type PieceServiceOption func(*PieceService)

// WithPieceClock overrides the time source.
func WithPieceClock(now func() time.Time) PieceServiceOption {
	return func(s *PieceService) {
		s.now = now
	}
}

// NewPieceService creates a new PieceService
func NewPieceService(pieces fulfillment.PieceRepository, lines fulfillment.OrderLineRepository, logger *zap.Logger, opts ...PieceServiceOption) *PieceService {
	s := &PieceService{
		pieces: pieces,
		lines:  lines,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateForLine creates the full piece set for a newly created line: exactly
// Quantity pieces with sequences 1..Quantity. It is a precondition of the
// tracking engine and must run once per line.
func (s *PieceService) CreateForLine(ctx context.Context, tenantID, orderID, lineID uuid.UUID) ([]PieceResponse, error) {
	line, err := s.lines.FindByIDForTenant(ctx, tenantID, lineID)
	if err != nil {
		return nil, err
	}
	if line.OrderID != orderID {
		return nil, shared.ErrNotFound
	}

	existing, err := s.pieces.CountByLine(ctx, tenantID, lineID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, shared.NewDomainError("PIECES_EXIST", "Pieces have already been created for this line")
	}

	pieces, err := fulfillment.NewPieceSet(tenantID, orderID, lineID, line.Quantity)
	if err != nil {
		return nil, err
	}
	if err := s.pieces.CreateBatch(ctx, pieces); err != nil {
		return nil, err
	}

	responses := make([]PieceResponse, len(pieces))
	for i := range pieces {
		responses[i] = ToPieceResponse(&pieces[i])
	}
	return responses, nil
}

// ListForLine returns a line's pieces ordered by sequence.
func (s *PieceService) ListForLine(ctx context.Context, tenantID, orderID, lineID uuid.UUID) ([]PieceResponse, error) {
	line, err := s.lines.FindByIDForTenant(ctx, tenantID, lineID)
	if err != nil {
		return nil, err
	}
	if line.OrderID != orderID {
		return nil, shared.ErrNotFound
	}

	pieces, err := s.pieces.FindByLine(ctx, tenantID, lineID)
	if err != nil {
		return nil, err
	}
	responses := make([]PieceResponse, len(pieces))
	for i := range pieces {
		responses[i] = ToPieceResponse(&pieces[i])
	}
	return responses, nil
}

// Delete removes a single piece and re-synchronizes its line's ready count.
// The resynchronization is best-effort: a failure is logged and left to the
// next batch or an external reconciliation, the delete itself stands.
func (s *PieceService) Delete(ctx context.Context, tenantID, orderID, pieceID uuid.UUID) (int, error) {
	piece, err := s.pieces.FindByID(ctx, tenantID, orderID, uuid.Nil, pieceID)
	if err != nil {
		return 0, err
	}

	if err := s.pieces.Delete(ctx, tenantID, orderID, pieceID); err != nil {
		return 0, err
	}

	count, err := s.lines.SyncReadyCount(ctx, tenantID, piece.LineID)
	if err != nil {
		s.logger.Error("ready count resync after piece delete failed",
			zap.String("line_id", piece.LineID.String()),
			zap.String("piece_id", pieceID.String()),
			zap.Error(err))
		return 0, nil
	}
	return count, nil
}
