package fulfillment

import (
	"context"
	"time"

	"github.com/fulfillment/backend/internal/domain/featureflag"
	"github.com/fulfillment/backend/internal/domain/fulfillment"
	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/fulfillment/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FlagEvaluator resolves per-tenant feature flags.
type FlagEvaluator interface {
	IsEnabled(ctx context.Context, flagKey string, tenantID uuid.UUID) (bool, error)
}

// TrackingService is the batch orchestrator: it takes a flat batch of
// per-piece updates plus optional order-level fields, synchronizes each
// affected line through the tenant's SyncStrategy, and evaluates the order's
// READY transition exactly once after all lines are processed.
type TrackingService struct {
	orders fulfillment.OrderRepository
	lines  fulfillment.OrderLineRepository
	pieces fulfillment.PieceRepository
	flags  FlagEvaluator
	logger *zap.Logger
	now    func() time.Time
	// forcePieceTracking makes every tenant use per-piece tracking even when
	// the piece_tracking flag is disabled. Intended for migration rollouts;
	// each override is logged.
	forcePieceTracking bool
}

// TrackingServiceOption is a functional option for configuring the service
type TrackingServiceOption func(*TrackingService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) TrackingServiceOption {
	return func(s *TrackingService) {
		s.now = now
	}
}

// WithForcedPieceTracking forces per-piece tracking regardless of the
// tenant's piece_tracking flag.
func WithForcedPieceTracking(force bool) TrackingServiceOption {
	return func(s *TrackingService) {
		s.forcePieceTracking = force
	}
}

// NewTrackingService creates a new TrackingService
func NewTrackingService(
	orders fulfillment.OrderRepository,
	lines fulfillment.OrderLineRepository,
	pieces fulfillment.PieceRepository,
	flags FlagEvaluator,
	logger *zap.Logger,
	opts ...TrackingServiceOption,
) *TrackingService {
	s := &TrackingService{
		orders: orders,
		lines:  lines,
		pieces: pieces,
		flags:  flags,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lineWork is one line's slice of the batch: its updates in request order
// plus the legacy-mode override, if any.
type lineWork struct {
	lineID  uuid.UUID
	updates []PieceUpdateInput
	legacy  *LegacyLineInput
}

// batchCounters accumulates the caller-feedback counters across one call.
type batchCounters struct {
	piecesUpdated int
	linesUpdated  int
	piecesReady   int
	steps         map[string]struct{}
	locations     map[string]struct{}
	errors        []fulfillment.PieceWriteError
}

func newBatchCounters() *batchCounters {
	return &batchCounters{
		steps:     make(map[string]struct{}),
		locations: make(map[string]struct{}),
	}
}

func (c *batchCounters) response() *BatchTrackingResponse {
	return &BatchTrackingResponse{
		Success:       len(c.errors) == 0,
		PiecesUpdated: c.piecesUpdated,
		LinesUpdated:  c.linesUpdated,
		ReadyCount:    c.piecesReady,
		StepsRecorded: len(c.steps),
		LocationsSet:  len(c.locations),
		Errors:        c.errors,
	}
}

// ApplyBatch processes one tracking batch for an order.
//
// Lines are processed sequentially in first-appearance order; each line's
// aggregate is synchronized before the next line starts, so the transition
// evaluation at the end always observes a consistent post-batch state.
// Per-piece failures stay local to their piece; only an
// invalid order or line/order pairing fails the whole call.
func (s *TrackingService) ApplyBatch(ctx context.Context, tenantID, orderID uuid.UUID, req BatchTrackingRequest) (*BatchTrackingResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tracking", "apply_batch")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrOrderID, orderID.String(),
		telemetry.SpanAttrBatchSize, len(req.Updates),
	)

	order, err := s.orders.FindByIDForTenant(ctx, tenantID, orderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	strategy := s.selectStrategy(ctx, tenantID)
	acc := newBatchCounters()

	for _, work := range groupByLine(req) {
		line, err := s.lines.FindByIDForTenant(ctx, tenantID, work.lineID)
		if err != nil {
			return nil, err
		}
		if line.OrderID != order.ID {
			s.logger.Warn("tracking batch references a line outside the order",
				zap.String("order_id", orderID.String()),
				zap.String("line_id", work.lineID.String()))
			return nil, shared.ErrNotFound
		}

		if err := strategy.SyncLine(ctx, order, line, work, req.Actor, acc); err != nil {
			return nil, err
		}
	}

	if req.StorageLocation != nil {
		order.SetStorageLocation(*req.StorageLocation, s.now())
		if err := s.orders.SetStorageLocation(ctx, order); err != nil {
			return nil, err
		}
		acc.locations[*req.StorageLocation] = struct{}{}
	}

	resp := acc.response()
	resp.Mode = strategy.Name()
	telemetry.SetAttribute(span, telemetry.SpanAttrTrackingMode, resp.Mode)

	transitioned, err := s.orders.MarkReadyIfSatisfied(ctx, tenantID, orderID, req.Actor)
	if err != nil {
		// Best-effort: the batch itself succeeded, the transition will be
		// picked up by the next batch or an external reconciliation.
		s.logger.Error("order transition evaluation failed",
			zap.String("order_id", orderID.String()),
			zap.Error(err))
	}
	resp.OrderTransition = transitioned
	if transitioned {
		telemetry.AddEvent(span, "order_marked_ready",
			telemetry.SpanAttrOrderID, orderID.String(),
		)
	}

	telemetry.SetOK(span)
	return resp, nil
}

// selectStrategy picks the tenant's synchronization mode once per call.
func (s *TrackingService) selectStrategy(ctx context.Context, tenantID uuid.UUID) SyncStrategy {
	enabled, err := s.flags.IsEnabled(ctx, featureflag.FlagKeyPieceTracking, tenantID)
	if err != nil {
		s.logger.Warn("piece_tracking flag evaluation failed, defaulting to per-piece tracking",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		enabled = true
	}

	if !enabled && s.forcePieceTracking {
		s.logger.Warn("piece_tracking flag disabled for tenant but force override is set, using per-piece tracking",
			zap.String("tenant_id", tenantID.String()))
		enabled = true
	}

	if enabled {
		return &pieceSyncStrategy{pieces: s.pieces, lines: s.lines, logger: s.logger, now: s.now}
	}
	return &legacySyncStrategy{lines: s.lines, logger: s.logger, now: s.now}
}

// groupByLine splits the batch into per-line work, preserving both the order
// lines first appear in and the relative order of updates within a line.
func groupByLine(req BatchTrackingRequest) []lineWork {
	index := make(map[uuid.UUID]int)
	var groups []lineWork

	for _, u := range req.Updates {
		i, ok := index[u.LineID]
		if !ok {
			i = len(groups)
			index[u.LineID] = i
			groups = append(groups, lineWork{lineID: u.LineID})
		}
		groups[i].updates = append(groups[i].updates, u)
	}

	for i := range req.LegacyCounts {
		lc := req.LegacyCounts[i]
		j, ok := index[lc.LineID]
		if !ok {
			j = len(groups)
			index[lc.LineID] = j
			groups = append(groups, lineWork{lineID: lc.LineID})
		}
		groups[j].legacy = &lc
	}

	return groups
}
