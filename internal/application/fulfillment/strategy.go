package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fulfillment/backend/internal/domain/fulfillment"
	"github.com/fulfillment/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SyncStrategy synchronizes one line's tracking state from its slice of the
// batch. Two implementations exist: per-piece tracking (resolve pieces,
// derive state, write, recount) and legacy line-aggregate tracking (overwrite
// the line's aggregate fields, no piece records touched). The strategy is
// selected once per call; nothing downstream branches on the mode again.
type SyncStrategy interface {
	Name() string
	SyncLine(ctx context.Context, order *fulfillment.Order, line *fulfillment.OrderLine, work lineWork, actor string, acc *batchCounters) error
}

// maxResolveConcurrency bounds parallel piece lookups within one line.
const maxResolveConcurrency = 8

// lineSyncAttempts bounds optimistic-concurrency retries per line.
const lineSyncAttempts = 3

// pieceSyncStrategy is the per-piece tracking mode.
type pieceSyncStrategy struct {
	pieces fulfillment.PieceRepository
	lines  fulfillment.OrderLineRepository
	logger *zap.Logger
	now    func() time.Time
}

func (s *pieceSyncStrategy) Name() string { return "piece" }

// resolvedUpdate pairs an input update with the piece it addresses.
type resolvedUpdate struct {
	input PieceUpdateInput
	ref   fulfillment.PieceRef
	piece *fulfillment.Piece
	err   error // storage failure during resolution; nil for clean skip
}

func (s *pieceSyncStrategy) SyncLine(ctx context.Context, order *fulfillment.Order, line *fulfillment.OrderLine, work lineWork, actor string, acc *batchCounters) error {
	resolved := s.resolveRefs(ctx, order, line, work.updates)

	now := s.now()
	var writes []fulfillment.PieceWrite
	var readyFlags []bool
	var lastStep string

	for _, r := range resolved {
		if r.err != nil {
			acc.errors = append(acc.errors, fulfillment.PieceWriteError{
				PieceID: r.ref.PieceID(),
				Ref:     r.input.Ref,
				Message: r.err.Error(),
			})
			continue
		}
		if r.piece == nil {
			// Pieces pre-exist by contract; an unresolvable reference is a
			// data problem in the caller, dropped from the batch.
			s.logger.Warn("piece reference could not be resolved, skipping",
				zap.String("line_id", line.ID.String()),
				zap.String("ref", r.input.Ref))
			continue
		}

		derived := fulfillment.DeriveTracking(r.piece.Tracking(), trackingChange(r.input))

		rejected := r.piece.IsRejected
		if r.input.Rejected != nil {
			rejected = *r.input.Rejected
		}

		fields := map[string]any{
			"status":         derived.Status,
			"is_ready":       derived.IsReady,
			"updated_at":     now,
			"updated_by":     actor,
			"updated_reason": describeChange(r.input, derived),
		}
		setIfPresent(fields, "location", r.input.Location)
		setIfPresent(fields, "notes", r.input.Notes)
		setIfPresent(fields, "color", r.input.Color)
		setIfPresent(fields, "brand", r.input.Brand)
		setIfPresent(fields, "tag_code", r.input.TagCode)
		if r.input.Rejected != nil {
			fields["is_rejected"] = *r.input.Rejected
		}
		if r.input.HasStain != nil {
			fields["has_stain"] = *r.input.HasStain
		}
		if r.input.HasDamage != nil {
			fields["has_damage"] = *r.input.HasDamage
		}

		writes = append(writes, fulfillment.PieceWrite{
			PieceID: r.piece.ID,
			Ref:     r.ref,
			Fields:  fields,
		})
		readyFlags = append(readyFlags, derived.Status == fulfillment.PieceStatusReady && !rejected)

		if r.input.Step != nil && *r.input.Step != "" {
			lastStep = *r.input.Step
			acc.steps[*r.input.Step] = struct{}{}
		}
		if r.input.Location != nil && *r.input.Location != "" {
			acc.locations[*r.input.Location] = struct{}{}
		}
	}

	if len(writes) == 0 {
		// Nothing resolvable on this line: skip it entirely, no recount.
		return nil
	}

	line.RecordStep(lastStep, actor, now)

	var result *fulfillment.TrackingBatchResult
	var err error
	for attempt := 0; attempt < lineSyncAttempts; attempt++ {
		result, err = s.lines.ApplyTrackingBatch(ctx, line, writes)
		if err == nil || !errors.Is(err, shared.ErrConcurrencyConflict) {
			break
		}
		s.logger.Info("line version conflict, retrying tracking batch",
			zap.String("line_id", line.ID.String()),
			zap.Int("attempt", attempt+1))
		fresh, ferr := s.lines.FindByIDForTenant(ctx, line.TenantID, line.ID)
		if ferr != nil {
			err = ferr
			break
		}
		fresh.RecordStep(lastStep, actor, now)
		*line = *fresh
	}
	if err != nil {
		// The whole line transaction rolled back: the pieces were not
		// updated either. Surface that per piece and keep the call going.
		s.logger.Error("line tracking batch failed",
			zap.String("line_id", line.ID.String()),
			zap.Error(err))
		for _, w := range writes {
			acc.errors = append(acc.errors, fulfillment.PieceWriteError{
				PieceID: w.PieceID,
				Ref:     w.Ref.String(),
				Message: fmt.Sprintf("line synchronization failed: %v", err),
			})
		}
		return nil
	}

	failed := make(map[string]bool, len(result.Errors))
	for _, e := range result.Errors {
		failed[e.PieceID.String()] = true
	}
	for i, w := range writes {
		if readyFlags[i] && !failed[w.PieceID.String()] {
			acc.piecesReady++
		}
	}

	acc.piecesUpdated += result.Updated
	acc.errors = append(acc.errors, result.Errors...)
	if result.Updated > 0 {
		acc.linesUpdated++
	}
	line.ReadyCount = result.ReadyCount

	return nil
}

// resolveRefs resolves the updates' piece references concurrently, preserving
// input order in the result.
func (s *pieceSyncStrategy) resolveRefs(ctx context.Context, order *fulfillment.Order, line *fulfillment.OrderLine, updates []PieceUpdateInput) []resolvedUpdate {
	results := make([]resolvedUpdate, len(updates))
	sem := make(chan struct{}, maxResolveConcurrency)
	var wg sync.WaitGroup

	for i := range updates {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = s.resolveOne(ctx, order, line, updates[i])
		}(i)
	}
	wg.Wait()

	return results
}

func (s *pieceSyncStrategy) resolveOne(ctx context.Context, order *fulfillment.Order, line *fulfillment.OrderLine, input PieceUpdateInput) resolvedUpdate {
	out := resolvedUpdate{input: input}

	ref, err := fulfillment.ParsePieceRef(input.Ref)
	if err != nil {
		s.logger.Warn("malformed piece reference, skipping",
			zap.String("line_id", line.ID.String()),
			zap.String("ref", input.Ref))
		return out
	}
	out.ref = ref

	if ref.IsSynthetic() && ref.LineID() != line.ID {
		s.logger.Warn("synthetic piece reference addresses a different line, skipping",
			zap.String("line_id", line.ID.String()),
			zap.String("ref", input.Ref))
		return out
	}

	var piece *fulfillment.Piece
	if ref.IsSynthetic() {
		piece, err = s.pieces.FindBySequence(ctx, line.TenantID, order.ID, line.ID, ref.Sequence())
	} else {
		piece, err = s.pieces.FindByID(ctx, line.TenantID, order.ID, line.ID, ref.PieceID())
	}
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return out // clean skip
		}
		out.err = err
		return out
	}

	out.piece = piece
	// Substitute the stable identifier once; downstream only sees it.
	out.ref = fulfillment.StablePieceRef(piece.ID)
	return out
}

// trackingChange projects an input onto the rule engine's input.
func trackingChange(input PieceUpdateInput) fulfillment.TrackingChange {
	return fulfillment.TrackingChange{
		HasStep: input.Step != nil && *input.Step != "",
		IsReady: input.IsReady,
	}
}

func setIfPresent(fields map[string]any, column string, value *string) {
	if value != nil {
		fields[column] = *value
	}
}

// describeChange synthesizes the human-readable audit reason for one update.
func describeChange(input PieceUpdateInput, derived fulfillment.TrackingState) string {
	var parts []string
	if input.Step != nil && *input.Step != "" {
		parts = append(parts, fmt.Sprintf("step %s recorded", *input.Step))
	}
	if input.IsReady != nil {
		if *input.IsReady {
			parts = append(parts, "marked ready")
		} else {
			parts = append(parts, "readiness cleared")
		}
	}
	if input.Location != nil && *input.Location != "" {
		parts = append(parts, fmt.Sprintf("moved to %s", *input.Location))
	}
	if input.Rejected != nil && *input.Rejected {
		parts = append(parts, "rejected")
	}
	if len(parts) == 0 {
		parts = append(parts, "attributes updated")
	}
	return fmt.Sprintf("%s (status %s)", strings.Join(parts, ", "), derived.Status)
}

// legacyMetadata is the free-form statistics blob legacy mode maintains on
// the line record.
type legacyMetadata struct {
	Steps     map[string]int `json:"steps,omitempty"`
	Locations map[string]int `json:"locations,omitempty"`
	UpdatedBy string         `json:"updated_by,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// legacySyncStrategy is the line-aggregate mode kept for tenants that have
// not migrated to per-piece tracking. It never creates or mutates Piece
// records: the ready count comes straight from the callers' declared
// readiness flags (or an explicit per-line override) and the step/location
// statistics are accumulated client-side into the line's metadata blob.
type legacySyncStrategy struct {
	lines  fulfillment.OrderLineRepository
	logger *zap.Logger
	now    func() time.Time
}

func (s *legacySyncStrategy) Name() string { return "legacy" }

func (s *legacySyncStrategy) SyncLine(ctx context.Context, _ *fulfillment.Order, line *fulfillment.OrderLine, work lineWork, actor string, acc *batchCounters) error {
	now := s.now()

	readyCount := 0
	if work.legacy != nil && work.legacy.ReadyCount != nil {
		readyCount = *work.legacy.ReadyCount
	} else {
		for _, u := range work.updates {
			if u.IsReady != nil && *u.IsReady {
				readyCount++
			}
		}
	}
	if readyCount < 0 {
		readyCount = 0
	}
	if readyCount > line.Quantity {
		readyCount = line.Quantity
	}

	meta := legacyMetadata{Steps: make(map[string]int), Locations: make(map[string]int)}
	if line.Metadata != "" {
		if err := json.Unmarshal([]byte(line.Metadata), &meta); err != nil {
			s.logger.Warn("discarding unreadable legacy metadata",
				zap.String("line_id", line.ID.String()),
				zap.Error(err))
			meta = legacyMetadata{Steps: make(map[string]int), Locations: make(map[string]int)}
		}
		if meta.Steps == nil {
			meta.Steps = make(map[string]int)
		}
		if meta.Locations == nil {
			meta.Locations = make(map[string]int)
		}
	}

	var lastStep string
	for _, u := range work.updates {
		if u.Step != nil && *u.Step != "" {
			meta.Steps[*u.Step]++
			lastStep = *u.Step
			acc.steps[*u.Step] = struct{}{}
		}
		if u.Location != nil && *u.Location != "" {
			meta.Locations[*u.Location]++
			acc.locations[*u.Location] = struct{}{}
		}
	}
	meta.UpdatedBy = actor
	meta.UpdatedAt = now

	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	var saveErr error
	for attempt := 0; attempt < lineSyncAttempts; attempt++ {
		if err := line.SetReadyCount(readyCount); err != nil {
			return err
		}
		line.Metadata = string(raw)
		line.RecordStep(lastStep, actor, now)
		line.UpdatedAt = now

		saveErr = s.lines.SaveLegacyAggregate(ctx, line)
		if saveErr == nil || !errors.Is(saveErr, shared.ErrConcurrencyConflict) {
			break
		}
		fresh, ferr := s.lines.FindByIDForTenant(ctx, line.TenantID, line.ID)
		if ferr != nil {
			saveErr = ferr
			break
		}
		*line = *fresh
	}
	if saveErr != nil {
		s.logger.Error("legacy aggregate update failed",
			zap.String("line_id", line.ID.String()),
			zap.Error(saveErr))
		return nil
	}

	acc.linesUpdated++
	acc.piecesUpdated += len(work.updates)
	acc.piecesReady += readyCount

	return nil
}
