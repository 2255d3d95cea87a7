package fulfillment

// TrackingState is the (status, readiness) pair derived for one piece.
type TrackingState struct {
	Status  PieceStatus
	IsReady bool
}

// TrackingChange is the slice of an incoming piece update that participates in
// state derivation. HasStep reports whether the caller supplied a processing
// step; IsReady is the explicit readiness override, nil when absent.
type TrackingChange struct {
	HasStep bool
	IsReady *bool
}

// DeriveTracking computes the final tracking state for a piece from its
// current state and an incoming partial update. Pure function, applied in
// precedence order, later rules overriding earlier ones:
//
//  1. Baseline: a supplied step forces PROCESSING; otherwise the current
//     status is kept (PROCESSING when the current status is unset).
//  2. Readiness: explicit override wins, otherwise the previous flag.
//  3. Promotion: ready while PROCESSING becomes READY.
//  4. Demotion: not ready while READY falls back to PROCESSING.
//
// Applying the same change twice yields the same result.
func DeriveTracking(current TrackingState, change TrackingChange) TrackingState {
	next := TrackingState{Status: current.Status}

	if change.HasStep || next.Status == "" {
		next.Status = PieceStatusProcessing
	}

	if change.IsReady != nil {
		next.IsReady = *change.IsReady
	} else {
		next.IsReady = current.IsReady
	}

	if next.IsReady && next.Status == PieceStatusProcessing {
		next.Status = PieceStatusReady
	} else if !next.IsReady && next.Status == PieceStatusReady {
		next.Status = PieceStatusProcessing
	}

	return next
}
