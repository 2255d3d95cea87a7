package fulfillment

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// PieceRef is a caller-supplied reference to a piece, parsed once at the
// system boundary. It is either a stable piece ID, or a synthetic
// "lineID:sequence" reference used by clients that have not yet fetched
// stable IDs (for example a freshly rendered intake screen). Downstream code
// never branches on the raw string again.
type PieceRef struct {
	pieceID   uuid.UUID
	lineID    uuid.UUID
	sequence  int
	synthetic bool
}

// ParsePieceRef parses a raw piece reference.
func ParsePieceRef(raw string) (PieceRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PieceRef{}, shared.NewDomainError("INVALID_PIECE_REF", "Piece reference cannot be empty")
	}

	if id, err := uuid.Parse(raw); err == nil {
		return PieceRef{pieceID: id}, nil
	}

	lineStr, seqStr, ok := strings.Cut(raw, ":")
	if !ok {
		return PieceRef{}, shared.NewDomainError("INVALID_PIECE_REF",
			fmt.Sprintf("Piece reference %q is neither a piece ID nor a line:sequence reference", raw))
	}
	lineID, err := uuid.Parse(lineStr)
	if err != nil {
		return PieceRef{}, shared.NewDomainError("INVALID_PIECE_REF",
			fmt.Sprintf("Piece reference %q has an invalid line ID", raw))
	}
	seq, err := strconv.Atoi(seqStr)
	if err != nil || seq <= 0 {
		return PieceRef{}, shared.NewDomainError("INVALID_PIECE_REF",
			fmt.Sprintf("Piece reference %q has an invalid sequence", raw))
	}

	return PieceRef{lineID: lineID, sequence: seq, synthetic: true}, nil
}

// SyntheticPieceRef builds a synthetic line:sequence reference.
func SyntheticPieceRef(lineID uuid.UUID, sequence int) PieceRef {
	return PieceRef{lineID: lineID, sequence: sequence, synthetic: true}
}

// StablePieceRef builds a reference from a stable piece ID.
func StablePieceRef(pieceID uuid.UUID) PieceRef {
	return PieceRef{pieceID: pieceID}
}

// IsSynthetic reports whether the reference is a line:sequence reference.
func (r PieceRef) IsSynthetic() bool {
	return r.synthetic
}

// PieceID returns the stable piece ID; uuid.Nil for synthetic references.
func (r PieceRef) PieceID() uuid.UUID {
	return r.pieceID
}

// LineID returns the line ID of a synthetic reference; uuid.Nil otherwise.
func (r PieceRef) LineID() uuid.UUID {
	return r.lineID
}

// Sequence returns the 1-based sequence of a synthetic reference; 0 otherwise.
func (r PieceRef) Sequence() int {
	return r.sequence
}

// String returns the wire form of the reference.
func (r PieceRef) String() string {
	if r.synthetic {
		return fmt.Sprintf("%s:%d", r.lineID, r.sequence)
	}
	return r.pieceID.String()
}
