package staging

import (
	"github.com/filecoin-project/specs-actors/actors/abi"
	"github.com/ipfs/go-cid"
)

// SealStatus enumerates the states a staged sector can be in. Only Pending
// sectors accept new pieces; the remaining states are driven by the sealing
// pipeline.
type SealStatus = uint64

const (
	UndefinedSealStatus SealStatus = iota

	Pending // accepting pieces
	Sealing
	Sealed

	Failed
)

var SealStatuses = []string{
	UndefinedSealStatus: "UndefinedSealStatus",
	Pending:             "Pending",
	Sealing:             "Sealing",
	Sealed:              "Sealed",
	Failed:              "Failed",
}

type PieceMetadata struct {
	PieceKey string
	NumBytes abi.UnpaddedPieceSize

	// CommP is populated once the piece commitment has been computed, which
	// happens after the piece has been written.
	CommP *cid.Cid
}

type StagedSectorMetadata struct {
	SectorNum abi.SectorNumber

	// SectorAccess is the opaque handle issued by the sector store. It is
	// owned by the store.
	SectorAccess string

	// Ordered; the order is the physical layout of the pieces in the sector.
	Pieces []PieceMetadata

	SealStatus SealStatus
}

// PieceSizes produces the unpadded sizes of the sector's pieces, in the order
// in which they were written.
func (t *StagedSectorMetadata) PieceSizes() []abi.UnpaddedPieceSize {
	out := make([]abi.UnpaddedPieceSize, len(t.Pieces))
	for i, piece := range t.Pieces {
		out[i] = piece.NumBytes
	}

	return out
}

func (t *StagedSectorMetadata) Clone() StagedSectorMetadata {
	out := *t
	if t.Pieces == nil {
		return out
	}

	out.Pieces = make([]PieceMetadata, len(t.Pieces))
	for i, piece := range t.Pieces {
		out.Pieces[i] = piece
		if piece.CommP != nil {
			c := *piece.CommP
			out.Pieces[i].CommP = &c
		}
	}

	return out
}
