package padding

import (
	"github.com/filecoin-project/specs-actors/actors/abi"
)

// Interface computes the alignment padding the proof system requires between
// pieces written into the same sector.
type Interface interface {
	// SumPieceLengths produces the number of bytes occupied by the provided
	// pieces (in order), including any padding written between them.
	SumPieceLengths(pieces []abi.UnpaddedPieceSize) abi.UnpaddedPieceSize

	// GetPiecePadding produces the quantity of zero bytes which must be
	// written before (left) and after (right) a piece of the given size when
	// written bytes are already occupied.
	GetPiecePadding(written abi.UnpaddedPieceSize, pieceSize abi.UnpaddedPieceSize) (left abi.UnpaddedPieceSize, right abi.UnpaddedPieceSize)
}
