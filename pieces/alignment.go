package pieces

import (
	"github.com/filecoin-project/go-padreader"
	"github.com/filecoin-project/specs-actors/actors/abi"

	"github.com/filecoin-project/go-sector-allocator/apis/padding"
)

// MinPieceSize is the smallest slot, in unpadded bytes, a piece can occupy.
const MinPieceSize = abi.UnpaddedPieceSize(127)

var _ padding.Interface = Aligned{}
var _ padding.Interface = Unaligned{}

// Aligned satisfies padding.Interface using the proof system's alignment
// rules: every piece occupies a slot of 127*2^n unpadded bytes and each slot
// starts at an offset which is a multiple of its own size.
type Aligned struct{}

// SlotSize produces the size of the slot a piece of the given size occupies.
func (Aligned) SlotSize(pieceSize abi.UnpaddedPieceSize) abi.UnpaddedPieceSize {
	if pieceSize <= MinPieceSize {
		return MinPieceSize
	}

	return padreader.PaddedSize(uint64(pieceSize))
}

func (a Aligned) GetPiecePadding(written abi.UnpaddedPieceSize, pieceSize abi.UnpaddedPieceSize) (abi.UnpaddedPieceSize, abi.UnpaddedPieceSize) {
	slot := a.SlotSize(pieceSize)

	var left abi.UnpaddedPieceSize
	if encroaching := written % slot; encroaching > 0 {
		left = slot - encroaching
	}

	return left, slot - pieceSize
}

func (a Aligned) SumPieceLengths(pieces []abi.UnpaddedPieceSize) abi.UnpaddedPieceSize {
	var sum abi.UnpaddedPieceSize
	for _, p := range pieces {
		left, right := a.GetPiecePadding(sum, p)
		sum += left + p + right
	}

	return sum
}

// Unaligned satisfies padding.Interface for stores which pack pieces back to
// back without any padding.
type Unaligned struct{}

func (Unaligned) GetPiecePadding(abi.UnpaddedPieceSize, abi.UnpaddedPieceSize) (abi.UnpaddedPieceSize, abi.UnpaddedPieceSize) {
	return 0, 0
}

func (Unaligned) SumPieceLengths(pieces []abi.UnpaddedPieceSize) abi.UnpaddedPieceSize {
	var sum abi.UnpaddedPieceSize
	for _, p := range pieces {
		sum += p
	}

	return sum
}
