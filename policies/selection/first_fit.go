package selection

import (
	"github.com/filecoin-project/specs-actors/actors/abi"

	"github.com/filecoin-project/go-sector-allocator/apis/padding"
	"github.com/filecoin-project/go-sector-allocator/staging"
)

// FirstFit satisfies selection.Policy. It walks the candidates in the order
// given and picks the first sector with enough remaining capacity to hold the
// piece and the padding the piece needs at that sector's current occupancy.
// It never looks for a tighter fit further down the list, so the order of the
// candidates fully determines the outcome.
type FirstFit struct {
	padding padding.Interface
}

// NewFirstFit produces a FirstFit policy which computes padding using the
// provided oracle.
func NewFirstFit(p padding.Interface) FirstFit {
	return FirstFit{padding: p}
}

func (p *FirstFit) DestinationSector(candidates []staging.StagedSectorMetadata, maxBytes abi.UnpaddedPieceSize, pieceSize abi.UnpaddedPieceSize) (abi.SectorNumber, bool, error) {
	if pieceSize > maxBytes {
		return 0, false, staging.NewErrOverflow(pieceSize, maxBytes)
	}

	for _, sector := range candidates {
		occupied := p.padding.SumPieceLengths(sector.PieceSizes())
		left, right := p.padding.GetPiecePadding(occupied, pieceSize)

		if occupied+left+pieceSize+right <= maxBytes {
			return sector.SectorNum, true, nil
		}
	}

	log.Debugw("no staged sector can hold piece", "pieceSize", pieceSize, "candidates", len(candidates))

	return 0, false, nil
}
