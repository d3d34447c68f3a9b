package selection

import (
	"github.com/filecoin-project/specs-actors/actors/abi"
	logging "github.com/ipfs/go-log/v2"

	"github.com/filecoin-project/go-sector-allocator/staging"
)

var log = logging.Logger("selection")

// Policy picks the staged sector into which a piece will be written.
type Policy interface {
	// DestinationSector produces the number of the sector (from candidates)
	// into which a piece of the given size should be written. If no candidate
	// can hold the piece, ok is false and err is nil. If no sector could ever
	// hold the piece, an *staging.ErrOverflow is returned.
	DestinationSector(candidates []staging.StagedSectorMetadata, maxBytes abi.UnpaddedPieceSize, pieceSize abi.UnpaddedPieceSize) (num abi.SectorNumber, ok bool, err error)
}
