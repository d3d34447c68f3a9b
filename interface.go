package allocator

import (
	"context"
	"io"

	"github.com/filecoin-project/specs-actors/actors/abi"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/go-sector-allocator/staging"
)

type Interface interface {
	// AddPiece writes a piece of the provided size to the first pending staged
	// sector it fits in, provisioning a new staged sector if none fits.
	AddPiece(ctx context.Context, pieceKey string, pieceSize abi.UnpaddedPieceSize, r io.Reader) (abi.SectorNumber, error)

	// AddPieceFromFile is AddPiece with the piece bytes read from a file.
	AddPieceFromFile(ctx context.Context, pieceKey string, pieceSize abi.UnpaddedPieceSize, path string) (abi.SectorNumber, error)

	// MaxUserBytesPerStagedSector produces the number of unpadded bytes a
	// staged sector can hold.
	MaxUserBytesPerStagedSector() abi.UnpaddedPieceSize

	// ListStagedSectors lists all staged sectors, pending or otherwise,
	// ordered by sector number.
	ListStagedSectors() []staging.StagedSectorMetadata

	// GetStagedSector produces the metadata of a staged sector, or an error if
	// no staged sector with the provided number exists.
	GetStagedSector(num abi.SectorNumber) (staging.StagedSectorMetadata, error)

	// SetSealStatus moves a staged sector along its sealing lifecycle. A
	// sector which has left Pending no longer receives pieces.
	SetSealStatus(num abi.SectorNumber, status staging.SealStatus) error

	// RecordPieceCommitment attaches a piece commitment to a piece which has
	// already been written.
	RecordPieceCommitment(num abi.SectorNumber, pieceIndex int, commP cid.Cid) error
}
