package packing

import (
	"context"
	"io"

	"github.com/filecoin-project/specs-actors/actors/abi"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-sector-allocator/lib/nullreader"
	"github.com/filecoin-project/go-sector-allocator/staging"
)

// AddPiece writes pieceSize bytes read from r into a staged sector, preceded
// and followed by the zero padding the piece needs at its position in that
// sector, and produces the number of the sector the piece was written to.
//
// The first pending sector with room for the (padded) piece is used; if there
// is none, a new sector is provisioned. The piece is recorded in the sector's
// metadata only once the store has reported writing exactly the padded number
// of bytes.
func (p *Packer) AddPiece(ctx context.Context, state *staging.StagedState, pieceKey string, pieceSize abi.UnpaddedPieceSize, r io.Reader) (abi.SectorNumber, error) {
	maxBytes := p.store.MaxUnsealedBytesPerSector()

	num, ok, err := p.policy.DestinationSector(state.PendingSectors(), maxBytes, pieceSize)
	if err != nil {
		return 0, err
	}

	if !ok {
		num, err = ProvisionNewStagedSector(ctx, p.store, state)
		if err != nil {
			return 0, err
		}
	}

	sector, found := state.Sectors[num]
	if !found {
		return 0, staging.NewErrUnrecoverableState(xerrors.Errorf("unable to retrieve sector %d from staged state", num))
	}

	written := p.padding.SumPieceLengths(sector.PieceSizes())
	left, right := p.padding.GetPiecePadding(written, pieceSize)
	expected := left + pieceSize + right

	log.Debugw("writing piece", "sector", num, "piece", pieceKey, "size", pieceSize, "offset", written, "left", left, "right", right)

	actual, err := p.store.WriteAndPreprocess(ctx, sector.SectorAccess, paddedPieceReader(left, pieceSize, right, r))
	if err != nil {
		return 0, staging.NewErrBackend(xerrors.Errorf("writing piece %s to sector %d: %w", pieceKey, num, err))
	}

	if actual != expected {
		return 0, staging.NewErrIncompleteWrite(actual, expected)
	}

	sector.Pieces = append(sector.Pieces, staging.PieceMetadata{
		PieceKey: pieceKey,
		NumBytes: pieceSize,
	})

	return num, nil
}

// paddedPieceReader produces left zero bytes, then exactly pieceSize bytes of
// r, then right zero bytes.
func paddedPieceReader(left, pieceSize, right abi.UnpaddedPieceSize, r io.Reader) io.Reader {
	return io.MultiReader(
		nullreader.NewNullReader(left),
		io.LimitReader(r, int64(pieceSize)),
		nullreader.NewNullReader(right),
	)
}
