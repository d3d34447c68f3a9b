package allocator

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/filecoin-project/specs-actors/actors/abi"
	"github.com/hashicorp/go-multierror"
	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/stats"
	"go.opencensus.io/trace"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-sector-allocator/apis/padding"
	"github.com/filecoin-project/go-sector-allocator/apis/sectorstore"
	"github.com/filecoin-project/go-sector-allocator/metrics"
	"github.com/filecoin-project/go-sector-allocator/packing"
	"github.com/filecoin-project/go-sector-allocator/staging"
)

var log = logging.Logger("allocator")

type Allocator struct {
	store   sectorstore.Interface
	padding padding.Interface
	packer  *packing.Packer

	// stateLk serializes every operation touching state, including the
	// backend write performed while adding a piece.
	stateLk sync.Mutex
	state   *staging.StagedState

	// onPieceAdded is called each time a piece has been written to a staged
	// sector, if defined. It is non-nil during test.
	onPieceAdded func(abi.SectorNumber, staging.PieceMetadata)

	// released by Close, in order
	closers []io.Closer
}

var _ Interface = new(Allocator)

func NewAllocator(store sectorstore.Interface, p padding.Interface) *Allocator {
	return NewAllocatorWithState(store, p, staging.NewStagedState(), nil)
}

// NewAllocatorWithState produces an allocator which continues from previously
// persisted state. The allocator takes ownership of state.
//
// onPieceAdded, if non-nil, is called after each successful AddPiece once the
// allocator's lock has been released, so it may call back into the allocator.
func NewAllocatorWithState(store sectorstore.Interface, p padding.Interface, state *staging.StagedState, onPieceAdded func(abi.SectorNumber, staging.PieceMetadata)) *Allocator {
	if state == nil {
		state = staging.NewStagedState()
	}

	return &Allocator{
		store:        store,
		padding:      p,
		packer:       packing.NewPacker(store, p),
		state:        state,
		onPieceAdded: onPieceAdded,
	}
}

// Close releases the resources acquired by NewFromConfig. It is a no-op for
// allocators built around a caller-owned store.
func (a *Allocator) Close() error {
	var merr error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	a.closers = nil

	return merr
}

func (a *Allocator) AddPiece(ctx context.Context, pieceKey string, pieceSize abi.UnpaddedPieceSize, r io.Reader) (abi.SectorNumber, error) {
	ctx, span := trace.StartSpan(ctx, "Allocator.AddPiece")
	defer span.End()

	span.AddAttributes(
		trace.StringAttribute("pieceKey", pieceKey),
		trace.Int64Attribute("pieceSize", int64(pieceSize)),
	)

	start := time.Now()

	num, piece, written, err := a.addPiece(ctx, pieceKey, pieceSize, r)
	if err != nil {
		failureType := classifyFailure(err)

		log.Errorf("adding piece %s (%d bytes) failed (%s): %+v", pieceKey, pieceSize, failureType, err)
		span.SetStatus(trace.Status{Code: trace.StatusCodeUnknown, Message: err.Error()})
		metrics.RecordFailure(ctx, failureType)

		return 0, err
	}

	stats.Record(ctx,
		metrics.PiecesAdded.M(1),
		metrics.PieceBytesWritten.M(int64(written)),
		metrics.AddPieceDurationMs.M(metrics.SinceInMilliseconds(start)),
	)

	span.AddAttributes(trace.Int64Attribute("sectorNum", int64(num)))

	if a.onPieceAdded != nil {
		a.onPieceAdded(num, piece)
	}

	return num, nil
}

// addPiece runs the packer under the state lock and produces the recorded
// piece along with the number of bytes, padding included, it took up.
func (a *Allocator) addPiece(ctx context.Context, pieceKey string, pieceSize abi.UnpaddedPieceSize, r io.Reader) (abi.SectorNumber, staging.PieceMetadata, abi.UnpaddedPieceSize, error) {
	a.stateLk.Lock()
	defer a.stateLk.Unlock()

	sectorsBefore := len(a.state.Sectors)

	num, err := a.packer.AddPiece(ctx, a.state, pieceKey, pieceSize, r)

	// a failed provisioning consumes a sector number without adding a sector
	if provisioned := len(a.state.Sectors) - sectorsBefore; provisioned > 0 {
		stats.Record(ctx, metrics.SectorsProvisioned.M(int64(provisioned)))
	}

	if err != nil {
		return 0, staging.PieceMetadata{}, 0, err
	}

	sector := a.state.Sectors[num]
	sizes := sector.PieceSizes()
	written := a.padding.SumPieceLengths(sizes) - a.padding.SumPieceLengths(sizes[:len(sizes)-1])

	return num, sector.Pieces[len(sector.Pieces)-1], written, nil
}

func (a *Allocator) AddPieceFromFile(ctx context.Context, pieceKey string, pieceSize abi.UnpaddedPieceSize, path string) (abi.SectorNumber, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, xerrors.Errorf("opening piece file: %w", err)
	}
	defer f.Close() //nolint:errcheck // The file is RO

	return a.AddPiece(ctx, pieceKey, pieceSize, f)
}

func classifyFailure(err error) string {
	switch {
	case xerrors.As(err, new(*staging.ErrOverflow)):
		return "overflow"
	case xerrors.As(err, new(*staging.ErrIncompleteWrite)):
		return "incomplete_write"
	case xerrors.As(err, new(*staging.ErrUnrecoverableState)):
		return "unrecoverable_state"
	case xerrors.As(err, new(*staging.ErrBackend)):
		return "backend"
	default:
		return "unknown"
	}
}
