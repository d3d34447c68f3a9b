package sectorstore

import (
	"context"
	"io"

	"github.com/filecoin-project/specs-actors/actors/abi"
)

// Interface provides the method set used by the allocator in order to
// interact with the storage holding staged sectors. Sector access handles are
// opaque strings owned by the implementation.
type Interface interface {
	// MaxUnsealedBytesPerSector produces the quantity of unpadded bytes which
	// fit in a single staged sector.
	MaxUnsealedBytesPerSector() abi.UnpaddedPieceSize

	// NewStagingSectorAccess allocates storage for a new staged sector and
	// returns a handle to it.
	NewStagingSectorAccess(ctx context.Context) (string, error)

	// WriteAndPreprocess appends the bytes read from r to the staged sector
	// identified by access and returns the number of bytes written.
	WriteAndPreprocess(ctx context.Context, access string, r io.Reader) (abi.UnpaddedPieceSize, error)
}
