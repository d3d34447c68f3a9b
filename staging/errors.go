package staging

import (
	"github.com/filecoin-project/specs-actors/actors/abi"
	"golang.org/x/xerrors"
)

// ErrOverflow is returned when a piece is larger than the capacity of an
// empty sector. Retrying will not help.
type ErrOverflow struct {
	error

	PieceSize abi.UnpaddedPieceSize
	MaxSize   abi.UnpaddedPieceSize
}

func NewErrOverflow(pieceSize, maxSize abi.UnpaddedPieceSize) *ErrOverflow {
	return &ErrOverflow{
		error:     xerrors.Errorf("piece of %d bytes exceeds max sector capacity of %d bytes", pieceSize, maxSize),
		PieceSize: pieceSize,
		MaxSize:   maxSize,
	}
}

// ErrBackend wraps a failure reported by the sector store.
type ErrBackend struct{ error }

func NewErrBackend(inner error) *ErrBackend {
	return &ErrBackend{inner}
}

func (e *ErrBackend) Unwrap() error {
	return e.error
}

// ErrIncompleteWrite is returned when the sector store wrote a different
// number of bytes than the padded piece required. The sector's metadata is
// left untouched.
type ErrIncompleteWrite struct {
	error

	Written  abi.UnpaddedPieceSize
	Expected abi.UnpaddedPieceSize
}

func NewErrIncompleteWrite(written, expected abi.UnpaddedPieceSize) *ErrIncompleteWrite {
	return &ErrIncompleteWrite{
		error:    xerrors.Errorf("wrote %d bytes, expected %d", written, expected),
		Written:  written,
		Expected: expected,
	}
}

// ErrUnrecoverableState indicates that the staged state no longer agrees with
// the decisions made against it, e.g. because it was mutated concurrently.
type ErrUnrecoverableState struct{ error }

func NewErrUnrecoverableState(inner error) *ErrUnrecoverableState {
	return &ErrUnrecoverableState{inner}
}
