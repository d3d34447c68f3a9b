package test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/filecoin-project/specs-actors/actors/abi"
	"github.com/stretchr/testify/assert"

	"github.com/filecoin-project/go-sector-allocator/staging"
)

type placement struct {
	pieceKey  string
	sectorNum abi.SectorNumber
}

// placementTracker compares the pieces reported by an allocator's
// onPieceAdded hook against an expected sequence of placements.
type placementTracker struct {
	lk               sync.Mutex
	actualSequence   []placement
	expectedSequence []placement
	t                *testing.T
}

func begin(t *testing.T) *placementTracker {
	return &placementTracker{
		actualSequence:   []placement{},
		expectedSequence: []placement{},
		t:                t,
	}
}

func (f *placementTracker) then(pieceKey string, sectorNum abi.SectorNumber) *placementTracker {
	f.expectedSequence = append(f.expectedSequence, placement{pieceKey, sectorNum})
	return f
}

func (f *placementTracker) end() (func(abi.SectorNumber, staging.PieceMetadata), func() string) {
	next := func(sectorNum abi.SectorNumber, piece staging.PieceMetadata) {
		f.lk.Lock()
		defer f.lk.Unlock()

		curr := placement{piece.PieceKey, sectorNum}

		if indx := len(f.actualSequence); indx < len(f.expectedSequence) {
			exp := f.expectedSequence[indx]
			assert.Equal(f.t, exp, curr, "piece %s placed in sector %d (expected piece %s in sector %d)", curr.pieceKey, curr.sectorNum, exp.pieceKey, exp.sectorNum)
		}

		f.actualSequence = append(f.actualSequence, curr)
	}

	status := func() string {
		f.lk.Lock()
		defer f.lk.Unlock()

		return fmt.Sprintf("expected placements: %+v, actual placements: %+v", f.expectedSequence, f.actualSequence)
	}

	return next, status
}

func (f *placementTracker) complete() bool {
	f.lk.Lock()
	defer f.lk.Unlock()

	return len(f.actualSequence) == len(f.expectedSequence)
}
