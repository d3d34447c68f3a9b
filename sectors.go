package allocator

import (
	commcid "github.com/filecoin-project/go-fil-commcid"
	"github.com/filecoin-project/specs-actors/actors/abi"
	"github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-sector-allocator/staging"
)

var ErrSectorNotFound = xerrors.New("staged sector not found")

// sealStatusTransitions lists, per seal status, the statuses a sector may move
// to. Nothing moves back into Pending.
var sealStatusTransitions = map[staging.SealStatus][]staging.SealStatus{
	staging.Pending: {staging.Sealing, staging.Failed},
	staging.Sealing: {staging.Sealed, staging.Failed},
}

func (a *Allocator) MaxUserBytesPerStagedSector() abi.UnpaddedPieceSize {
	return a.store.MaxUnsealedBytesPerSector()
}

func (a *Allocator) ListStagedSectors() []staging.StagedSectorMetadata {
	a.stateLk.Lock()
	defer a.stateLk.Unlock()

	return a.state.SortedSectors()
}

func (a *Allocator) GetStagedSector(num abi.SectorNumber) (staging.StagedSectorMetadata, error) {
	a.stateLk.Lock()
	defer a.stateLk.Unlock()

	sector, ok := a.state.Sectors[num]
	if !ok {
		return staging.StagedSectorMetadata{}, xerrors.Errorf("sector %d: %w", num, ErrSectorNotFound)
	}

	return sector.Clone(), nil
}

func (a *Allocator) SetSealStatus(num abi.SectorNumber, status staging.SealStatus) error {
	a.stateLk.Lock()
	defer a.stateLk.Unlock()

	sector, ok := a.state.Sectors[num]
	if !ok {
		return xerrors.Errorf("sector %d: %w", num, ErrSectorNotFound)
	}

	if !canTransition(sector.SealStatus, status) {
		return xerrors.Errorf("sector %d: invalid seal status transition from %s to %s", num, sealStatusName(sector.SealStatus), sealStatusName(status))
	}

	log.Infof("staged sector %d: %s -> %s", num, sealStatusName(sector.SealStatus), sealStatusName(status))
	sector.SealStatus = status

	return nil
}

func (a *Allocator) RecordPieceCommitment(num abi.SectorNumber, pieceIndex int, commP cid.Cid) error {
	if _, err := commcid.CIDToPieceCommitmentV1(commP); err != nil {
		return xerrors.Errorf("failed to map CID to CommP: %w", err)
	}

	a.stateLk.Lock()
	defer a.stateLk.Unlock()

	sector, ok := a.state.Sectors[num]
	if !ok {
		return xerrors.Errorf("sector %d: %w", num, ErrSectorNotFound)
	}

	if pieceIndex < 0 || pieceIndex >= len(sector.Pieces) {
		return xerrors.Errorf("sector %d has %d pieces, no piece at index %d", num, len(sector.Pieces), pieceIndex)
	}

	c := commP
	sector.Pieces[pieceIndex].CommP = &c

	return nil
}

// State produces a deep copy of the allocator's staged state, suitable for
// persisting.
func (a *Allocator) State() *staging.StagedState {
	a.stateLk.Lock()
	defer a.stateLk.Unlock()

	return a.state.Clone()
}

func canTransition(from, to staging.SealStatus) bool {
	for _, s := range sealStatusTransitions[from] {
		if s == to {
			return true
		}
	}

	return false
}

func sealStatusName(s staging.SealStatus) string {
	if s < staging.SealStatus(len(staging.SealStatuses)) {
		return staging.SealStatuses[s]
	}

	return "<unknown>"
}
