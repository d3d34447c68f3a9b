package packing

import (
	"context"

	"github.com/filecoin-project/specs-actors/actors/abi"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-sector-allocator/apis/sectorstore"
	"github.com/filecoin-project/go-sector-allocator/staging"
)

// ProvisionNewStagedSector issues a new sector number, acquires storage for
// the sector from the store and adds an empty, pending sector to the state.
//
// The sector number is consumed before the store is asked for storage, so a
// failure here still advances state.SectorNonce.
func ProvisionNewStagedSector(ctx context.Context, store sectorstore.Interface, state *staging.StagedState) (abi.SectorNumber, error) {
	state.SectorNonce++
	num := state.SectorNonce

	if _, exists := state.Sectors[num]; exists {
		return 0, staging.NewErrUnrecoverableState(xerrors.Errorf("sector %d already exists in staged state (nonce %d)", num, state.SectorNonce))
	}

	access, err := store.NewStagingSectorAccess(ctx)
	if err != nil {
		return 0, staging.NewErrBackend(xerrors.Errorf("acquiring staging access for sector %d: %w", num, err))
	}

	if state.Sectors == nil {
		state.Sectors = map[abi.SectorNumber]*staging.StagedSectorMetadata{}
	}

	state.Sectors[num] = &staging.StagedSectorMetadata{
		SectorNum:    num,
		SectorAccess: access,
		Pieces:       []staging.PieceMetadata{},
		SealStatus:   staging.Pending,
	}

	log.Infof("Provisioned staged sector %d", num)

	return num, nil
}
