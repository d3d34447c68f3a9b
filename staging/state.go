package staging

import (
	"sort"

	"github.com/filecoin-project/specs-actors/actors/abi"
)

// StagedState is the mutable state of a piece allocator. It carries no lock of
// its own: whoever holds a *StagedState must guarantee that at most one
// allocation mutates it at a time.
type StagedState struct {
	// SectorNonce is the most recently issued sector number. The next sector
	// provisioned receives SectorNonce+1.
	SectorNonce abi.SectorNumber

	Sectors map[abi.SectorNumber]*StagedSectorMetadata
}

func NewStagedState() *StagedState {
	return &StagedState{
		Sectors: map[abi.SectorNumber]*StagedSectorMetadata{},
	}
}

// PendingSectors produces a snapshot of the sectors which are still accepting
// pieces, ordered by ascending sector number.
func (s *StagedState) PendingSectors() []StagedSectorMetadata {
	var out []StagedSectorMetadata
	for _, sector := range s.Sectors {
		if sector.SealStatus != Pending {
			continue
		}

		out = append(out, sector.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].SectorNum < out[j].SectorNum
	})

	return out
}

// SortedSectors produces a snapshot of every sector, regardless of seal
// status, ordered by ascending sector number.
func (s *StagedState) SortedSectors() []StagedSectorMetadata {
	out := make([]StagedSectorMetadata, 0, len(s.Sectors))
	for _, sector := range s.Sectors {
		out = append(out, sector.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].SectorNum < out[j].SectorNum
	})

	return out
}

func (s *StagedState) Clone() *StagedState {
	out := &StagedState{
		SectorNonce: s.SectorNonce,
		Sectors:     make(map[abi.SectorNumber]*StagedSectorMetadata, len(s.Sectors)),
	}

	for num, sector := range s.Sectors {
		c := sector.Clone()
		out.Sectors[num] = &c
	}

	return out
}
