package packing

import (
	logging "github.com/ipfs/go-log/v2"

	"github.com/filecoin-project/go-sector-allocator/apis/padding"
	"github.com/filecoin-project/go-sector-allocator/apis/sectorstore"
	"github.com/filecoin-project/go-sector-allocator/policies/selection"
)

var log = logging.Logger("packing")

// Packer writes pieces into staged sectors. It holds no state of its own; the
// *staging.StagedState given to each call is mutated in place, and callers
// must not share one across concurrent calls.
type Packer struct {
	store   sectorstore.Interface
	padding padding.Interface

	// decides which staged sector receives a piece
	policy selection.Policy
}

// NewPacker produces a Packer which places pieces using the first-fit policy.
func NewPacker(store sectorstore.Interface, p padding.Interface) *Packer {
	ff := selection.NewFirstFit(p)

	return NewPackerWithPolicy(store, p, &ff)
}

func NewPackerWithPolicy(store sectorstore.Interface, p padding.Interface, policy selection.Policy) *Packer {
	return &Packer{
		store:   store,
		padding: p,
		policy:  policy,
	}
}
