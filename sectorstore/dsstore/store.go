package dsstore

import (
	"context"
	"io"
	"io/ioutil"
	"sync"

	"github.com/filecoin-project/specs-actors/actors/abi"
	"github.com/google/uuid"
	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/namespace"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-sector-allocator/apis/sectorstore"
)

var log = logging.Logger("dsstore")

const StagingPrefix = "/staging"

var _ sectorstore.Interface = &Store{}

// Store keeps the bytes of each staged sector as a single datastore value.
// The sector access handle is the value's key (relative to StagingPrefix).
type Store struct {
	maxBytes abi.UnpaddedPieceSize

	// serializes the read-modify-write of sector values
	lk      sync.Mutex
	sectors datastore.Datastore
}

func New(ds datastore.Datastore, ssize abi.SectorSize) *Store {
	return &Store{
		maxBytes: abi.PaddedPieceSize(ssize).Unpadded(),
		sectors:  namespace.Wrap(ds, datastore.NewKey(StagingPrefix)),
	}
}

func (s *Store) MaxUnsealedBytesPerSector() abi.UnpaddedPieceSize {
	return s.maxBytes
}

func (s *Store) NewStagingSectorAccess(ctx context.Context) (string, error) {
	k := datastore.NewKey(uuid.New().String())

	s.lk.Lock()
	defer s.lk.Unlock()

	if err := s.sectors.Put(k, []byte{}); err != nil {
		return "", xerrors.Errorf("storing staged sector %s: %w", k, err)
	}

	return k.String(), nil
}

// WriteAndPreprocess appends r to the staged sector's value. At most the
// remaining capacity of the sector is read from r.
func (s *Store) WriteAndPreprocess(ctx context.Context, access string, r io.Reader) (abi.UnpaddedPieceSize, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	k := datastore.NewKey(access)

	s.lk.Lock()
	defer s.lk.Unlock()

	existing, err := s.sectors.Get(k)
	if err != nil {
		return 0, xerrors.Errorf("getting staged sector %s: %w", access, err)
	}

	var remaining int64
	if used := int64(len(existing)); used < int64(s.maxBytes) {
		remaining = int64(s.maxBytes) - used
	}

	b, err := ioutil.ReadAll(io.LimitReader(r, remaining))
	if err != nil {
		return 0, xerrors.Errorf("reading piece for staged sector %s: %w", access, err)
	}

	updated := make([]byte, 0, len(existing)+len(b))
	updated = append(append(updated, existing...), b...)

	if err := s.sectors.Put(k, updated); err != nil {
		return 0, xerrors.Errorf("storing staged sector %s: %w", access, err)
	}

	log.Debugw("wrote to staged sector", "access", access, "bytes", len(b), "total", len(existing)+len(b))

	return abi.UnpaddedPieceSize(len(b)), nil
}

// ReadSector produces the bytes written to the given staged sector so far.
func (s *Store) ReadSector(access string) ([]byte, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	b, err := s.sectors.Get(datastore.NewKey(access))
	if err != nil {
		return nil, xerrors.Errorf("getting staged sector %s: %w", access, err)
	}

	return b, nil
}
