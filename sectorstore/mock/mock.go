package mock

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"sync"

	"github.com/filecoin-project/specs-actors/actors/abi"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-sector-allocator/apis/sectorstore"
)

var _ sectorstore.Interface = &SectorStore{}

// SectorStore is an in-memory sector store. Its failure knobs apply to every
// subsequent call until they are reset.
type SectorStore struct {
	maxBytes abi.UnpaddedPieceSize

	// NewAccessErr, if set, is returned by NewStagingSectorAccess.
	NewAccessErr error

	// WriteErr, if set, is returned by WriteAndPreprocess after the stream has
	// been consumed.
	WriteErr error

	// ShortWriteBy is subtracted from the byte count reported (and stored) by
	// WriteAndPreprocess.
	ShortWriteBy abi.UnpaddedPieceSize

	lk         sync.Mutex
	nextAccess int
	sectors    map[string][]byte
	writes     int
}

func NewSectorStore(maxBytes abi.UnpaddedPieceSize) *SectorStore {
	return &SectorStore{
		maxBytes: maxBytes,
		sectors:  map[string][]byte{},
	}
}

func (s *SectorStore) MaxUnsealedBytesPerSector() abi.UnpaddedPieceSize {
	return s.maxBytes
}

func (s *SectorStore) NewStagingSectorAccess(ctx context.Context) (string, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	if s.NewAccessErr != nil {
		return "", s.NewAccessErr
	}

	access := fmt.Sprintf("mock-staged-%d", s.nextAccess)
	s.nextAccess++
	s.sectors[access] = []byte{}

	return access, nil
}

func (s *SectorStore) WriteAndPreprocess(ctx context.Context, access string, r io.Reader) (abi.UnpaddedPieceSize, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return 0, xerrors.Errorf("[mock] reading piece: %w", err)
	}

	s.lk.Lock()
	defer s.lk.Unlock()

	s.writes++

	if s.WriteErr != nil {
		return 0, s.WriteErr
	}

	existing, ok := s.sectors[access]
	if !ok {
		return 0, xerrors.Errorf("[mock] no staged sector with access %s", access)
	}

	n := abi.UnpaddedPieceSize(len(b))
	if s.ShortWriteBy > n {
		n = 0
	} else {
		n -= s.ShortWriteBy
	}

	s.sectors[access] = append(existing, b[:n]...)

	return n, nil
}

// Bytes produces a copy of the bytes written to the given staged sector.
func (s *SectorStore) Bytes(access string) []byte {
	s.lk.Lock()
	defer s.lk.Unlock()

	return append([]byte(nil), s.sectors[access]...)
}

// Accesses produces the number of staged sector accesses handed out.
func (s *SectorStore) Accesses() int {
	s.lk.Lock()
	defer s.lk.Unlock()

	return s.nextAccess
}

// Writes produces the number of calls made to WriteAndPreprocess.
func (s *SectorStore) Writes() int {
	s.lk.Lock()
	defer s.lk.Unlock()

	return s.writes
}
