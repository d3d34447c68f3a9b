package allocator_test

import (
	"bytes"
	"context"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	commcid "github.com/filecoin-project/go-fil-commcid"
	"github.com/filecoin-project/specs-actors/actors/abi"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats/view"
	"golang.org/x/xerrors"

	allocator "github.com/filecoin-project/go-sector-allocator"
	"github.com/filecoin-project/go-sector-allocator/config"
	"github.com/filecoin-project/go-sector-allocator/metrics"
	"github.com/filecoin-project/go-sector-allocator/pieces"
	"github.com/filecoin-project/go-sector-allocator/sectorstore/mock"
	"github.com/filecoin-project/go-sector-allocator/staging"
)

const capacity = abi.UnpaddedPieceSize(256)

func newTestAllocator() (*allocator.Allocator, *mock.SectorStore) {
	store := mock.NewSectorStore(capacity)
	return allocator.NewAllocator(store, pieces.Unaligned{}), store
}

func addPiece(t *testing.T, a *allocator.Allocator, key string, size abi.UnpaddedPieceSize) abi.SectorNumber {
	num, err := a.AddPiece(context.Background(), key, size, bytes.NewReader(make([]byte, size)))
	require.NoError(t, err)
	return num
}

func testCommP(t *testing.T, seed byte) cid.Cid {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seed
	}

	c, err := commcid.PieceCommitmentV1ToCID(raw)
	require.NoError(t, err)
	return c
}

func TestAddPieceProvisionsAndReusesSectors(t *testing.T) {
	a, store := newTestAllocator()

	assert.Equal(t, capacity, a.MaxUserBytesPerStagedSector())

	assert.Equal(t, abi.SectorNumber(1), addPiece(t, a, "a", 128))
	assert.Equal(t, abi.SectorNumber(1), addPiece(t, a, "b", 128))
	assert.Equal(t, abi.SectorNumber(2), addPiece(t, a, "c", 1))

	sectors := a.ListStagedSectors()
	require.Len(t, sectors, 2)
	assert.Equal(t, []abi.UnpaddedPieceSize{128, 128}, sectors[0].PieceSizes())
	assert.Equal(t, []abi.UnpaddedPieceSize{1}, sectors[1].PieceSizes())

	assert.Equal(t, 2, store.Accesses())
	assert.Equal(t, 3, store.Writes())
}

func TestAddPieceOverflowLeavesStateUntouched(t *testing.T) {
	a, store := newTestAllocator()

	_, err := a.AddPiece(context.Background(), "big", capacity+1, bytes.NewReader(make([]byte, capacity+1)))
	require.Error(t, err)

	var overflow *staging.ErrOverflow
	require.True(t, xerrors.As(err, &overflow))

	assert.Equal(t, staging.NewStagedState(), a.State())
	assert.Equal(t, 0, store.Accesses())
}

func TestAddPieceIncompleteWrite(t *testing.T) {
	a, store := newTestAllocator()
	store.ShortWriteBy = 1

	_, err := a.AddPiece(context.Background(), "a", 100, bytes.NewReader(make([]byte, 100)))

	var incomplete *staging.ErrIncompleteWrite
	require.True(t, xerrors.As(err, &incomplete))

	// the provisioned sector stays behind, empty and pending
	sector, err := a.GetStagedSector(1)
	require.NoError(t, err)
	assert.Empty(t, sector.Pieces)
	assert.Equal(t, staging.Pending, sector.SealStatus)

	store.ShortWriteBy = 0
	assert.Equal(t, abi.SectorNumber(1), addPiece(t, a, "a", 100))
}

func TestOnPieceAddedHook(t *testing.T) {
	type added struct {
		num   abi.SectorNumber
		piece staging.PieceMetadata
	}

	var seen []added
	store := mock.NewSectorStore(capacity)
	a := allocator.NewAllocatorWithState(store, pieces.Unaligned{}, nil, func(num abi.SectorNumber, piece staging.PieceMetadata) {
		seen = append(seen, added{num, piece})
	})

	addPiece(t, a, "a", 200)
	addPiece(t, a, "b", 200)

	_, err := a.AddPiece(context.Background(), "c", capacity+1, bytes.NewReader(nil))
	require.Error(t, err)

	assert.Equal(t, []added{
		{1, staging.PieceMetadata{PieceKey: "a", NumBytes: 200}},
		{2, staging.PieceMetadata{PieceKey: "b", NumBytes: 200}},
	}, seen)
}

func TestOnPieceAddedHookMayCallAllocator(t *testing.T) {
	var a *allocator.Allocator
	var seen []staging.StagedSectorMetadata

	store := mock.NewSectorStore(capacity)
	a = allocator.NewAllocatorWithState(store, pieces.Unaligned{}, nil, func(num abi.SectorNumber, piece staging.PieceMetadata) {
		sector, err := a.GetStagedSector(num)
		if err == nil {
			seen = append(seen, sector)
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := a.AddPiece(context.Background(), "a", 10, bytes.NewReader(make([]byte, 10)))
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for AddPiece to return")
	}

	require.Len(t, seen, 1)
	assert.Equal(t, []abi.UnpaddedPieceSize{10}, seen[0].PieceSizes())
}

func TestNewAllocatorWithStateContinuesNonce(t *testing.T) {
	store := mock.NewSectorStore(capacity)

	first := allocator.NewAllocator(store, pieces.Unaligned{})
	addPiece(t, first, "a", 200)

	second := allocator.NewAllocatorWithState(store, pieces.Unaligned{}, first.State(), nil)
	assert.Equal(t, abi.SectorNumber(1), addPiece(t, second, "b", 56))
	assert.Equal(t, abi.SectorNumber(2), addPiece(t, second, "c", 100))

	// the original allocator is unaffected by the copy's progress
	assert.Len(t, first.ListStagedSectors(), 1)
	assert.Equal(t, abi.SectorNumber(1), first.State().SectorNonce)
}

func TestStateIsACopy(t *testing.T) {
	a, _ := newTestAllocator()
	addPiece(t, a, "a", 10)

	state := a.State()
	state.Sectors[1].Pieces[0].PieceKey = "mutated"
	state.Sectors[1].SealStatus = staging.Sealed
	state.SectorNonce = 40

	sector, err := a.GetStagedSector(1)
	require.NoError(t, err)
	assert.Equal(t, "a", sector.Pieces[0].PieceKey)
	assert.Equal(t, staging.Pending, sector.SealStatus)
	assert.Equal(t, abi.SectorNumber(1), a.State().SectorNonce)
}

func TestGetStagedSectorNotFound(t *testing.T) {
	a, _ := newTestAllocator()

	_, err := a.GetStagedSector(7)
	assert.True(t, xerrors.Is(err, allocator.ErrSectorNotFound))
}

func TestSetSealStatus(t *testing.T) {
	a, _ := newTestAllocator()
	addPiece(t, a, "a", 10)

	require.NoError(t, a.SetSealStatus(1, staging.Sealing))

	// a sector which has left pending no longer receives pieces
	assert.Equal(t, abi.SectorNumber(2), addPiece(t, a, "b", 10))

	assert.Error(t, a.SetSealStatus(1, staging.Pending))
	require.NoError(t, a.SetSealStatus(1, staging.Sealed))
	assert.Error(t, a.SetSealStatus(1, staging.Failed))

	require.NoError(t, a.SetSealStatus(2, staging.Failed))
	assert.Error(t, a.SetSealStatus(2, staging.Sealing))

	assert.True(t, xerrors.Is(a.SetSealStatus(9, staging.Sealing), allocator.ErrSectorNotFound))

	sectors := a.ListStagedSectors()
	require.Len(t, sectors, 2)
	assert.Equal(t, staging.Sealed, sectors[0].SealStatus)
	assert.Equal(t, staging.Failed, sectors[1].SealStatus)
}

func TestSetSealStatusRejectsUnknownStatus(t *testing.T) {
	a, _ := newTestAllocator()
	addPiece(t, a, "a", 10)

	for _, status := range []staging.SealStatus{
		staging.SealStatus(len(staging.SealStatuses)),
		1 << 63,
		math.MaxUint64,
	} {
		require.NotPanics(t, func() {
			assert.Error(t, a.SetSealStatus(1, status))
		})
	}

	sector, err := a.GetStagedSector(1)
	require.NoError(t, err)
	assert.Equal(t, staging.Pending, sector.SealStatus)
}

func TestRecordPieceCommitment(t *testing.T) {
	a, _ := newTestAllocator()
	addPiece(t, a, "a", 10)
	addPiece(t, a, "b", 10)

	commP := testCommP(t, 7)
	require.NoError(t, a.RecordPieceCommitment(1, 1, commP))

	sector, err := a.GetStagedSector(1)
	require.NoError(t, err)
	assert.Nil(t, sector.Pieces[0].CommP)
	require.NotNil(t, sector.Pieces[1].CommP)
	assert.True(t, commP.Equals(*sector.Pieces[1].CommP))

	assert.Error(t, a.RecordPieceCommitment(1, 2, commP))
	assert.Error(t, a.RecordPieceCommitment(1, -1, commP))
	assert.True(t, xerrors.Is(a.RecordPieceCommitment(3, 0, commP), allocator.ErrSectorNotFound))

	// a data commitment is not a piece commitment
	commD, err := commcid.DataCommitmentV1ToCID(make([]byte, 32))
	require.NoError(t, err)
	assert.Error(t, a.RecordPieceCommitment(1, 0, commD))
}

func TestAddPieceFromFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "allocator-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir) //nolint:errcheck

	path := filepath.Join(dir, "piece")
	require.NoError(t, ioutil.WriteFile(path, bytes.Repeat([]byte{0xab}, 100), 0644))

	a, store := newTestAllocator()

	num, err := a.AddPieceFromFile(context.Background(), "file", 100, path)
	require.NoError(t, err)
	assert.Equal(t, abi.SectorNumber(1), num)

	sector, err := a.GetStagedSector(num)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xab}, 100), store.Bytes(sector.SectorAccess))

	_, err = a.AddPieceFromFile(context.Background(), "missing", 100, filepath.Join(dir, "missing"))
	assert.Error(t, err)
	assert.Len(t, a.ListStagedSectors(), 1)
}

func TestNewFromConfigMemoryBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Staging.Backend = config.MemoryBackend

	a, err := allocator.NewFromConfig(cfg)
	require.NoError(t, err)
	defer a.Close() //nolint:errcheck

	assert.Equal(t, abi.PaddedPieceSize(2048).Unpadded(), a.MaxUserBytesPerStagedSector())

	// aligned padding rounds each piece up to its slot
	assert.Equal(t, abi.SectorNumber(1), addPiece(t, a, "a", 100))
	assert.Equal(t, abi.SectorNumber(1), addPiece(t, a, "b", 500))
}

func TestNewFromConfigFilesystemBackend(t *testing.T) {
	dir, err := ioutil.TempDir("", "allocator-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir) //nolint:errcheck

	cfg := config.Default()
	cfg.Staging.Path = dir
	cfg.Packing.Alignment = config.NoPadding

	a, err := allocator.NewFromConfig(cfg)
	require.NoError(t, err)

	num := addPiece(t, a, "a", 300)

	sector, err := a.GetStagedSector(num)
	require.NoError(t, err)

	info, err := os.Stat(sector.SectorAccess)
	require.NoError(t, err)
	assert.Equal(t, int64(300), info.Size())

	// the staging directory stays locked until the allocator is closed
	_, err = allocator.NewFromConfig(cfg)
	assert.Error(t, err)

	require.NoError(t, a.Close())

	b, err := allocator.NewFromConfig(cfg)
	require.NoError(t, err)
	require.NoError(t, b.Close())
}

func TestNewFromConfigBadgerBackend(t *testing.T) {
	dir, err := ioutil.TempDir("", "allocator-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir) //nolint:errcheck

	cfg := config.Default()
	cfg.Staging.Backend = config.BadgerBackend
	cfg.Staging.Path = dir

	a, err := allocator.NewFromConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, abi.SectorNumber(1), addPiece(t, a, "a", 100))
	assert.Equal(t, abi.SectorNumber(1), addPiece(t, a, "b", 500))

	_, err = allocator.NewFromConfig(cfg)
	assert.Error(t, err)

	require.NoError(t, a.Close())

	// the datastore and lock are released, so the same root can be reopened
	b, err := allocator.NewFromConfig(cfg)
	require.NoError(t, err)
	require.NoError(t, b.Close())
}

func TestNewFromConfigWithTracing(t *testing.T) {
	cfg := config.Default()
	cfg.Staging.Backend = config.MemoryBackend
	cfg.Tracing.JaegerAgentEndpoint = "localhost:6831"

	a, err := allocator.NewFromConfig(cfg)
	require.NoError(t, err)

	addPiece(t, a, "a", 100)
	require.NoError(t, a.Close())
}

func TestNewFromConfigRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Staging.SectorSize = "1000"

	_, err := allocator.NewFromConfig(cfg)
	assert.Error(t, err)
}

func TestAddPieceRecordsMetrics(t *testing.T) {
	require.NoError(t, view.Register(metrics.DefaultViews...))
	defer view.Unregister(metrics.DefaultViews...)

	a, _ := newTestAllocator()
	addPiece(t, a, "a", 100)

	_, err := a.AddPiece(context.Background(), "big", capacity+1, bytes.NewReader(nil))
	require.Error(t, err)

	rows, err := view.RetrieveData(metrics.PiecesAdded.Name())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].Data.(*view.CountData).Value)

	rows, err = view.RetrieveData(metrics.AllocationFailures.Name())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "overflow", rows[0].Tags[0].Value)
}

func TestFailedProvisioningIsNotCountedAsSector(t *testing.T) {
	require.NoError(t, view.Register(metrics.SectorsProvisionedView))
	defer view.Unregister(metrics.SectorsProvisionedView)

	a, store := newTestAllocator()
	store.NewAccessErr = xerrors.New("no space left")

	_, err := a.AddPiece(context.Background(), "a", 10, bytes.NewReader(make([]byte, 10)))
	require.Error(t, err)

	rows, err := view.RetrieveData(metrics.SectorsProvisioned.Name())
	require.NoError(t, err)
	assert.Empty(t, rows)

	store.NewAccessErr = nil
	assert.Equal(t, abi.SectorNumber(2), addPiece(t, a, "a", 10))

	rows, err = view.RetrieveData(metrics.SectorsProvisioned.Name())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].Data.(*view.CountData).Value)
}
