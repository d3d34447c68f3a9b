package allocator

import (
	"io"
	"os"
	"path/filepath"

	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	badger "github.com/ipfs/go-ds-badger"
	fslock "github.com/ipfs/go-fs-lock"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-sector-allocator/apis/padding"
	"github.com/filecoin-project/go-sector-allocator/apis/sectorstore"
	"github.com/filecoin-project/go-sector-allocator/config"
	"github.com/filecoin-project/go-sector-allocator/pieces"
	"github.com/filecoin-project/go-sector-allocator/sectorstore/basicfs"
	"github.com/filecoin-project/go-sector-allocator/sectorstore/dsstore"
	"github.com/filecoin-project/go-sector-allocator/tracing"
)

const (
	// StagingLock is the name of the lock file taken in the staging
	// directory of on-disk backends.
	StagingLock = "staging.lock"

	badgerDir = "badger"
)

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

// NewFromConfig builds an allocator, along with its sector store and padding
// rules, from configuration. The allocator must be closed to release the
// store.
func NewFromConfig(cfg *config.Config) (*Allocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Errorf("invalid config: %w", err)
	}

	store, closers, err := storeFromConfig(cfg.Staging)
	if err != nil {
		return nil, err
	}

	if cfg.Tracing.JaegerAgentEndpoint != "" {
		je, err := tracing.SetupJaegerTracing(cfg.Tracing.ServiceName, cfg.Tracing.JaegerAgentEndpoint)
		if err != nil {
			closeAll(closers)
			return nil, err
		}

		closers = append(closers, closerFunc(func() error {
			tracing.Shutdown(je)
			return nil
		}))
	}

	var p padding.Interface
	switch cfg.Packing.Alignment {
	case config.AlignedPadding:
		p = pieces.Aligned{}
	case config.NoPadding:
		p = pieces.Unaligned{}
	}

	a := NewAllocator(store, p)
	a.closers = closers

	return a, nil
}

func storeFromConfig(cfg config.StagingConfig) (sectorstore.Interface, []io.Closer, error) {
	ssize, err := cfg.SectorSizeBytes()
	if err != nil {
		return nil, nil, err
	}

	if cfg.Backend == config.MemoryBackend {
		log.Infof("staging sectors of %d bytes in memory", ssize)
		return dsstore.New(dssync.MutexWrap(datastore.NewMapDatastore()), ssize), nil, nil
	}

	root, err := cfg.ExpandedPath()
	if err != nil {
		return nil, nil, err
	}

	unlock, err := lockStagingRoot(root)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Backend {
	case config.FilesystemBackend:
		store, err := basicfs.New(root, ssize)
		if err != nil {
			closeAll([]io.Closer{unlock})
			return nil, nil, xerrors.Errorf("creating filesystem sector store: %w", err)
		}

		log.Infof("staging sectors of %d bytes under %s", ssize, root)
		return store, []io.Closer{unlock}, nil
	case config.BadgerBackend:
		ds, err := badger.NewDatastore(filepath.Join(root, badgerDir), nil)
		if err != nil {
			closeAll([]io.Closer{unlock})
			return nil, nil, xerrors.Errorf("opening badger datastore: %w", err)
		}

		log.Infof("staging sectors of %d bytes in badger under %s", ssize, root)
		return dsstore.New(ds, ssize), []io.Closer{ds, unlock}, nil
	default:
		closeAll([]io.Closer{unlock})
		return nil, nil, xerrors.Errorf("unknown staging backend %q", cfg.Backend)
	}
}

// lockStagingRoot takes an exclusive lock on root, so that two allocators
// never stage into the same directory.
func lockStagingRoot(root string) (io.Closer, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, xerrors.Errorf("creating staging root: %w", err)
	}

	unlock, err := fslock.Lock(root, StagingLock)
	if err != nil {
		return nil, xerrors.Errorf("could not lock staging root %s: %w", root, err)
	}

	return unlock, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.Warnf("closing: %+v", err)
		}
	}
}
