package config

import (
	"math/bits"

	"github.com/docker/go-units"
	"github.com/filecoin-project/specs-actors/actors/abi"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/xerrors"
)

const (
	FilesystemBackend = "filesystem"
	MemoryBackend     = "memory"
	BadgerBackend     = "badger"

	AlignedPadding = "aligned"
	NoPadding      = "none"
)

// MinSectorSize is the smallest sector size accepted in configuration.
const MinSectorSize = abi.SectorSize(256)

// Config is the configuration of a piece allocator.
type Config struct {
	Staging StagingConfig
	Packing PackingConfig
	Tracing TracingConfig
}

type StagingConfig struct {
	// Backend selects where staged sectors are kept: "filesystem" stores one
	// file per sector under Path, "badger" keeps them in a badger datastore
	// under Path, "memory" keeps them in an in-memory datastore.
	Backend string

	Path string

	// SectorSize is a human readable size, e.g. "2KiB" or "32GiB".
	SectorSize string
}

type PackingConfig struct {
	// Alignment is "aligned" to pad pieces as the proof system requires, or
	// "none" to write pieces back to back.
	Alignment string
}

type TracingConfig struct {
	// JaegerAgentEndpoint is the host:port of a jaeger agent. Tracing is
	// disabled when empty.
	JaegerAgentEndpoint string

	ServiceName string
}

func Default() *Config {
	return &Config{
		Staging: StagingConfig{
			Backend:    FilesystemBackend,
			Path:       "~/.sector-allocator",
			SectorSize: "2KiB",
		},
		Packing: PackingConfig{
			Alignment: AlignedPadding,
		},
		Tracing: TracingConfig{
			ServiceName: "sector-allocator",
		},
	}
}

// SectorSizeBytes parses SectorSize.
func (c *StagingConfig) SectorSizeBytes() (abi.SectorSize, error) {
	n, err := units.RAMInBytes(c.SectorSize)
	if err != nil {
		return 0, xerrors.Errorf("parsing sector size %q: %w", c.SectorSize, err)
	}

	if n < int64(MinSectorSize) {
		return 0, xerrors.Errorf("sector size %d is smaller than the minimum of %d bytes", n, MinSectorSize)
	}

	if bits.OnesCount64(uint64(n)) != 1 {
		return 0, xerrors.Errorf("sector size %d is not a power of two", n)
	}

	return abi.SectorSize(n), nil
}

// ExpandedPath produces Path with a leading ~ expanded to the user's home
// directory.
func (c *StagingConfig) ExpandedPath() (string, error) {
	p, err := homedir.Expand(c.Path)
	if err != nil {
		return "", xerrors.Errorf("expanding staging path %q: %w", c.Path, err)
	}

	return p, nil
}

func (c *Config) Validate() error {
	switch c.Staging.Backend {
	case FilesystemBackend, BadgerBackend:
		if c.Staging.Path == "" {
			return xerrors.Errorf("%s staging backend requires a path", c.Staging.Backend)
		}
	case MemoryBackend:
	default:
		return xerrors.Errorf("unknown staging backend %q", c.Staging.Backend)
	}

	if _, err := c.Staging.SectorSizeBytes(); err != nil {
		return err
	}

	switch c.Packing.Alignment {
	case AlignedPadding, NoPadding:
	default:
		return xerrors.Errorf("unknown packing alignment %q", c.Packing.Alignment)
	}

	if c.Tracing.JaegerAgentEndpoint != "" && c.Tracing.ServiceName == "" {
		return xerrors.New("jaeger tracing requires a service name")
	}

	return nil
}
