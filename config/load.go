package config

import (
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"golang.org/x/xerrors"
)

// FromFile loads config from a specified file, falling back to the provided
// defaults if the file does not exist. Values missing from the file keep
// their default.
func FromFile(path string, def *Config) (*Config, error) {
	file, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
		return def, def.Validate()
	case err != nil:
		return nil, err
	}

	defer file.Close() //nolint:errcheck // The file is RO
	return FromReader(file, def)
}

// FromReader loads config from a reader instead of a file.
func FromReader(reader io.Reader, def *Config) (*Config, error) {
	cfg := *def
	if _, err := toml.DecodeReader(reader, &cfg); err != nil {
		return nil, xerrors.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
