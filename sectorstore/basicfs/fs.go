package basicfs

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/filecoin-project/specs-actors/actors/abi"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-sector-allocator/apis/sectorstore"
)

var log = logging.Logger("basicfs")

const StagingDir = "staging"

var _ sectorstore.Interface = &Store{}

// Store keeps each staged sector in its own file under Root/staging. The
// sector access handle is the path of that file.
type Store struct {
	Root string

	maxBytes abi.UnpaddedPieceSize
}

func New(root string, ssize abi.SectorSize) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, StagingDir), 0755); err != nil {
		return nil, xerrors.Errorf("creating staging directory: %w", err)
	}

	return &Store{
		Root:     root,
		maxBytes: abi.PaddedPieceSize(ssize).Unpadded(),
	}, nil
}

func (s *Store) MaxUnsealedBytesPerSector() abi.UnpaddedPieceSize {
	return s.maxBytes
}

func (s *Store) NewStagingSectorAccess(ctx context.Context) (string, error) {
	path := filepath.Join(s.Root, StagingDir, uuid.New().String())

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", xerrors.Errorf("creating staged sector file: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", xerrors.Errorf("closing staged sector file: %w", err)
	}

	log.Debugw("created staged sector file", "path", path)

	return path, nil
}

// WriteAndPreprocess appends r to the staged sector file. At most the
// remaining capacity of the sector is written; anything beyond that is left
// unread, and the short count is reported to the caller.
func (s *Store) WriteAndPreprocess(ctx context.Context, access string, r io.Reader) (written abi.UnpaddedPieceSize, err error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f, err := os.OpenFile(access, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return 0, xerrors.Errorf("opening staged sector file: %w", err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = multierror.Append(err, xerrors.Errorf("closing staged sector file: %w", cerr))
		}
	}()

	st, err := f.Stat()
	if err != nil {
		return 0, xerrors.Errorf("stat staged sector file: %w", err)
	}

	var remaining int64
	if used := st.Size(); used < int64(s.maxBytes) {
		remaining = int64(s.maxBytes) - used
	}

	n, err := io.Copy(f, io.LimitReader(r, remaining))
	if err != nil {
		return abi.UnpaddedPieceSize(n), xerrors.Errorf("writing to staged sector file: %w", err)
	}

	if int64(n) == remaining {
		log.Warnf("staged sector %s is full", access)
	}

	return abi.UnpaddedPieceSize(n), nil
}
