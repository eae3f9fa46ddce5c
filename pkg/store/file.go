package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/behrlich/spot-solver/pkg/solver"
)

// FileStore keeps one file per spot key under a directory. Writes go to a
// temporary file that is renamed into place, so readers never see a
// partial blob.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, persistErr("mkdir", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file that holds key
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, key+".spot")
}

func (s *FileStore) Save(ctx context.Context, key string, sol *solver.Solution) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blob, err := Marshal(sol)
	if err != nil {
		return errors.Wrapf(err, "save %s", key)
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return persistErr("create", key, err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return persistErr("write", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return persistErr("sync", key, err)
	}
	if err := tmp.Close(); err != nil {
		return persistErr("close", key, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(key)); err != nil {
		return persistErr("rename", key, err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context, key string) (*solver.Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blob, err := os.ReadFile(s.Path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(ErrSpotNotFound, "load %s", key)
	}
	if err != nil {
		return nil, persistErr("read", key, err)
	}
	sol, err := Unmarshal(blob)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", key)
	}
	return sol, nil
}
