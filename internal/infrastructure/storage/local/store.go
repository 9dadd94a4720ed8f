// Package local stores exported tables on the local filesystem, laid out as
// <root>/<bucket>/<key>. It backs single-machine runs that have no object
// store.
package local

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/export"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) path(bucket, key string) (string, error) {
	p := filepath.Join(s.root, bucket, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", errors.InvalidParam("object key escapes the store root: " + key)
	}
	return p, nil
}

func (s *Store) Exists(_ context.Context, bucket, key string) (bool, error) {
	p, err := s.path(bucket, key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, errors.Wrapf(err, errors.CodeStorageError, "stat %s", p)
	}
	return true, nil
}

// Put writes through a temporary file and a rename, so readers never see a
// partial table.
func (s *Store) Put(_ context.Context, bucket, key string, data []byte, _ string) error {
	p, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.Wrapf(err, errors.CodeStorageError, "create directory for %s", p)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return errors.Wrapf(err, errors.CodeStorageError, "create %s", p)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, errors.CodeStorageError, "write %s", p)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, errors.CodeStorageError, "write %s", p)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return errors.Wrapf(err, errors.CodeStorageError, "rename to %s", p)
	}
	return nil
}

var _ export.ObjectStore = (*Store)(nil)

//Personal.AI order the ending
