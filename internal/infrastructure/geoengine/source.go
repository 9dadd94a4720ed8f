package geoengine

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// Source serves the raw GeoJSON of a dataset path.
type Source interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// AssetKey maps a dataset path to the object or file that stores it.
func AssetKey(path string) string {
	return strings.TrimPrefix(path, "/") + ".geojson"
}

// DirSource reads datasets from a local directory tree.
type DirSource struct {
	root string
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{root: dir}
}

func (s *DirSource) file(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(AssetKey(path)))
}

func (s *DirSource) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(s.file(path))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NotFound("dataset " + path + " not found")
		}
		return nil, err
	}
	return f, nil
}

func (s *DirSource) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(s.file(path))
	switch {
	case err == nil:
		return true, nil
	case stderrors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

var _ Source = (*DirSource)(nil)

//Personal.AI order the ending
