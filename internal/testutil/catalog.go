package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/dataset"
)

// MemCatalog is an in-memory dataset.Catalog.
type MemCatalog struct {
	mu       sync.Mutex
	versions map[string][]dataset.Version
	// ListErr, when set, is returned by every ListVersions.
	ListErr error
}

// NewMemCatalog returns an empty catalog.
func NewMemCatalog() *MemCatalog {
	return &MemCatalog{versions: make(map[string][]dataset.Version)}
}

// Add registers a version of family dated date at the conventional path and
// returns that path.
func (c *MemCatalog) Add(family string, date time.Time) string {
	v := dataset.Version{Family: family, Date: date, Path: dataset.VersionPath(family, date), RegisteredAt: time.Now().UTC()}
	_ = c.Register(context.Background(), v)
	return v.Path
}

func (c *MemCatalog) ListVersions(_ context.Context, family string, notAfter time.Time) ([]dataset.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ListErr != nil {
		return nil, c.ListErr
	}
	var out []dataset.Version
	for _, v := range c.versions[family] {
		if !v.Date.After(notAfter) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (c *MemCatalog) Register(_ context.Context, v dataset.Version) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.versions[v.Family]
	for i := range list {
		if list[i].Date.Equal(v.Date) {
			list[i] = v
			return nil
		}
	}
	c.versions[v.Family] = append(list, v)
	return nil
}

var _ dataset.Catalog = (*MemCatalog)(nil)

//Personal.AI order the ending
