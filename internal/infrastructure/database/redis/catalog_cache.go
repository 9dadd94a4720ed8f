package redis

import (
	"context"
	"time"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/dataset"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
)

const catalogKeyPrefix = "catalog:"

// CachedCatalog is a read-through cache in front of a dataset.Catalog.
// Listings are keyed by family and reference date; Register drops every
// cached listing of the family.
type CachedCatalog struct {
	next   dataset.Catalog
	cache  Cache
	ttl    time.Duration
	logger logging.Logger
}

func NewCachedCatalog(next dataset.Catalog, cache Cache, ttl time.Duration, log logging.Logger) *CachedCatalog {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &CachedCatalog{next: next, cache: cache, ttl: ttl, logger: log}
}

func catalogKey(family string, notAfter time.Time) string {
	return catalogKeyPrefix + family + ":" + notAfter.UTC().Format("2006-01-02")
}

func (c *CachedCatalog) ListVersions(ctx context.Context, family string, notAfter time.Time) ([]dataset.Version, error) {
	var (
		out     []dataset.Version
		loadErr error
	)
	err := c.cache.GetOrSet(ctx, catalogKey(family, notAfter), &out, c.ttl, func(ctx context.Context) (interface{}, error) {
		versions, err := c.next.ListVersions(ctx, family, notAfter)
		loadErr = err
		return versions, err
	})
	switch {
	case err == nil:
		return out, nil
	case err == ErrCacheMiss:
		return nil, nil
	case loadErr != nil:
		return nil, loadErr
	}
	c.logger.Warn("catalog cache unavailable, reading through",
		logging.String("family", family), logging.Err(err))
	return c.next.ListVersions(ctx, family, notAfter)
}

func (c *CachedCatalog) Register(ctx context.Context, v dataset.Version) error {
	if err := c.next.Register(ctx, v); err != nil {
		return err
	}
	if _, err := c.cache.DeleteByPrefix(ctx, catalogKeyPrefix+v.Family+":"); err != nil {
		c.logger.Warn("catalog cache invalidation failed",
			logging.String("family", v.Family), logging.Err(err))
	}
	return nil
}

var _ dataset.Catalog = (*CachedCatalog)(nil)

//Personal.AI order the ending
