package stats

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/geo"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/landscape"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Aggregation tree
// ─────────────────────────────────────────────────────────────────────────────

// SubFeatureArea is one protected area or KBA within a biome.
type SubFeatureArea struct {
	ID   int64
	Name string
	Area float64
}

// BiomeStats is the breakdown of one biome within a clipped region.
type BiomeStats struct {
	ID          int64
	Name        string
	Protected   float64
	Unprotected float64
	// KBA and NonKBA are nil when the KBA layer is not part of the run.
	KBA    *float64
	NonKBA *float64
	PAs    []SubFeatureArea
	KBAs   []SubFeatureArea
}

// StateStats is the breakdown of a landscape within one state of a region.
type StateStats struct {
	Code    string
	Name    string
	Feature geo.Feature
	Area    float64
	Biomes  []BiomeStats
}

// RegionStats is the breakdown of a landscape within one country.
type RegionStats struct {
	Code    string
	Feature geo.Feature
	Area    float64
	Biomes  []BiomeStats
	States  []StateStats
}

// LandscapeStats is the full tree for one landscape polygon.
type LandscapeStats struct {
	Landscape landscape.Landscape
	TotalArea float64
	Regions   []RegionStats
}

// ─────────────────────────────────────────────────────────────────────────────
// Aggregation context
// ─────────────────────────────────────────────────────────────────────────────

// Layers are the reference collections shared, read-only, by every
// landscape of a run.
type Layers struct {
	Regions    *geo.FeatureCollection
	Ecoregions *geo.FeatureCollection
	// PAs are already restricted by the variant's inclusion rules.
	PAs *geo.FeatureCollection
	// KBAs is nil when the KBA layer is unavailable.
	KBAs *geo.FeatureCollection
	// States is nil unless state statistics are requested.
	States *geo.FeatureCollection
}

// AggregationContext is everything the aggregation stages need besides the
// landscapes themselves. It is built once per landscape key and never
// mutated.
type AggregationContext struct {
	LandscapeKey string
	Layers       Layers
	Rules        landscape.Rules
	Margin       geo.ErrorMargin
}

// ─────────────────────────────────────────────────────────────────────────────
// Aggregator
// ─────────────────────────────────────────────────────────────────────────────

// Aggregator intersects landscapes with the reference layers.
type Aggregator struct {
	engine      geo.Engine
	area        *AreaCalculator
	concurrency int
	logger      logging.Logger
}

// NewAggregator creates an Aggregator processing up to concurrency
// landscapes at once.
func NewAggregator(engine geo.Engine, area *AreaCalculator, concurrency int, logger logging.Logger) *Aggregator {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Aggregator{engine: engine, area: area, concurrency: concurrency, logger: logger.Named("aggregator")}
}

// Aggregate computes the statistics tree of every landscape in fc. The
// result order follows fc.
func (a *Aggregator) Aggregate(ctx context.Context, actx AggregationContext, fc *geo.FeatureCollection) ([]LandscapeStats, error) {
	if actx.Layers.Regions == nil || actx.Layers.Ecoregions == nil || actx.Layers.PAs == nil {
		return nil, errors.Precondition("regions, ecoregions and protected areas are required")
	}

	out := make([]LandscapeStats, fc.Len())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i := 0; i < fc.Len(); i++ {
		i := i
		g.Go(func() error {
			ls := landscape.FromFeature(i, fc.Features[i])
			st, err := a.landscape(gctx, actx, ls)
			if err != nil {
				return errors.Wrapf(err, errors.CodeUnknown, "%s landscape %d", actx.LandscapeKey, i)
			}
			out[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.logger.Info("landscapes aggregated",
		logging.String("landscape_key", actx.LandscapeKey),
		logging.Int("landscapes", len(out)))
	return out, nil
}

func (a *Aggregator) landscape(ctx context.Context, actx AggregationContext, ls landscape.Landscape) (LandscapeStats, error) {
	if err := ctx.Err(); err != nil {
		return LandscapeStats{}, err
	}
	total, err := a.area.RoundedArea(ctx, ls.Geometry)
	if err != nil {
		return LandscapeStats{}, err
	}
	st := LandscapeStats{Landscape: ls, TotalArea: total, Regions: []RegionStats{}}

	regions, err := a.engine.FilterBounds(ctx, actx.Layers.Regions, ls.Geometry)
	if err != nil {
		return LandscapeStats{}, errors.Wrap(err, errors.ErrCodeGeometry, "filter regions")
	}
	for _, r := range regions.Features {
		clipped, err := a.engine.Intersect(ctx, ls.Geometry, r.Geometry, actx.Margin)
		if err != nil {
			return LandscapeStats{}, errors.Wrap(err, errors.ErrCodeGeometry, "clip landscape to region")
		}
		rs, err := a.region(ctx, actx, r, clipped)
		if err != nil {
			return LandscapeStats{}, err
		}
		st.Regions = append(st.Regions, rs)
	}
	return st, nil
}

// region builds the record of one bounds-matched region. A region whose exact
// overlap with the landscape is empty still yields a record with zero area and
// no biomes.
func (a *Aggregator) region(ctx context.Context, actx AggregationContext, r geo.Feature, clipped geo.Geometry) (RegionStats, error) {
	if clipped == nil || clipped.IsEmpty() {
		rs := RegionStats{Code: actx.Rules.RegionCode(r), Feature: r, Biomes: []BiomeStats{}}
		if actx.Layers.States != nil {
			rs.States = []StateStats{}
		}
		return rs, nil
	}
	area, err := a.area.RoundedArea(ctx, clipped)
	if err != nil {
		return RegionStats{}, err
	}
	biomes, err := a.biomes(ctx, actx, clipped)
	if err != nil {
		return RegionStats{}, err
	}
	rs := RegionStats{Code: actx.Rules.RegionCode(r), Feature: r, Area: area, Biomes: biomes}

	if actx.Layers.States != nil {
		if rs.States, err = a.states(ctx, actx, clipped); err != nil {
			return RegionStats{}, err
		}
	}
	return rs, nil
}

func (a *Aggregator) states(ctx context.Context, actx AggregationContext, regionGeom geo.Geometry) ([]StateStats, error) {
	candidates, err := a.engine.FilterBounds(ctx, actx.Layers.States, regionGeom)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGeometry, "filter states")
	}
	out := []StateStats{}
	for _, s := range candidates.Features {
		clipped, err := a.engine.Intersect(ctx, regionGeom, s.Geometry, actx.Margin)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeGeometry, "clip region to state")
		}
		if clipped == nil || clipped.IsEmpty() {
			continue
		}
		area, err := a.area.RoundedArea(ctx, clipped)
		if err != nil {
			return nil, err
		}
		biomes, err := a.biomes(ctx, actx, clipped)
		if err != nil {
			return nil, err
		}
		code, _ := s.StringProperty(landscape.FieldStateCode)
		name, _ := s.StringProperty(landscape.FieldStateName)
		out = append(out, StateStats{Code: code, Name: name, Feature: s, Area: area, Biomes: biomes})
	}
	return out, nil
}

// biomes breaks clipped down by biome id. A region without biomes yields an
// empty, non-nil slice.
func (a *Aggregator) biomes(ctx context.Context, actx AggregationContext, clipped geo.Geometry) ([]BiomeStats, error) {
	enum, err := Enumerate(ctx, a.engine, actx.Layers.Ecoregions, clipped, landscape.FieldBiomeID)
	if err != nil {
		return nil, err
	}

	out := make([]BiomeStats, 0, len(enum.IDs))
	for _, key := range enum.IDs {
		id, err := geo.ParseID(key)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeGeometry, "biome id")
		}
		members := enum.Select(landscape.FieldBiomeID, key)
		union, err := a.engine.Union(ctx, members.Geometries(), actx.Margin)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeGeometry, "union ecoregions")
		}
		biomeGeom, err := a.engine.Intersect(ctx, union, clipped, actx.Margin)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeGeometry, "clip biome")
		}

		bs := BiomeStats{ID: id}
		// First seen wins when same-id features disagree on the name.
		if len(members.Features) > 0 {
			bs.Name, _ = members.Features[0].StringProperty(landscape.FieldBiomeName)
		}

		cover, err := a.coverage(ctx, actx, actx.Layers.PAs, landscape.FieldPAID, landscape.FieldPAName, biomeGeom)
		if err != nil {
			return nil, err
		}
		bs.Protected, bs.Unprotected, bs.PAs = cover.inside, cover.outside, cover.items

		if actx.Layers.KBAs != nil {
			cover, err := a.coverage(ctx, actx, actx.Layers.KBAs, landscape.FieldKBAID, landscape.FieldKBAName, biomeGeom)
			if err != nil {
				return nil, err
			}
			kba, nonKBA := cover.inside, cover.outside
			bs.KBA, bs.NonKBA, bs.KBAs = &kba, &nonKBA, cover.items
		}
		out = append(out, bs)
	}
	return out, nil
}

type coverage struct {
	inside  float64
	outside float64
	items   []SubFeatureArea
}

// coverage splits biomeGeom into the part covered by layer and the rest, and
// lists every layer id present with its own area inside biomeGeom.
func (a *Aggregator) coverage(ctx context.Context, actx AggregationContext, layer *geo.FeatureCollection, idField, nameField string, biomeGeom geo.Geometry) (coverage, error) {
	enum, err := Enumerate(ctx, a.engine, layer, biomeGeom, idField)
	if err != nil {
		return coverage{}, err
	}

	union, err := a.engine.Union(ctx, enum.Candidates.Geometries(), actx.Margin)
	if err != nil {
		return coverage{}, errors.Wrapf(err, errors.ErrCodeGeometry, "union %s", idField)
	}
	covered, err := a.engine.Intersect(ctx, union, biomeGeom, actx.Margin)
	if err != nil {
		return coverage{}, errors.Wrapf(err, errors.ErrCodeGeometry, "clip %s", idField)
	}
	// Always the broader geometry minus the covered part.
	rest, err := a.engine.Difference(ctx, biomeGeom, covered, actx.Margin)
	if err != nil {
		return coverage{}, errors.Wrapf(err, errors.ErrCodeGeometry, "difference %s", idField)
	}

	c := coverage{items: make([]SubFeatureArea, 0, len(enum.IDs))}
	if c.inside, err = a.area.RoundedArea(ctx, covered); err != nil {
		return coverage{}, err
	}
	if c.outside, err = a.area.RoundedArea(ctx, rest); err != nil {
		return coverage{}, err
	}

	for _, key := range enum.IDs {
		id, err := geo.ParseID(key)
		if err != nil {
			return coverage{}, errors.Wrapf(err, errors.ErrCodeGeometry, "%s id", idField)
		}
		members := enum.Select(idField, key)
		geom, err := a.engine.Union(ctx, members.Geometries(), actx.Margin)
		if err != nil {
			return coverage{}, errors.Wrapf(err, errors.ErrCodeGeometry, "union %s %s", idField, key)
		}
		clipped, err := a.engine.Intersect(ctx, geom, biomeGeom, actx.Margin)
		if err != nil {
			return coverage{}, errors.Wrapf(err, errors.ErrCodeGeometry, "clip %s %s", idField, key)
		}
		area, err := a.area.RoundedArea(ctx, clipped)
		if err != nil {
			return coverage{}, err
		}
		item := SubFeatureArea{ID: id, Area: area}
		if len(members.Features) > 0 {
			item.Name, _ = members.Features[0].StringProperty(nameField)
		}
		c.items = append(c.items, item)
	}
	return c, nil
}

//Personal.AI order the ending
