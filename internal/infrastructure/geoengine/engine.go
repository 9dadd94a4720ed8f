package geoengine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/golang/geo/s2"
	"golang.org/x/sync/singleflight"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/geo"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// BandMask is the band of an image loaded from a mask dataset.
const BandMask = "mask"

const (
	defaultMaxCells = 1024
	defaultMaxLevel = 20
)

// Options tune the coverings built when datasets are loaded. MaxLevel bounds
// the positional error: level 20 cells are about 10 m across.
type Options struct {
	MaxCells int
	MaxLevel int
}

// Engine implements geo.Engine over GeoJSON datasets read from a Source.
// Decoded collections are cached by path; dataset paths are versioned, so a
// path never changes content.
type Engine struct {
	source  Source
	coverer *s2.RegionCoverer
	logger  logging.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]*geo.FeatureCollection
}

// New creates an Engine reading from source.
func New(source Source, opts Options, logger logging.Logger) (*Engine, error) {
	if source == nil {
		return nil, errors.InvalidParam("geoengine: source is required")
	}
	if opts.MaxCells <= 0 {
		opts.MaxCells = defaultMaxCells
	}
	if opts.MaxLevel <= 0 || opts.MaxLevel > s2.MaxLevel {
		opts.MaxLevel = defaultMaxLevel
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{
		source:  source,
		coverer: &s2.RegionCoverer{MinLevel: 0, MaxLevel: opts.MaxLevel, LevelMod: 1, MaxCells: opts.MaxCells},
		logger:  logger.Named("geoengine"),
		cache:   make(map[string]*geo.FeatureCollection),
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Loading
// ─────────────────────────────────────────────────────────────────────────────

func (e *Engine) LoadFeatureCollection(ctx context.Context, path string) (*geo.FeatureCollection, error) {
	e.mu.RLock()
	fc, ok := e.cache[path]
	e.mu.RUnlock()
	if ok {
		return fc, nil
	}

	v, err, _ := e.group.Do(path, func() (interface{}, error) {
		fc, err := e.decode(ctx, path)
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.cache[path] = fc
		e.mu.Unlock()
		return fc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*geo.FeatureCollection), nil
}

func (e *Engine) decode(ctx context.Context, path string) (*geo.FeatureCollection, error) {
	rc, err := e.source.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeDatasetLoad, "open %s", path)
	}
	defer rc.Close()

	fc, err := decodeCollection(rc, e.coverer)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeDatasetLoad, "decode %s", path)
	}
	e.logger.Debug("dataset loaded", logging.String("path", path), logging.Int("features", fc.Len()))
	return fc, nil
}

// LoadImage reads a mask stored as polygons. Every covered point has value 1.
func (e *Engine) LoadImage(ctx context.Context, path string) (geo.Image, error) {
	fc, err := e.LoadFeatureCollection(ctx, path)
	if err != nil {
		return nil, err
	}
	footprint, err := e.Union(ctx, fc.Geometries(), 0)
	if err != nil {
		return nil, err
	}
	return &Image{footprint: footprint.(*Geometry), bands: []string{BandMask}}, nil
}

func (e *Engine) Exists(ctx context.Context, path string) (bool, error) {
	e.mu.RLock()
	_, ok := e.cache[path]
	e.mu.RUnlock()
	if ok {
		return true, nil
	}
	return e.source.Exists(ctx, path)
}

// ─────────────────────────────────────────────────────────────────────────────
// Geometry
// ─────────────────────────────────────────────────────────────────────────────

// Intersect, Union and Difference work on the coverings built at load time,
// whose precision is fixed by Options. The margin argument is not used.
func (e *Engine) Intersect(_ context.Context, a, b geo.Geometry, _ geo.ErrorMargin) (geo.Geometry, error) {
	ga, err := asGeometry(a)
	if err != nil {
		return nil, err
	}
	gb, err := asGeometry(b)
	if err != nil {
		return nil, err
	}
	if ga.IsEmpty() || gb.IsEmpty() || !ga.bound.Intersects(gb.bound) {
		return newGeometry(nil), nil
	}
	return newGeometry(s2.CellUnionFromIntersection(ga.cells, gb.cells)), nil
}

func (e *Engine) Union(_ context.Context, geoms []geo.Geometry, _ geo.ErrorMargin) (geo.Geometry, error) {
	parts := make([]s2.CellUnion, 0, len(geoms))
	for _, g := range geoms {
		sg, err := asGeometry(g)
		if err != nil {
			return nil, err
		}
		if !sg.IsEmpty() {
			parts = append(parts, sg.cells)
		}
	}
	return newGeometry(s2.CellUnionFromUnion(parts...)), nil
}

func (e *Engine) Difference(_ context.Context, a, b geo.Geometry, _ geo.ErrorMargin) (geo.Geometry, error) {
	ga, err := asGeometry(a)
	if err != nil {
		return nil, err
	}
	gb, err := asGeometry(b)
	if err != nil {
		return nil, err
	}
	if ga.IsEmpty() {
		return newGeometry(nil), nil
	}
	if gb.IsEmpty() || !ga.bound.Intersects(gb.bound) {
		return ga, nil
	}
	return newGeometry(s2.CellUnionFromDifference(ga.cells, gb.cells)), nil
}

func (e *Engine) Area(_ context.Context, g geo.Geometry, _ geo.ErrorMargin) (float64, error) {
	sg, err := asGeometry(g)
	if err != nil {
		return 0, err
	}
	return sg.AreaSquareMeters(), nil
}

func (e *Engine) FilterBounds(_ context.Context, fc *geo.FeatureCollection, g geo.Geometry) (*geo.FeatureCollection, error) {
	out := &geo.FeatureCollection{}
	sg, err := asGeometry(g)
	if err != nil {
		return nil, err
	}
	if fc == nil || sg.IsEmpty() {
		return out, nil
	}
	for _, f := range fc.Features {
		fg, err := asGeometry(f.Geometry)
		if err != nil {
			return nil, err
		}
		if !fg.IsEmpty() && fg.bound.Intersects(sg.bound) {
			out.Features = append(out.Features, f)
		}
	}
	return out, nil
}

func (e *Engine) AggregateHistogram(_ context.Context, fc *geo.FeatureCollection, field string) (map[string]int, error) {
	hist := make(map[string]int)
	if fc == nil {
		return hist, nil
	}
	for _, f := range fc.Features {
		if key, ok := f.StringProperty(field); ok {
			hist[key]++
		}
	}
	return hist, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Images
// ─────────────────────────────────────────────────────────────────────────────

func (e *Engine) PixelArea(_ context.Context) (geo.Image, error) {
	return &Image{footprint: fullSphere(), pixelArea: true, bands: []string{geo.BandArea}}, nil
}

// Multiply keeps the footprint both images cover. The product carries pixel
// areas when either factor does.
func (e *Engine) Multiply(_ context.Context, a, b geo.Image) (geo.Image, error) {
	ia, err := asImage(a)
	if err != nil {
		return nil, err
	}
	ib, err := asImage(b)
	if err != nil {
		return nil, err
	}
	out := &Image{
		footprint: newGeometry(s2.CellUnionFromIntersection(ia.footprint.cells, ib.footprint.cells)),
		pixelArea: ia.pixelArea || ib.pixelArea,
		bands:     ia.bands,
	}
	if ib.pixelArea && !ia.pixelArea {
		out.bands = ib.bands
	}
	return out, nil
}

// ReduceRegion sums img over g. Pixel-area bands sum to square meters; mask
// bands count pixels of the given scale.
func (e *Engine) ReduceRegion(_ context.Context, img geo.Image, g geo.Geometry, scale float64, maxPixels int64) (map[string]float64, error) {
	si, err := asImage(img)
	if err != nil {
		return nil, err
	}
	sg, err := asGeometry(g)
	if err != nil {
		return nil, err
	}
	if scale <= 0 {
		return nil, errors.Newf(errors.ErrCodeGeometry, "scale must be positive, got %v", scale)
	}

	pixels := sg.AreaSquareMeters() / (scale * scale)
	if maxPixels > 0 && pixels > float64(maxPixels) {
		return nil, errors.Newf(errors.ErrCodeRemoteLimitExceeded, "too many pixels: %.0f > %d", pixels, maxPixels)
	}

	var covered float64
	if !sg.IsEmpty() {
		region := s2.CellUnionFromIntersection(sg.cells, si.footprint.cells)
		covered = region.ExactArea() * EarthRadiusMeters * EarthRadiusMeters
	}
	value := covered
	if !si.pixelArea {
		value = covered / (scale * scale)
	}
	out := make(map[string]float64, len(si.bands))
	for _, b := range si.bands {
		out[b] = value
	}
	return out, nil
}

func (e *Engine) Footprint(_ context.Context, img geo.Image) (geo.Geometry, error) {
	si, err := asImage(img)
	if err != nil {
		return nil, err
	}
	return si.footprint, nil
}

// CachedPaths lists the datasets decoded so far, sorted.
func (e *Engine) CachedPaths() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.cache))
	for p := range e.cache {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func errForeign(what string, v any) error {
	return errors.New(errors.ErrCodeGeometry, fmt.Sprintf("%s of type %T was not produced by this engine", what, v))
}

var _ geo.Engine = (*Engine)(nil)

//Personal.AI order the ending
