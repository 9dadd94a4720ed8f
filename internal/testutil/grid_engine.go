package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/geo"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// CellArea is the area of one grid cell in m² (exactly 1 km²).
const CellArea = 1_000_000.0

// cellSide is the side of a grid cell in meters.
const cellSide = 1000.0

// Cell addresses one grid square.
type Cell struct{ X, Y int }

// GridGeometry is a set of unit cells. Boolean operations on it are exact,
// so areas in tests come out as whole km².
type GridGeometry struct {
	cells map[Cell]struct{}
}

// Rect returns the cells of the half-open rectangle [x0,x1) × [y0,y1).
func Rect(x0, y0, x1, y1 int) *GridGeometry {
	g := &GridGeometry{cells: make(map[Cell]struct{})}
	for x := x0; x < x1; x++ {
		for y := y0; y < y1; y++ {
			g.cells[Cell{x, y}] = struct{}{}
		}
	}
	return g
}

// Cells returns a geometry holding exactly the given cells.
func Cells(cells ...Cell) *GridGeometry {
	g := &GridGeometry{cells: make(map[Cell]struct{}, len(cells))}
	for _, c := range cells {
		g.cells[c] = struct{}{}
	}
	return g
}

// Without returns the cells of g that are not in o.
func (g *GridGeometry) Without(o *GridGeometry) *GridGeometry {
	out := &GridGeometry{cells: make(map[Cell]struct{})}
	for c := range g.cells {
		if !o.has(c) {
			out.cells[c] = struct{}{}
		}
	}
	return out
}

func (g *GridGeometry) IsEmpty() bool { return g == nil || len(g.cells) == 0 }

// Len returns the number of cells, which is also the area in km².
func (g *GridGeometry) Len() int {
	if g == nil {
		return 0
	}
	return len(g.cells)
}

func (g *GridGeometry) has(c Cell) bool {
	_, ok := g.cells[c]
	return ok
}

type bbox struct {
	minX, minY, maxX, maxY int
	ok                     bool
}

func (g *GridGeometry) bounds() bbox {
	var b bbox
	for c := range g.cells {
		if !b.ok {
			b = bbox{c.X, c.Y, c.X, c.Y, true}
			continue
		}
		if c.X < b.minX {
			b.minX = c.X
		}
		if c.Y < b.minY {
			b.minY = c.Y
		}
		if c.X > b.maxX {
			b.maxX = c.X
		}
		if c.Y > b.maxY {
			b.maxY = c.Y
		}
	}
	return b
}

func (b bbox) intersects(o bbox) bool {
	return b.ok && o.ok && b.minX <= o.maxX && o.minX <= b.maxX && b.minY <= o.maxY && o.minY <= b.maxY
}

// GridImage is a raster on the same grid. A nil mask covers every cell.
type GridImage struct {
	factor float64
	mask   *GridGeometry
	bands  []string
}

func (i *GridImage) Bands() []string { return i.bands }

func (i *GridImage) value(c Cell) float64 {
	if i.mask != nil && !i.mask.has(c) {
		return 0
	}
	return i.factor
}

// Feature builds a feature on the grid.
func Feature(id string, g *GridGeometry, props map[string]any) geo.Feature {
	return geo.Feature{ID: id, Geometry: g, Properties: props}
}

// Collection builds a collection from features.
func Collection(features ...geo.Feature) *geo.FeatureCollection {
	return &geo.FeatureCollection{Features: features}
}

// GridEngine is an in-memory geo.Engine over GridGeometry. Collections and
// masks are registered by path; every method call is counted.
type GridEngine struct {
	mu          sync.RWMutex
	collections map[string]*geo.FeatureCollection
	masks       map[string]*GridGeometry
	calls       map[string]int
	// FailOn makes the named method return an error.
	FailOn map[string]error
}

// NewGridEngine returns an empty engine.
func NewGridEngine() *GridEngine {
	return &GridEngine{
		collections: make(map[string]*geo.FeatureCollection),
		masks:       make(map[string]*GridGeometry),
		calls:       make(map[string]int),
		FailOn:      make(map[string]error),
	}
}

// AddCollection registers fc under path.
func (e *GridEngine) AddCollection(path string, fc *geo.FeatureCollection) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.collections[path] = fc
}

// AddMask registers a mask image under path.
func (e *GridEngine) AddMask(path string, mask *GridGeometry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.masks[path] = mask
}

// Calls returns how often method was invoked.
func (e *GridEngine) Calls(method string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.calls[method]
}

func (e *GridEngine) enter(method string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls[method]++
	return e.FailOn[method]
}

func asGrid(g geo.Geometry) (*GridGeometry, error) {
	if g == nil {
		return &GridGeometry{cells: map[Cell]struct{}{}}, nil
	}
	gg, ok := g.(*GridGeometry)
	if !ok {
		return nil, errors.New(errors.ErrCodeGeometry, fmt.Sprintf("unsupported geometry %T", g))
	}
	if gg == nil {
		return &GridGeometry{cells: map[Cell]struct{}{}}, nil
	}
	return gg, nil
}

func (e *GridEngine) LoadFeatureCollection(_ context.Context, path string) (*geo.FeatureCollection, error) {
	if err := e.enter("LoadFeatureCollection"); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	fc, ok := e.collections[path]
	if !ok {
		return nil, errors.New(errors.ErrCodeDatasetLoad, "no collection at "+path)
	}
	return fc, nil
}

func (e *GridEngine) LoadImage(_ context.Context, path string) (geo.Image, error) {
	if err := e.enter("LoadImage"); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.masks[path]
	if !ok {
		return nil, errors.New(errors.ErrCodeDatasetLoad, "no image at "+path)
	}
	return &GridImage{factor: 1, mask: m, bands: []string{"mask"}}, nil
}

func (e *GridEngine) Exists(_ context.Context, path string) (bool, error) {
	if err := e.enter("Exists"); err != nil {
		return false, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, fc := e.collections[path]
	_, img := e.masks[path]
	return fc || img, nil
}

func (e *GridEngine) Intersect(_ context.Context, a, b geo.Geometry, _ geo.ErrorMargin) (geo.Geometry, error) {
	if err := e.enter("Intersect"); err != nil {
		return nil, err
	}
	ga, err := asGrid(a)
	if err != nil {
		return nil, err
	}
	gb, err := asGrid(b)
	if err != nil {
		return nil, err
	}
	out := &GridGeometry{cells: make(map[Cell]struct{})}
	for c := range ga.cells {
		if gb.has(c) {
			out.cells[c] = struct{}{}
		}
	}
	return out, nil
}

func (e *GridEngine) Union(_ context.Context, geoms []geo.Geometry, _ geo.ErrorMargin) (geo.Geometry, error) {
	if err := e.enter("Union"); err != nil {
		return nil, err
	}
	out := &GridGeometry{cells: make(map[Cell]struct{})}
	for _, g := range geoms {
		gg, err := asGrid(g)
		if err != nil {
			return nil, err
		}
		for c := range gg.cells {
			out.cells[c] = struct{}{}
		}
	}
	return out, nil
}

func (e *GridEngine) Difference(_ context.Context, a, b geo.Geometry, _ geo.ErrorMargin) (geo.Geometry, error) {
	if err := e.enter("Difference"); err != nil {
		return nil, err
	}
	ga, err := asGrid(a)
	if err != nil {
		return nil, err
	}
	gb, err := asGrid(b)
	if err != nil {
		return nil, err
	}
	out := &GridGeometry{cells: make(map[Cell]struct{})}
	for c := range ga.cells {
		if !gb.has(c) {
			out.cells[c] = struct{}{}
		}
	}
	return out, nil
}

func (e *GridEngine) Area(_ context.Context, g geo.Geometry, _ geo.ErrorMargin) (float64, error) {
	if err := e.enter("Area"); err != nil {
		return 0, err
	}
	gg, err := asGrid(g)
	if err != nil {
		return 0, err
	}
	return float64(gg.Len()) * CellArea, nil
}

func (e *GridEngine) FilterBounds(_ context.Context, fc *geo.FeatureCollection, g geo.Geometry) (*geo.FeatureCollection, error) {
	if err := e.enter("FilterBounds"); err != nil {
		return nil, err
	}
	gg, err := asGrid(g)
	if err != nil {
		return nil, err
	}
	box := gg.bounds()
	out := &geo.FeatureCollection{}
	if fc == nil {
		return out, nil
	}
	for _, f := range fc.Features {
		fg, err := asGrid(f.Geometry)
		if err != nil {
			return nil, err
		}
		if fg.bounds().intersects(box) {
			out.Features = append(out.Features, f)
		}
	}
	return out, nil
}

func (e *GridEngine) AggregateHistogram(_ context.Context, fc *geo.FeatureCollection, field string) (map[string]int, error) {
	if err := e.enter("AggregateHistogram"); err != nil {
		return nil, err
	}
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

func (e *GridEngine) PixelArea(_ context.Context) (geo.Image, error) {
	if err := e.enter("PixelArea"); err != nil {
		return nil, err
	}
	return &GridImage{factor: CellArea, bands: []string{geo.BandArea}}, nil
}

// Multiply supports a pixel-area image times a mask, which is all the
// pipeline needs.
func (e *GridEngine) Multiply(_ context.Context, a, b geo.Image) (geo.Image, error) {
	if err := e.enter("Multiply"); err != nil {
		return nil, err
	}
	ia, okA := a.(*GridImage)
	ib, okB := b.(*GridImage)
	if !okA || !okB {
		return nil, errors.New(errors.ErrCodeGeometry, "unsupported image")
	}
	if ia.mask != nil && ib.mask != nil {
		return nil, errors.New(errors.ErrCodeGeometry, "cannot multiply two masks")
	}
	mask := ia.mask
	if mask == nil {
		mask = ib.mask
	}
	return &GridImage{factor: ia.factor * ib.factor, mask: mask, bands: ia.bands}, nil
}

// ReduceRegion treats a scale of 1000 m as one pixel per cell; finer scales
// multiply the pixel count accordingly.
func (e *GridEngine) ReduceRegion(_ context.Context, img geo.Image, g geo.Geometry, scale float64, maxPixels int64) (map[string]float64, error) {
	if err := e.enter("ReduceRegion"); err != nil {
		return nil, err
	}
	gi, ok := img.(*GridImage)
	if !ok {
		return nil, errors.New(errors.ErrCodeGeometry, "unsupported image")
	}
	gg, err := asGrid(g)
	if err != nil {
		return nil, err
	}
	perCell := (cellSide / scale) * (cellSide / scale)
	if pixels := float64(gg.Len()) * perCell; pixels > float64(maxPixels) {
		return nil, errors.Newf(errors.ErrCodeRemoteLimitExceeded, "too many pixels: %.0f > %d", pixels, maxPixels)
	}
	var sum float64
	for c := range gg.cells {
		sum += gi.value(c)
	}
	out := make(map[string]float64, len(gi.bands))
	for _, b := range gi.bands {
		out[b] = sum
	}
	return out, nil
}

func (e *GridEngine) Footprint(_ context.Context, img geo.Image) (geo.Geometry, error) {
	if err := e.enter("Footprint"); err != nil {
		return nil, err
	}
	gi, ok := img.(*GridImage)
	if !ok || gi.mask == nil {
		return nil, errors.New(errors.ErrCodeGeometry, "image has no footprint")
	}
	return gi.mask, nil
}

var _ geo.Engine = (*GridEngine)(nil)

//Personal.AI order the ending
