// Package geoengine is a self-contained implementation of geo.Engine on S2
// cell unions. Shapes are approximated by cell coverings, which makes every
// boolean operation exact on the approximation and areas reproducible.
package geoengine

import (
	"github.com/golang/geo/s2"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/geo"
)

// EarthRadiusMeters is the mean Earth radius used to scale steradians.
const EarthRadiusMeters = 6371008.8

// Geometry is a normalized cell union with its cached bounding rectangle.
type Geometry struct {
	cells s2.CellUnion
	bound s2.Rect
}

func newGeometry(cu s2.CellUnion) *Geometry {
	cu.Normalize()
	return &Geometry{cells: cu, bound: cu.RectBound()}
}

// IsEmpty implements geo.Geometry.
func (g *Geometry) IsEmpty() bool { return g == nil || len(g.cells) == 0 }

// Cells returns the underlying covering.
func (g *Geometry) Cells() s2.CellUnion {
	if g == nil {
		return nil
	}
	return g.cells
}

// AreaSquareMeters is the exact area of the covering.
func (g *Geometry) AreaSquareMeters() float64 {
	if g.IsEmpty() {
		return 0
	}
	return g.cells.ExactArea() * EarthRadiusMeters * EarthRadiusMeters
}

func fullSphere() *Geometry {
	cu := make(s2.CellUnion, 0, 6)
	for face := 0; face < 6; face++ {
		cu = append(cu, s2.CellIDFromFace(face))
	}
	return newGeometry(cu)
}

// ─────────────────────────────────────────────────────────────────────────────
// Images
// ─────────────────────────────────────────────────────────────────────────────

// Image is a constant-valued raster over a footprint. A pixel-area image
// covers the whole sphere; a mask covers the union of its polygons.
type Image struct {
	footprint *Geometry
	pixelArea bool
	bands     []string
}

// Bands implements geo.Image.
func (i *Image) Bands() []string { return i.bands }

func asGeometry(g geo.Geometry) (*Geometry, error) {
	if g == nil {
		return nil, nil
	}
	sg, ok := g.(*Geometry)
	if !ok {
		return nil, errForeign("geometry", g)
	}
	return sg, nil
}

func asImage(img geo.Image) (*Image, error) {
	si, ok := img.(*Image)
	if !ok || si == nil {
		return nil, errForeign("image", img)
	}
	return si, nil
}

//Personal.AI order the ending
