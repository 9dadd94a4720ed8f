// Package stats computes the hierarchical area statistics of landscape
// polygons: rounded areas, histogram-driven sub-feature enumeration, and the
// landscape × region × biome × protected-area aggregation tree.
package stats

import (
	"context"
	"fmt"
	"math"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/geo"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// Strategy selects how areas are integrated.
type Strategy string

const (
	// StrategyRaster sums a per-pixel area image over the geometry.
	StrategyRaster Strategy = "raster"
	// StrategyVector measures the geometry in an equal-area projection.
	StrategyVector Strategy = "vector"
)

const squareMetersToKm2 = 0.000001

// AreaOptions parameterize an AreaCalculator.
type AreaOptions struct {
	Strategy    Strategy
	Precision   int
	Scale       float64
	MaxPixels   int64
	ErrorMargin geo.ErrorMargin
}

// AreaCalculator turns geometries into rounded areas in km².
type AreaCalculator struct {
	engine geo.Engine
	opts   AreaOptions
}

// NewAreaCalculator validates opts and returns a calculator.
func NewAreaCalculator(engine geo.Engine, opts AreaOptions) (*AreaCalculator, error) {
	switch opts.Strategy {
	case StrategyRaster:
		if opts.Scale <= 0 || opts.MaxPixels <= 0 {
			return nil, errors.InvalidParam("raster strategy needs a positive scale and pixel budget")
		}
	case StrategyVector:
		if opts.ErrorMargin <= 0 {
			return nil, errors.InvalidParam("vector strategy needs a positive error margin")
		}
	default:
		return nil, errors.InvalidParam(fmt.Sprintf("unknown area strategy %q", opts.Strategy))
	}
	if opts.Precision < 0 {
		return nil, errors.InvalidParam("precision must not be negative")
	}
	return &AreaCalculator{engine: engine, opts: opts}, nil
}

// Options returns the calculator's parameters.
func (c *AreaCalculator) Options() AreaOptions { return c.opts }

// Round rounds v half-up to precision decimal digits. Negative values, which
// only arise from numeric noise, become zero.
func Round(v float64, precision int) float64 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}

// RoundedArea returns the area of g in km², rounded to the configured
// precision.
func (c *AreaCalculator) RoundedArea(ctx context.Context, g geo.Geometry) (float64, error) {
	if g == nil || g.IsEmpty() {
		return 0, nil
	}
	var km2 float64
	switch c.opts.Strategy {
	case StrategyVector:
		m2, err := c.engine.Area(ctx, g, c.opts.ErrorMargin)
		if err != nil {
			return 0, errors.Wrap(err, errors.CodeUnknown, "vector area")
		}
		km2 = m2 * squareMetersToKm2
	default:
		img, err := c.engine.PixelArea(ctx)
		if err != nil {
			return 0, errors.Wrap(err, errors.CodeUnknown, "pixel area image")
		}
		v, err := c.reduce(ctx, img, g)
		if err != nil {
			return 0, err
		}
		km2 = v
	}
	return Round(km2, c.opts.Precision), nil
}

// RoundedMaskedArea integrates the pixel-area image multiplied by mask over
// g. It always uses the raster strategy.
func (c *AreaCalculator) RoundedMaskedArea(ctx context.Context, g geo.Geometry, mask geo.Image) (float64, error) {
	if g == nil || g.IsEmpty() {
		return 0, nil
	}
	pixels, err := c.engine.PixelArea(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeUnknown, "pixel area image")
	}
	img := pixels
	if mask != nil {
		if img, err = c.engine.Multiply(ctx, pixels, mask); err != nil {
			return 0, errors.Wrap(err, errors.CodeUnknown, "mask pixel area")
		}
	}
	km2, err := c.reduce(ctx, img, g)
	if err != nil {
		return 0, err
	}
	return Round(km2, c.opts.Precision), nil
}

func (c *AreaCalculator) reduce(ctx context.Context, img geo.Image, g geo.Geometry) (float64, error) {
	scale, maxPixels := c.opts.Scale, c.opts.MaxPixels
	if scale <= 0 {
		scale = 30
	}
	if maxPixels <= 0 {
		maxPixels = math.MaxInt64
	}
	sums, err := c.engine.ReduceRegion(ctx, img, g, scale, maxPixels)
	if err != nil {
		// Pixel-budget failures keep their code and are not retried.
		return 0, errors.Wrap(err, errors.CodeUnknown, "reduce pixel area")
	}
	return sums[geo.BandArea] * squareMetersToKm2, nil
}

//Personal.AI order the ending
