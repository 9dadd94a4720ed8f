package geo

import "context"

// BandArea is the band produced by reducing a pixel-area image.
const BandArea = "area"

// Engine is the geometry and reduction capability the pipeline runs on. All
// areas are square meters on an equal-area basis.
type Engine interface {
	// LoadFeatureCollection reads the collection stored at path.
	LoadFeatureCollection(ctx context.Context, path string) (*FeatureCollection, error)
	// LoadImage reads the single-band mask image stored at path.
	LoadImage(ctx context.Context, path string) (Image, error)
	// Exists reports whether an asset is stored at path.
	Exists(ctx context.Context, path string) (bool, error)

	Intersect(ctx context.Context, a, b Geometry, margin ErrorMargin) (Geometry, error)
	Union(ctx context.Context, geoms []Geometry, margin ErrorMargin) (Geometry, error)
	// Difference returns a minus b.
	Difference(ctx context.Context, a, b Geometry, margin ErrorMargin) (Geometry, error)
	Area(ctx context.Context, g Geometry, margin ErrorMargin) (float64, error)

	// FilterBounds keeps the features whose bounding box intersects the
	// bounding box of g. It is a coarse pre-filter; no exact test is done.
	FilterBounds(ctx context.Context, fc *FeatureCollection, g Geometry) (*FeatureCollection, error)
	// AggregateHistogram counts features per distinct rendering of field.
	// Features without the field are not counted.
	AggregateHistogram(ctx context.Context, fc *FeatureCollection, field string) (map[string]int, error)

	// PixelArea returns an image whose pixels hold their own area in m².
	PixelArea(ctx context.Context) (Image, error)
	// Multiply combines two images pixel by pixel.
	Multiply(ctx context.Context, a, b Image) (Image, error)
	// ReduceRegion sums every band of img over g at the given pixel scale.
	// It fails with a remote-limit error when more than maxPixels pixels
	// would be read.
	ReduceRegion(ctx context.Context, img Image, g Geometry, scale float64, maxPixels int64) (map[string]float64, error)
	// Footprint returns the geometry covered by the non-zero pixels of img.
	Footprint(ctx context.Context, img Image) (Geometry, error)
}

//Personal.AI order the ending
