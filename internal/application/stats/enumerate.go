package stats

import (
	"context"
	"sort"
	"strconv"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/geo"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// Enumeration is the result of a histogram pass over a layer.
type Enumeration struct {
	// Candidates are the layer features whose bounds overlap the region.
	Candidates *geo.FeatureCollection
	// IDs are the distinct values of the id field among Candidates, in
	// ascending numeric order (lexical for non-numeric ids).
	IDs []string
	// Counts holds the histogram itself.
	Counts map[string]int
}

// Enumerate discovers which ids of layer are present within bounds by
// grouping on field, so the caller pays per-id resolution cost only for ids
// that actually occur.
func Enumerate(ctx context.Context, engine geo.Engine, layer *geo.FeatureCollection, bounds geo.Geometry, field string) (Enumeration, error) {
	if layer.Len() == 0 || bounds == nil || bounds.IsEmpty() {
		return Enumeration{Candidates: &geo.FeatureCollection{}, Counts: map[string]int{}}, nil
	}
	candidates, err := engine.FilterBounds(ctx, layer, bounds)
	if err != nil {
		return Enumeration{}, errors.Wrapf(err, errors.ErrCodeGeometry, "filter bounds for %s", field)
	}
	hist, err := engine.AggregateHistogram(ctx, candidates, field)
	if err != nil {
		return Enumeration{}, errors.Wrapf(err, errors.ErrCodeGeometry, "histogram of %s", field)
	}
	return Enumeration{Candidates: candidates, IDs: SortedKeys(hist), Counts: hist}, nil
}

// Select returns the candidates carrying id, in source order.
func (e Enumeration) Select(field, id string) *geo.FeatureCollection {
	return e.Candidates.Filter(geo.Equals(field, id))
}

// SortedKeys orders histogram keys numerically when both keys parse as
// numbers and lexically otherwise, giving a stable output order.
func SortedKeys(hist map[string]int) []string {
	keys := make([]string, 0, len(hist))
	for k := range hist {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.ParseFloat(keys[i], 64)
		b, errB := strconv.ParseFloat(keys[j], 64)
		switch {
		case errA == nil && errB == nil && a != b:
			return a < b
		case errA == nil && errB != nil:
			return true
		case errA != nil && errB == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

//Personal.AI order the ending
