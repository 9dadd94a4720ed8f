package stats

import (
	"context"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/geo"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/landscape"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// CountryArea is the area of a mask inside one country.
type CountryArea struct {
	Code string
	Area float64
}

// HistoricalRange measures the historical-range mask inside every region it
// touches. Regions sharing a code are reported once with their areas added.
// The result follows the order regions first appear in.
func HistoricalRange(ctx context.Context, engine geo.Engine, area *AreaCalculator, regions *geo.FeatureCollection, mask geo.Image, rules landscape.Rules) ([]CountryArea, error) {
	footprint, err := engine.Footprint(ctx, mask)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGeometry, "historical range footprint")
	}
	candidates, err := engine.FilterBounds(ctx, regions, footprint)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGeometry, "filter regions to historical range")
	}

	out := []CountryArea{}
	index := map[string]int{}
	for _, r := range candidates.Features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := area.RoundedMaskedArea(ctx, r.Geometry, mask)
		if err != nil {
			return nil, err
		}
		if a == 0 {
			continue
		}
		code := rules.RegionCode(r)
		if i, ok := index[code]; ok {
			out[i].Area = Round(out[i].Area+a, area.Options().Precision)
			continue
		}
		index[code] = len(out)
		out = append(out, CountryArea{Code: code, Area: a})
	}
	return out, nil
}

//Personal.AI order the ending
