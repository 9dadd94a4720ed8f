package stats_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/stats"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/landscape"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/testutil"
)

func TestHistoricalRange(t *testing.T) {
	e := testutil.NewGridEngine()
	e.AddMask("range", testutil.Rect(0, 0, 10, 4))
	mask, err := e.LoadImage(context.Background(), "range")
	require.NoError(t, err)

	regions := testutil.Collection(
		country("IN", testutil.Rect(0, 0, 6, 10)),
		country("NP", testutil.Rect(6, 0, 10, 2)),
		country("NP", testutil.Rect(6, 2, 10, 3)),
		// Overlaps the footprint's bounds but not a single masked pixel.
		country("BT", testutil.Rect(6, 3, 10, 10).Without(testutil.Rect(6, 3, 10, 4))),
		country("RU", testutil.Rect(50, 50, 60, 60)),
	)

	got, err := stats.HistoricalRange(context.Background(), e, rasterCalc(t, e, 30, 500_000_000_000), regions, mask, landscape.RulesForVariant("current"))
	require.NoError(t, err)
	assert.Equal(t, []stats.CountryArea{
		{Code: "IN", Area: 24},
		{Code: "NP", Area: 12},
	}, got)
}

//Personal.AI order the ending
