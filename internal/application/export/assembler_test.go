package export_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/export"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/stats"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/geo"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/landscape"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

func f64(v float64) *float64 { return &v }

func scenarioTree() []stats.LandscapeStats {
	return []stats.LandscapeStats{{
		Landscape: landscape.Landscape{
			Index: 0,
			ID:    "17",
			Name:  "Leuser-Ulu Masen",
			Class: "tier 1",
			Properties: map[string]any{
				"dissolved_poly_id": 17.0,
				"shared":            "landscape",
			},
		},
		TotalArea: 1000,
		Regions: []stats.RegionStats{{
			Code:    "C",
			Feature: geo.Feature{Properties: map[string]any{"iso_alpha2": "C", "shared": "region"}},
			Area:    1000,
			Biomes: []stats.BiomeStats{{
				ID:          7,
				Name:        "Tropical Forest",
				Protected:   300,
				Unprotected: 700,
				PAs:         []stats.SubFeatureArea{{ID: 555, Name: "Reserve A", Area: 300}},
			}},
			States: []stats.StateStats{{
				Code:    "C01",
				Name:    "North",
				Feature: geo.Feature{Properties: map[string]any{"ADM1_CODE": "C01"}},
				Area:    1000,
				Biomes: []stats.BiomeStats{{
					ID: 7, Name: "Tropical Forest", Protected: 300, Unprotected: 700,
					PAs: []stats.SubFeatureArea{{ID: 555, Name: "Reserve A", Area: 300}},
					KBA: f64(120), NonKBA: f64(880),
					KBAs: []stats.SubFeatureArea{{ID: 9, Name: "Site", Area: 120}},
				}},
			}},
		}},
	}}
}

func newAssembler(t *testing.T, overrides ...export.Schema) *export.Assembler {
	t.Helper()
	a, err := export.NewAssembler(overrides...)
	require.NoError(t, err)
	return a
}

func TestAssembler_CountryRecord(t *testing.T) {
	tbl, err := newAssembler(t).Table(export.GranularityCountry, landscape.KeySurvey, scenarioTree())
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())

	data, err := export.EncodeGeoJSON(tbl)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"geometry": null,
			"properties": {
				"lscountry": "C",
				"ls_total_area": 1000.0,
				"lscountry_area": 1000.0,
				"areas": [{
					"biome": {"biomeid": 7, "biomename": "Tropical Forest"},
					"protected": 300.0,
					"unprotected": 700.0,
					"pas": [{"paid": 555, "paname": "Reserve A", "paarea": 300.0}]
				}]
			}
		}]
	}`, string(data))
}

func TestAssembler_SpeciesCarriesNameAndClass(t *testing.T) {
	tbl, err := newAssembler(t).Table(export.GranularityCountry, landscape.KeySpecies, scenarioTree())
	require.NoError(t, err)
	row := tbl.Rows[0]
	assert.Equal(t, "Leuser-Ulu Masen", row["lsname"])
	assert.Equal(t, "tier 1", row["lsclass"])

	tbl, err = newAssembler(t).Table(export.GranularityCountry, landscape.KeyFragment, scenarioTree())
	require.NoError(t, err)
	assert.NotContains(t, tbl.Rows[0], "lsname")
	assert.NotContains(t, tbl.Rows[0], "lsclass")
}

func TestAssembler_StateRecordWithKBAs(t *testing.T) {
	tbl, err := newAssembler(t).Table(export.GranularityState, landscape.KeySurvey, scenarioTree())
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())

	row := tbl.Rows[0]
	assert.Equal(t, "C", row["lscountry"])
	assert.Equal(t, "C01", row["lsstate"])
	assert.Equal(t, "North", row["lsstatename"])
	assert.Equal(t, 1000.0, row["lsstate_area"])

	areas := row["areas"].([]map[string]any)
	require.Len(t, areas, 1)
	assert.Equal(t, 120.0, areas[0]["kba"])
	assert.Equal(t, 880.0, areas[0]["nonkba"])
	assert.Equal(t, []map[string]any{{"kbaid": int64(9), "kbaname": "Site", "kbaarea": 120.0}}, areas[0]["kbas"])
}

func TestAssembler_LandscapeRecord(t *testing.T) {
	tree := scenarioTree()
	tree[0].Regions = append(tree[0].Regions,
		stats.RegionStats{Code: "D", Area: 1},
		stats.RegionStats{Code: "C", Area: 2},
	)

	tbl, err := newAssembler(t).Table(export.GranularityLandscape, landscape.KeyRestoration, tree)
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	row := tbl.Rows[0]
	assert.Equal(t, "17", row["lsid"])
	assert.Equal(t, "Leuser-Ulu Masen", row["lsname"])
	assert.Equal(t, 1000.0, row["ls_total_area"])
	assert.Equal(t, []string{"C", "D"}, row["lscountries"])
}

func TestAssembler_LandscapePropertiesWinOnMerge(t *testing.T) {
	schema := export.DefaultSchema(export.GranularityCountry)
	schema.Carry = []string{"shared", "iso_alpha2", "dissolved_poly_id", "absent"}

	tbl, err := newAssembler(t, schema).Table(export.GranularityCountry, landscape.KeySurvey, scenarioTree())
	require.NoError(t, err)
	row := tbl.Rows[0]
	assert.Equal(t, "landscape", row["shared"])
	assert.Equal(t, "C", row["iso_alpha2"])
	assert.Equal(t, 17.0, row["dissolved_poly_id"])
	assert.NotContains(t, row, "absent")
}

func TestAssembler_RenamedColumns(t *testing.T) {
	schema := export.Schema{
		Granularity: export.GranularityCountry,
		Columns: []export.Column{
			{Selector: export.SelCountry, Key: "iso"},
			{Selector: export.SelCountryArea, Key: "area_km2"},
		},
	}

	tbl, err := newAssembler(t, schema).Table(export.GranularityCountry, landscape.KeySurvey, scenarioTree())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"iso": "C", "area_km2": 1000.0}, tbl.Rows[0])
}

func TestAssembler_EmptyTree(t *testing.T) {
	tbl, err := newAssembler(t).Table(export.GranularityCountry, landscape.KeySurvey, nil)
	require.NoError(t, err)
	assert.NotNil(t, tbl.Rows)
	assert.Zero(t, tbl.Len())
}

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name   string
		schema export.Schema
	}{
		{"unknown granularity", export.Schema{Granularity: "planet", Columns: []export.Column{{Selector: export.SelCountry, Key: "c"}}}},
		{"no columns", export.Schema{Granularity: export.GranularityCountry}},
		{"selector unavailable", export.Schema{Granularity: export.GranularityCountry, Columns: []export.Column{{Selector: export.SelState, Key: "s"}}}},
		{"missing key", export.Schema{Granularity: export.GranularityCountry, Columns: []export.Column{{Selector: export.SelCountry}}}},
		{"duplicate key", export.Schema{Granularity: export.GranularityCountry, Columns: []export.Column{
			{Selector: export.SelCountry, Key: "k"}, {Selector: export.SelCountryArea, Key: "k"},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.schema.Validate())
			_, err := export.NewAssembler(tt.schema)
			assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
		})
	}

	for _, g := range []export.Granularity{export.GranularityCountry, export.GranularityState, export.GranularityLandscape} {
		assert.NoError(t, export.DefaultSchema(g).Validate())
	}
}

func TestParseGranularity(t *testing.T) {
	g, err := export.ParseGranularity("state")
	require.NoError(t, err)
	assert.Equal(t, export.GranularityState, g)

	_, err = export.ParseGranularity("biome")
	assert.Error(t, err)
}

func TestHistoricalRangeTable(t *testing.T) {
	tbl := export.HistoricalRangeTable([]stats.CountryArea{{Code: "IN", Area: 24}, {Code: "NP", Area: 12.5}})
	assert.Equal(t, []map[string]any{
		{"lscountry": "IN", "lscountry_area": 24.0},
		{"lscountry": "NP", "lscountry_area": 12.5},
	}, tbl.Rows)
}

//Personal.AI order the ending
