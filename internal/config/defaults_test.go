package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultRootDir, cfg.Task.RootDir)
	assert.Equal(t, "scl-pipeline", cfg.Task.Bucket)
	assert.Equal(t, "Panthera_tigris", cfg.Task.Species)
	assert.Equal(t, "canonical", cfg.Task.Scenario)
	assert.Equal(t, VariantCurrent, cfg.Task.Variant)
	assert.Equal(t, CurrentLandscapeKeys, cfg.Task.LandscapeKeys)
	assert.Equal(t, []string{"country"}, cfg.Task.Granularities)

	assert.Equal(t, "raster", cfg.Area.Strategy)
	assert.Equal(t, 1, cfg.Area.DecimalPlaces())
	assert.Equal(t, 30.0, cfg.Area.Scale)
	assert.Equal(t, 1.0, cfg.Area.ErrorMargin)
	assert.Equal(t, map[string][]string{"country": {"COUNTRY_NA"}}, cfg.Export.Carry)

	assert.Equal(t, 30*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 120, cfg.Poll.MaxAttempts)
	assert.Equal(t, "local", cfg.Executor.Mode)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	require.Contains(t, cfg.Inputs, "historical_range")
	assert.Equal(t, KindImage, cfg.Inputs["historical_range"].Kind)
	assert.True(t, cfg.Inputs["historical_range"].Static)
	assert.Equal(t, 10.0, cfg.Inputs["countries"].MaxAgeYears)
	assert.Equal(t, 5.0, cfg.Inputs["ecoregions"].MaxAgeYears)
	assert.InDelta(t, 1.0/365, cfg.Inputs["scl_species"].MaxAgeYears, 1e-12)
	assert.Equal(t, "{root}/{species}/{scenario}/scl_poly/scl_restoration", cfg.Inputs["scl_restoration"].Path)
	assert.False(t, cfg.Inputs["kbas"].Mandatory)
}

func TestApplyDefaults_Legacy(t *testing.T) {
	cfg := &Config{Task: TaskConfig{Variant: VariantLegacy}}
	ApplyDefaults(cfg)

	assert.Equal(t, LegacyLandscapeKeys, cfg.Task.LandscapeKeys)
	assert.Equal(t, 2, cfg.Area.DecimalPlaces())
	require.Contains(t, cfg.Inputs, "leuser")
	assert.NotContains(t, cfg.Inputs, "historical_range")
	assert.True(t, cfg.Inputs["scl_species"].Static)
	assert.Contains(t, cfg.Inputs["scl_species"].Path, "{taskdate}")
	assert.Equal(t, "USDOS/LSIB/2017", cfg.Inputs["countries"].Path)
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	three := 3
	cfg := &Config{
		Task: TaskConfig{Species: "Panthera_onca", LandscapeKeys: []string{"scl_species"}},
		Area: AreaConfig{Precision: &three, Strategy: "vector"},
		Inputs: map[string]InputConfig{
			"pas":    {Path: "custom/pas", MaxAgeYears: 2},
			"extras": {Path: "custom/extras", Kind: KindFeatureCollection, Static: true},
		},
	}
	ApplyDefaults(cfg)

	assert.Equal(t, "Panthera_onca", cfg.Task.Species)
	assert.Equal(t, []string{"scl_species"}, cfg.Task.LandscapeKeys)
	assert.Equal(t, 3, cfg.Area.DecimalPlaces())
	assert.Equal(t, "vector", cfg.Area.Strategy)

	pas := cfg.Inputs["pas"]
	assert.Equal(t, "custom/pas", pas.Path)
	assert.Equal(t, KindFeatureCollection, pas.Kind)
	assert.Equal(t, 2.0, pas.MaxAgeYears)
	// Mandatory is an explicit opt-in once the entry is overridden.
	assert.False(t, pas.Mandatory)

	assert.Contains(t, cfg.Inputs, "extras")
	assert.Contains(t, cfg.Inputs, "countries")
}

func TestApplyDefaults_ExplicitZeroPrecision(t *testing.T) {
	zero := 0
	cfg := &Config{Task: TaskConfig{Variant: VariantLegacy}, Area: AreaConfig{Precision: &zero}}
	ApplyDefaults(cfg)

	assert.Equal(t, 0, cfg.Area.DecimalPlaces())
	require.NoError(t, cfg.Validate())
}

func TestApplyDefaults_Nil(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

//Personal.AI order the ending
