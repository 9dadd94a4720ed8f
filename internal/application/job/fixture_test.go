package job_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/export"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/stats"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/config"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/dataset"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/geo"
	jobdomain "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/landscape"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/testutil"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/types/common"
)

const (
	rootDir    = "projects/SCL/v1"
	bucket     = "scl-pipeline"
	species    = "Panthera_tigris"
	statesPath = "FAO/GAUL/2015/level1"
	rangePath  = rootDir + "/" + species + "/historical_range"
)

var taskDate = common.NewTaskDate(2024, time.January, 1)

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

type fixtureOpts struct {
	// stale landscape keys get a version older than their one-day maxage.
	stale []string
	// missing input keys are neither cataloged nor stored.
	missing []string
}

type fixture struct {
	engine   *testutil.GridEngine
	catalog  *testutil.MemCatalog
	store    *testutil.MemObjectStore
	logger   *testutil.MockLogger
	settings job.Settings
	sinkOpts []export.SinkOption
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// newFixture stores one 10×100 km landscape per key inside country C. Its
// single biome holds the designated protected area 555 (300 km²) and a
// proposed one that must be ignored.
func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()
	f := &fixture{
		engine:  testutil.NewGridEngine(),
		catalog: testutil.NewMemCatalog(),
		store:   testutil.NewMemObjectStore(),
		logger:  testutil.NewMockLogger(),
	}
	f.settings = job.Settings{
		LandscapeKeys: append([]string(nil), config.CurrentLandscapeKeys...),
		Granularities: []export.Granularity{export.GranularityCountry},
		Inputs:        config.DefaultInputs(config.VariantCurrent),
	}

	add := func(key string, when time.Time, fc *geo.FeatureCollection) {
		if contains(opts.missing, key) {
			return
		}
		family := dataset.ExpandPath(f.settings.Inputs[key].Path, job.PathVarsFor(runConfig(false)))
		f.engine.AddCollection(f.catalog.Add(family, when), fc)
	}

	add(landscape.InputCountries, date(2023, 6, 1), testutil.Collection(
		testutil.Feature("C", testutil.Rect(0, 0, 50, 200), map[string]any{
			landscape.FieldISO: "C", landscape.FieldCountryName: "Country C", landscape.FieldLandscapeName: "C name",
		}),
	))
	add(landscape.InputEcoregions, date(2020, 1, 1), testutil.Collection(
		testutil.Feature("", testutil.Rect(0, 0, 50, 200), map[string]any{
			landscape.FieldBiomeID: 7.0, landscape.FieldBiomeName: "Tropical Forest",
		}),
	))
	add(landscape.InputPAs, date(2023, 12, 1), testutil.Collection(
		testutil.Feature("", testutil.Rect(0, 0, 10, 30), map[string]any{
			landscape.FieldPAID: 555.0, landscape.FieldPAName: "Reserve A",
			landscape.FieldPAStatus: "Designated", landscape.FieldPAStatusYear: 2000.0,
		}),
		testutil.Feature("", testutil.Rect(0, 30, 10, 40), map[string]any{
			landscape.FieldPAID: 556.0, landscape.FieldPAName: "Planned",
			landscape.FieldPAStatus: landscape.StatusProposed, landscape.FieldPAStatusYear: 2000.0,
		}),
	))
	add(landscape.InputKBAs, date(2023, 12, 1), testutil.Collection(
		testutil.Feature("", testutil.Rect(0, 0, 10, 12), map[string]any{
			landscape.FieldKBAID: 9.0, landscape.FieldKBAName: "Site",
		}),
	))

	for _, key := range config.CurrentLandscapeKeys {
		when := taskDate.Time()
		if contains(opts.stale, key) {
			when = date(2023, 12, 1)
		}
		add(key, when, testutil.Collection(testutil.Feature("", testutil.Rect(0, 0, 10, 100), map[string]any{
			landscape.FieldLandscapeID:    17.0,
			landscape.FieldLandscapeName:  "Leuser",
			landscape.FieldLandscapeClass: "tier 1",
		})))
	}

	if !contains(opts.missing, landscape.InputStates) {
		f.engine.AddCollection(statesPath, testutil.Collection(
			testutil.Feature("C01", testutil.Rect(0, 0, 50, 40), map[string]any{
				landscape.FieldStateCode: "C01", landscape.FieldStateName: "North",
			}),
			testutil.Feature("C02", testutil.Rect(0, 40, 50, 200), map[string]any{
				landscape.FieldStateCode: "C02", landscape.FieldStateName: "South",
			}),
		))
	}
	if !contains(opts.missing, landscape.InputHistoricalRange) {
		f.engine.AddMask(rangePath, testutil.Rect(0, 0, 20, 100))
	}
	return f
}

func runConfig(overwrite bool) jobdomain.RunConfig {
	return jobdomain.RunConfig{
		Species:   species,
		Scenario:  "canonical",
		TaskDate:  taskDate,
		Overwrite: overwrite,
		Variant:   config.VariantCurrent,
		Bucket:    bucket,
		RootDir:   rootDir,
	}
}

func (f *fixture) newRun(t *testing.T, overwrite bool) *jobdomain.Run {
	t.Helper()
	run, err := jobdomain.NewRun(runConfig(overwrite))
	require.NoError(t, err)
	return run
}

func (f *fixture) sink() *export.Sink {
	return export.NewSink(f.store, f.logger, f.sinkOpts...)
}

func (f *fixture) task() *job.StatsTask {
	return job.NewStatsTask(dataset.NewResolver(f.catalog, f.logger), f.engine, f.sink(), f.settings, f.logger)
}

func (f *fixture) executor(t *testing.T, opts ...job.ExecutorOption) *job.StatsExecutor {
	t.Helper()
	area, err := stats.NewAreaCalculator(f.engine, stats.AreaOptions{
		Strategy:    stats.StrategyVector,
		Precision:   1,
		Scale:       1000,
		MaxPixels:   1_000_000_000,
		ErrorMargin: 1,
	})
	require.NoError(t, err)
	assembler, err := export.NewAssembler()
	require.NoError(t, err)
	return job.NewStatsExecutor(
		f.engine,
		stats.NewLayerLoader(f.engine, f.logger),
		stats.NewAggregator(f.engine, area, 2, f.logger),
		area,
		assembler,
		f.sink(),
		f.logger,
		opts...,
	)
}

// exported decodes the table stored at tablePath.
func (f *fixture) exported(t *testing.T, tablePath string) export.Table {
	t.Helper()
	data, ok := f.store.Object(bucket, export.ObjectKey(tablePath))
	require.True(t, ok, "nothing exported at %s", tablePath)
	tbl, err := export.DecodeGeoJSON(data)
	require.NoError(t, err)
	return tbl
}

func (f *fixture) markExported(t *testing.T, tablePath string) {
	t.Helper()
	require.NoError(t, f.store.Put(context.Background(), bucket, export.ObjectKey(tablePath), []byte(`{}`), "application/geo+json"))
}

func perRunPath(key string, g export.Granularity) string {
	return export.TablePath(export.PathSpec{Species: species, Scenario: "canonical", TaskDate: "2024-01-01"}, key, g)
}

//Personal.AI order the ending
