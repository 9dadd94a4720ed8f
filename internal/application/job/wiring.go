package job

import (
	"sort"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/export"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/stats"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/config"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/geo"
	jobdomain "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/types/common"
)

// AreaOptionsFromConfig maps the area section onto calculator options.
func AreaOptionsFromConfig(cfg config.AreaConfig) stats.AreaOptions {
	return stats.AreaOptions{
		Strategy:    stats.Strategy(cfg.Strategy),
		Precision:   cfg.DecimalPlaces(),
		Scale:       cfg.Scale,
		MaxPixels:   cfg.MaxPixels,
		ErrorMargin: geo.ErrorMargin(cfg.ErrorMargin),
	}
}

// RetryPolicyFromConfig maps the poll section onto a retry policy.
func RetryPolicyFromConfig(cfg config.PollConfig) jobdomain.RetryPolicy {
	return jobdomain.RetryPolicy{
		Interval:    cfg.Interval,
		MaxInterval: cfg.MaxInterval,
		Multiplier:  cfg.Multiplier,
		MaxAttempts: cfg.MaxAttempts,
	}
}

// RunConfigFromConfig builds the run of taskDate from the task section.
// Command-line overrides are applied to cfg before calling it.
func RunConfigFromConfig(cfg *config.Config, taskDate common.TaskDate) jobdomain.RunConfig {
	return jobdomain.RunConfig{
		Species:   cfg.Task.Species,
		Scenario:  cfg.Task.Scenario,
		TaskDate:  taskDate,
		Overwrite: cfg.Task.Overwrite,
		Variant:   cfg.Task.Variant,
		Bucket:    cfg.Task.Bucket,
		RootDir:   cfg.Task.RootDir,
	}
}

// SchemasFromConfig returns the default schema of every granularity that has
// carried attributes configured.
func SchemasFromConfig(cfg config.ExportConfig) ([]export.Schema, error) {
	keys := make([]string, 0, len(cfg.Carry))
	for g := range cfg.Carry {
		keys = append(keys, g)
	}
	sort.Strings(keys)

	var out []export.Schema
	for _, key := range keys {
		g, err := export.ParseGranularity(key)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid export.carry")
		}
		s := export.DefaultSchema(g)
		s.Carry = append([]string(nil), cfg.Carry[key]...)
		out = append(out, s)
	}
	return out, nil
}

// NewExecutorFromConfig wires the executor used by both the in-process
// registry and the distributed worker.
func NewExecutorFromConfig(cfg *config.Config, engine geo.Engine, sink *export.Sink, logger logging.Logger) (*StatsExecutor, error) {
	area, err := stats.NewAreaCalculator(engine, AreaOptionsFromConfig(cfg.Area))
	if err != nil {
		return nil, err
	}
	schemas, err := SchemasFromConfig(cfg.Export)
	if err != nil {
		return nil, err
	}
	assembler, err := export.NewAssembler(schemas...)
	if err != nil {
		return nil, err
	}
	return NewStatsExecutor(
		engine,
		stats.NewLayerLoader(engine, logger),
		stats.NewAggregator(engine, area, cfg.Executor.Workers, logger),
		area,
		assembler,
		sink,
		logger,
	), nil
}

//Personal.AI order the ending
