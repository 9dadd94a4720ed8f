package job

import (
	"context"
	"time"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/export"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/stats"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/geo"
	jobdomain "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/landscape"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// StatsExecutor runs work items: it aggregates one landscape collection and
// exports its tables, or measures the historical range.
type StatsExecutor struct {
	engine     geo.Engine
	loader     *stats.LayerLoader
	aggregator *stats.Aggregator
	area       *stats.AreaCalculator
	assembler  *export.Assembler
	sink       *export.Sink
	logger     logging.Logger

	lockRetries int
	lockBackoff time.Duration
}

const (
	defaultLockRetries = 5
	defaultLockBackoff = 2 * time.Second
	maxLockBackoff     = 30 * time.Second
)

// ExecutorOption configures a StatsExecutor.
type ExecutorOption func(*StatsExecutor)

// WithLockRetry sets how many times an export whose target is locked by
// another worker is retried, and the first wait between tries.
func WithLockRetry(retries int, backoff time.Duration) ExecutorOption {
	return func(e *StatsExecutor) {
		e.lockRetries = retries
		e.lockBackoff = backoff
	}
}

// NewStatsExecutor wires an executor. The loader is shared so reference
// layers are read once per process.
func NewStatsExecutor(engine geo.Engine, loader *stats.LayerLoader, aggregator *stats.Aggregator, area *stats.AreaCalculator, assembler *export.Assembler, sink *export.Sink, logger logging.Logger, opts ...ExecutorOption) *StatsExecutor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	e := &StatsExecutor{
		engine:     engine,
		loader:     loader,
		aggregator: aggregator,
		area:       area,
		assembler:  assembler,
		sink:       sink,
		logger:     logger.Named("executor"),

		lockRetries: defaultLockRetries,
		lockBackoff: defaultLockBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute implements jobdomain.Executor. It returns the object keys written.
func (e *StatsExecutor) Execute(ctx context.Context, item jobdomain.WorkItem) ([]string, error) {
	start := time.Now()
	var (
		outputs []string
		err     error
	)
	switch item.Kind {
	case jobdomain.KindLandscapeStats:
		outputs, err = e.landscapeStats(ctx, item)
	case jobdomain.KindHistoricalRange:
		outputs, err = e.historicalRange(ctx, item)
	default:
		err = errors.InvalidParam("unknown work kind " + string(item.Kind))
	}
	if err != nil {
		return nil, err
	}
	e.logger.Info("work item done",
		logging.String("job_id", item.ID),
		logging.String("kind", string(item.Kind)),
		logging.String("landscape_key", item.LandscapeKey),
		logging.Int("outputs", len(outputs)),
		logging.Duration("elapsed", time.Since(start)))
	return outputs, nil
}

func (e *StatsExecutor) landscapeStats(ctx context.Context, item jobdomain.WorkItem) ([]string, error) {
	key := item.LandscapeKey
	if err := landscape.ValidateKey(key); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePrecondition, "work item")
	}
	path, ok := item.Inputs[key]
	if !ok {
		return nil, errors.Precondition("work item has no input for " + key)
	}

	grans := make([]export.Granularity, 0, len(item.Granularities))
	withStates := false
	for _, s := range item.Granularities {
		g, err := export.ParseGranularity(s)
		if err != nil {
			return nil, err
		}
		withStates = withStates || g == export.GranularityState
		grans = append(grans, g)
	}
	if len(grans) == 0 {
		grans = []export.Granularity{export.GranularityCountry}
	}

	rules := landscape.RulesForVariant(item.Config.Variant)
	layers, err := e.loader.Load(ctx, stats.LayerRequest{
		Inputs:     item.Inputs,
		Rules:      rules,
		TaskYear:   item.Config.TaskDate.Year(),
		WithStates: withStates,
	})
	if err != nil {
		return nil, err
	}
	fc, err := e.engine.LoadFeatureCollection(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeDatasetLoad, "load %s landscapes", key)
	}

	tree, err := e.aggregator.Aggregate(ctx, stats.AggregationContext{
		LandscapeKey: key,
		Layers:       layers,
		Rules:        rules,
		Margin:       e.area.Options().ErrorMargin,
	}, fc)
	if err != nil {
		return nil, err
	}

	spec := pathSpec(item.Config)
	var outputs []string
	for _, g := range grans {
		if g == export.GranularityState && layers.States == nil {
			e.logger.Warn("states layer unavailable, state table not written", logging.String("landscape_key", key))
			continue
		}
		table, err := e.assembler.Table(g, key, tree)
		if err != nil {
			return nil, err
		}
		res, err := e.sink.Export(ctx, table, item.Config.Bucket, export.TablePath(spec, key, g), export.Overwrite)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, res.Key)
	}
	return outputs, nil
}

func (e *StatsExecutor) historicalRange(ctx context.Context, item jobdomain.WorkItem) ([]string, error) {
	maskPath, ok := item.Inputs[landscape.InputHistoricalRange]
	if !ok {
		return nil, errors.Precondition("work item has no historical range input")
	}
	countries, ok := item.Inputs[landscape.InputCountries]
	if !ok {
		return nil, errors.Precondition("work item has no countries input")
	}

	target := export.HistoricalRangePath(item.Config.Species)
	exists, err := e.sink.Exists(ctx, item.Config.Bucket, target)
	if err != nil {
		return nil, err
	}
	if exists {
		e.logger.Info("historical range already exported", logging.String("species", item.Config.Species))
		return nil, nil
	}

	regions, err := e.loader.Collection(ctx, countries)
	if err != nil {
		return nil, err
	}
	mask, err := e.engine.LoadImage(ctx, maskPath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeDatasetLoad, "load %s", maskPath)
	}
	rows, err := stats.HistoricalRange(ctx, e.engine, e.area, regions, mask, landscape.RulesForVariant(item.Config.Variant))
	if err != nil {
		return nil, err
	}

	res, err := e.exportShared(ctx, export.HistoricalRangeTable(rows), item.Config.Bucket, target)
	if err != nil {
		return nil, err
	}
	if res.Skipped {
		return nil, nil
	}
	return []string{res.Key}, nil
}

// exportShared writes a table several work items may race for. While another
// worker holds the target's lock the write is retried with growing waits; a
// retry after that worker finished sees the target and skips.
func (e *StatsExecutor) exportShared(ctx context.Context, t export.Table, bucket, target string) (export.Result, error) {
	backoff := e.lockBackoff
	for attempt := 0; ; attempt++ {
		res, err := e.sink.Export(ctx, t, bucket, target, export.SkipIfExists)
		if err == nil || !errors.IsCode(err, errors.CodeConflict) || attempt >= e.lockRetries {
			return res, err
		}
		e.logger.Info("export target locked, retrying",
			logging.String("key", res.Key),
			logging.Int("attempt", attempt+1),
			logging.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxLockBackoff {
			backoff = maxLockBackoff
		}
	}
}

var _ jobdomain.Executor = (*StatsExecutor)(nil)

//Personal.AI order the ending
