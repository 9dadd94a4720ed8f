package job

import (
	"context"
	"fmt"
	"time"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/export"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/config"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/dataset"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/geo"
	jobdomain "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/landscape"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// Settings are the run-independent parts of a statistics task.
type Settings struct {
	LandscapeKeys []string
	Granularities []export.Granularity
	Inputs        map[string]config.InputConfig
	// Scenarios restricts the accepted scenarios. Empty accepts any.
	Scenarios []string
}

// SettingsFromConfig extracts Settings from a validated configuration.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	s := Settings{
		LandscapeKeys: append([]string(nil), cfg.Task.LandscapeKeys...),
		Inputs:        cfg.Inputs,
		Scenarios:     cfg.Task.Scenarios,
	}
	for _, g := range cfg.Task.Granularities {
		parsed, err := export.ParseGranularity(g)
		if err != nil {
			return Settings{}, errors.Wrap(err, errors.ErrCodeValidation, "task granularities")
		}
		s.Granularities = append(s.Granularities, parsed)
	}
	return s, nil
}

// StatsTask computes and exports the statistics of one run. It is not
// reusable across runs.
type StatsTask struct {
	resolver *dataset.Resolver
	engine   geo.Engine
	sink     *export.Sink
	settings Settings
	logger   logging.Logger

	inputs map[string]string
	keys   []string
}

// NewStatsTask creates the task of a single run. The engine is only used to
// check that static inputs exist.
func NewStatsTask(resolver *dataset.Resolver, engine geo.Engine, sink *export.Sink, settings Settings, logger logging.Logger) *StatsTask {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if len(settings.Granularities) == 0 {
		settings.Granularities = []export.Granularity{export.GranularityCountry}
	}
	return &StatsTask{
		resolver: resolver,
		engine:   engine,
		sink:     sink,
		settings: settings,
		logger:   logger.Named("stats_task"),
	}
}

// CheckInputs resolves every input of the run. Mandatory inputs that cannot
// be resolved fail the run. A landscape key whose own input is missing or
// stale is skipped. Optional reference layers that cannot be resolved are
// left out of the computation.
func (t *StatsTask) CheckInputs(ctx context.Context, run *jobdomain.Run) error {
	cfg := run.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := t.checkScenario(cfg.Scenario); err != nil {
		return err
	}
	for _, key := range t.settings.LandscapeKeys {
		if err := landscape.ValidateKey(key); err != nil {
			return errors.Wrap(err, errors.ErrCodePrecondition, "invalid landscape key")
		}
	}

	specs, err := InputSpecs(t.settings.Inputs, PathVarsFor(cfg))
	if err != nil {
		return err
	}
	ref := cfg.TaskDate.Time()
	landscapeInputs := make(map[string]bool)
	for key := range specs {
		if landscape.ValidateKey(key) == nil {
			landscapeInputs[key] = true
		}
	}

	t.inputs = make(map[string]string)
	for _, key := range sortedSpecKeys(specs, landscapeInputs) {
		path, err := t.resolve(ctx, specs[key], ref)
		switch {
		case err == nil:
			t.inputs[key] = path
		case errors.IsSkippable(err):
			t.logger.Warn("optional input unavailable, continuing without it",
				logging.String("input", key), logging.Err(err))
		default:
			return err
		}
	}

	t.keys = t.keys[:0]
	for _, key := range t.settings.LandscapeKeys {
		spec, ok := specs[key]
		if !ok {
			return errors.Precondition(fmt.Sprintf("landscape key %s has no input declaration", key))
		}
		path, err := t.resolve(ctx, spec, ref)
		switch {
		case err == nil:
			t.inputs[key] = path
			t.keys = append(t.keys, key)
		case errors.IsSkippable(err):
			run.Skip(key, err)
		default:
			return err
		}
	}

	if cfg.Overwrite {
		return nil
	}
	return t.dropExported(ctx, run)
}

func (t *StatsTask) checkScenario(scenario string) error {
	if len(t.settings.Scenarios) == 0 {
		return nil
	}
	for _, s := range t.settings.Scenarios {
		if s == scenario {
			return nil
		}
	}
	return errors.Precondition(fmt.Sprintf("scenario %q is not one of %v", scenario, t.settings.Scenarios))
}

// resolve returns the asset path of spec. Static inputs are checked for
// existence, which the catalog cannot do for them.
func (t *StatsTask) resolve(ctx context.Context, spec dataset.InputSpec, ref time.Time) (string, error) {
	r, err := t.resolver.Resolve(ctx, spec, ref)
	if err != nil {
		return "", err
	}
	if !spec.Static {
		return r.Path, nil
	}
	ok, err := t.engine.Exists(ctx, r.Path)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeDatasetLoad, "stat %s", r.Path)
	}
	if ok {
		return r.Path, nil
	}
	if spec.Mandatory {
		return "", errors.Precondition(fmt.Sprintf("required input %s not found at %s", spec.Key, r.Path))
	}
	return "", errors.Newf(errors.ErrCodeInputUnavailable, "%s: nothing stored at %s", spec.Key, r.Path)
}

// dropExported removes the keys whose tables all exist. When that leaves
// nothing to do the run is skipped.
func (t *StatsTask) dropExported(ctx context.Context, run *jobdomain.Run) error {
	if len(t.keys) == 0 {
		return nil
	}
	spec := pathSpec(run.Config)
	remaining := t.keys[:0]
	for _, key := range t.keys {
		done := true
		for _, g := range t.settings.Granularities {
			ok, err := t.sink.Exists(ctx, run.Config.Bucket, export.TablePath(spec, key, g))
			if err != nil {
				return err
			}
			if !ok {
				done = false
				break
			}
		}
		if done {
			t.logger.Info("outputs already exported", logging.String("landscape_key", key))
			continue
		}
		remaining = append(remaining, key)
	}
	t.keys = remaining
	if len(t.keys) == 0 {
		return errors.New(errors.ErrCodeRunSkipped, "every output of the run already exists")
	}
	return nil
}

// Keys returns the landscape keys that will be computed.
func (t *StatsTask) Keys() []string { return append([]string(nil), t.keys...) }

// Calc submits one work item per landscape key, plus the historical range
// table when its mask is available.
func (t *StatsTask) Calc(ctx context.Context, run *jobdomain.Run, registry jobdomain.Registry) error {
	if t.inputs == nil {
		return errors.InvalidState("inputs have not been checked")
	}
	grans := make([]string, len(t.settings.Granularities))
	for i, g := range t.settings.Granularities {
		grans[i] = string(g)
	}

	for _, key := range t.keys {
		item := t.item(run, jobdomain.KindLandscapeStats)
		item.LandscapeKey = key
		item.Granularities = grans
		item.Inputs[key] = t.inputs[key]
		if err := t.submit(ctx, run, registry, item); err != nil {
			return err
		}
	}

	if _, ok := t.inputs[landscape.InputHistoricalRange]; ok && run.Config.Variant != config.VariantLegacy {
		if err := t.submit(ctx, run, registry, t.item(run, jobdomain.KindHistoricalRange)); err != nil {
			return err
		}
	}
	return nil
}

// item builds a work item carrying the reference inputs. Landscape inputs
// are added by the caller.
func (t *StatsTask) item(run *jobdomain.Run, kind jobdomain.WorkKind) jobdomain.WorkItem {
	inputs := make(map[string]string, len(t.inputs))
	for k, v := range t.inputs {
		if landscape.ValidateKey(k) != nil {
			inputs[k] = v
		}
	}
	return jobdomain.WorkItem{
		RunID:       run.ID,
		Kind:        kind,
		Config:      run.Config,
		Inputs:      inputs,
		SubmittedAt: time.Now().UTC(),
	}
}

func (t *StatsTask) submit(ctx context.Context, run *jobdomain.Run, registry jobdomain.Registry, item jobdomain.WorkItem) error {
	id, err := registry.Submit(ctx, item)
	if err != nil {
		return errors.Wrapf(err, errors.CodeUnknown, "submit %s %s", item.Kind, item.LandscapeKey)
	}
	run.AddJob(id)
	t.logger.Info("work submitted",
		logging.String("run_id", run.ID),
		logging.String("job_id", id),
		logging.String("kind", string(item.Kind)),
		logging.String("landscape_key", item.LandscapeKey))
	return nil
}

// Finalize logs the run summary.
func (t *StatsTask) Finalize(_ context.Context, run *jobdomain.Run) error {
	t.logger.Info("statistics exported",
		logging.String("run_id", run.ID),
		logging.String("species", run.Config.Species),
		logging.String("scenario", run.Config.Scenario),
		logging.String("taskdate", run.Config.TaskDate.String()),
		logging.Int("landscape_keys", len(t.keys)),
		logging.Int("skipped", len(run.Skipped)),
		logging.Int("jobs", len(run.JobIDs)))
	return nil
}

func pathSpec(cfg jobdomain.RunConfig) export.PathSpec {
	return export.PathSpec{
		Species:      cfg.Species,
		Scenario:     cfg.Scenario,
		TaskDate:     cfg.TaskDate.String(),
		OmitScenario: cfg.Variant == config.VariantLegacy,
	}
}

//Personal.AI order the ending
