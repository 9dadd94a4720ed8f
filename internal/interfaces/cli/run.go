package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/config"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/dataset"
	jobdomain "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	httpapi "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/interfaces/http"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/types/common"
)

type runOptions struct {
	species   string
	scenario  string
	taskDate  string
	overwrite bool
}

// RunSummary is the printed outcome of a run.
type RunSummary struct {
	ID       string                         `json:"id"`
	Species  string                         `json:"species"`
	Scenario string                         `json:"scenario"`
	TaskDate string                         `json:"taskdate"`
	Status   jobdomain.Status               `json:"status"`
	Jobs     int                            `json:"jobs"`
	Skipped  []jobdomain.SkippedComputation `json:"skipped"`
	Error    string                         `json:"error,omitempty"`
	Elapsed  string                         `json:"elapsed"`
}

func (s RunSummary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "run %s %s/%s %s: %s (%d jobs, %s)", s.ID, s.Species, s.Scenario, s.TaskDate, s.Status, s.Jobs, s.Elapsed)
	for _, sk := range s.Skipped {
		fmt.Fprintf(&sb, "\n  skipped %s [%s]: %s", sk.Key, sk.Code, sk.Reason)
	}
	if s.Error != "" {
		fmt.Fprintf(&sb, "\n  error: %s", s.Error)
	}
	return sb.String()
}

func (s RunSummary) TableHeaders() []string {
	return []string{"RUN", "TASKDATE", "STATUS", "JOBS", "SKIPPED"}
}

func (s RunSummary) TableRows() [][]string {
	keys := make([]string, 0, len(s.Skipped))
	for _, sk := range s.Skipped {
		keys = append(keys, sk.Key)
	}
	return [][]string{{s.ID, s.TaskDate, string(s.Status), strconv.Itoa(s.Jobs), strings.Join(keys, ",")}}
}

func summarize(run *jobdomain.Run, elapsed time.Duration) RunSummary {
	return RunSummary{
		ID:       run.ID,
		Species:  run.Config.Species,
		Scenario: run.Config.Scenario,
		TaskDate: run.Config.TaskDate.String(),
		Status:   run.Status,
		Jobs:     len(run.JobIDs),
		Skipped:  run.Skipped,
		Error:    run.Error,
		Elapsed:  elapsed.Round(time.Millisecond).String(),
	}
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute and export the landscape statistics of one task date",
		Long: "run resolves the inputs of a species, scenario and task date, computes the\n" +
			"per-country, per-state and per-landscape statistics of every landscape type,\n" +
			"and exports one table per landscape type and granularity.",
		Example: "  sclstats run --species Panthera_tigris --scenario canonical --taskdate 2020-01-01\n" +
			"  sclstats run --overwrite -o json",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.species, "species", "", "species to compute (default task.species)")
	cmd.Flags().StringVar(&opts.scenario, "scenario", "", "scenario to compute (default task.scenario)")
	cmd.Flags().StringVar(&opts.taskDate, "taskdate", "", "task date YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "replace tables exported by an earlier run")
	return cmd
}

// applyRunOverrides copies flags onto the task section.
func applyRunOverrides(cfg *config.Config, opts *runOptions) {
	if opts.species != "" {
		cfg.Task.Species = opts.species
	}
	if opts.scenario != "" {
		cfg.Task.Scenario = opts.scenario
	}
	if opts.overwrite {
		cfg.Task.Overwrite = true
	}
}

func runRun(cmd *cobra.Command, opts *runOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	cfg := cliCtx.Config
	applyRunOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "invalid run options")
	}
	taskDate, err := common.ParseTaskDate(opts.taskDate)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "invalid --taskdate")
	}

	ctx, cancel := cliCtx.Context(cmd.Context())
	defer cancel()
	log := cliCtx.Logger

	rt, err := cliCtx.Runtime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			log.Warn("closing runtime", logging.Err(cerr))
		}
	}()
	if rt.Catalog == nil {
		return errors.Precondition("the dataset catalog requires database.enabled")
	}

	stopMetrics := serveMetrics(cfg, rt, log)
	defer stopMetrics()

	settings, err := job.SettingsFromConfig(cfg)
	if err != nil {
		return err
	}
	registry, err := rt.BuildRegistry(cfg, log)
	if err != nil {
		return err
	}
	run, err := jobdomain.NewRun(job.RunConfigFromConfig(cfg, taskDate))
	if err != nil {
		return err
	}

	sink := rt.Sink(log)
	task := job.NewStatsTask(dataset.NewResolver(rt.Catalog, log), rt.Engine, sink, settings, log)

	ctrlOpts := []job.Option{}
	if rt.Runs != nil {
		ctrlOpts = append(ctrlOpts, job.WithRunRepository(rt.Runs))
	}
	if rt.Events != nil {
		ctrlOpts = append(ctrlOpts, job.WithEventPublisher(rt.Events))
	}
	if rt.Metrics != nil {
		ctrlOpts = append(ctrlOpts, job.WithRecorder(rt.Metrics))
	}
	ctrl, err := job.NewController(registry, job.RetryPolicyFromConfig(cfg.Poll), log, ctrlOpts...)
	if err != nil {
		return err
	}

	start := time.Now()
	runErr := ctrl.Run(ctx, run, task)
	if perr := PrintResult(cmd, summarize(run, time.Since(start))); perr != nil {
		log.Warn("printing run summary", logging.Err(perr))
	}
	return runErr
}

// serveMetrics exposes /metrics on metrics.addr for the duration of the run.
// The returned func stops the listener.
func serveMetrics(cfg *config.Config, rt *Runtime, log logging.Logger) func() {
	if rt.MetricsHandler == nil || cfg.Metrics.Addr == "" {
		return func() {}
	}
	srv := httpapi.NewServer(cfg.Metrics.Addr, httpapi.NewRouter(httpapi.RouterConfig{
		MetricsHandler: rt.MetricsHandler,
		Logger:         log,
	}), log)
	if err := srv.Start(); err != nil {
		log.Warn("metrics listener not started", logging.Err(err))
		return func() {}
	}
	return func() {
		if err := srv.Stop(context.Background()); err != nil {
			log.Warn("stopping metrics listener", logging.Err(err))
		}
	}
}

//Personal.AI order the ending
