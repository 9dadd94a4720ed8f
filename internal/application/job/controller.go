// Package job drives a statistics run through its lifecycle: input checks,
// submission of deferred work, a bounded wait for that work, and the final
// status.
package job

import (
	"context"
	"time"

	jobdomain "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// Task is the run-specific part of the lifecycle.
type Task interface {
	// CheckInputs runs before anything is submitted. Absorbed problems are
	// recorded with run.Skip. An error with code JOB_004 skips the whole
	// run; any other error fails it.
	CheckInputs(ctx context.Context, run *jobdomain.Run) error
	// Calc submits the deferred work and records the ids with run.AddJob.
	Calc(ctx context.Context, run *jobdomain.Run, registry jobdomain.Registry) error
	// Finalize runs once every deferred item has completed.
	Finalize(ctx context.Context, run *jobdomain.Run) error
}

// Recorder observes run outcomes. prometheus.AppMetrics implements it.
type Recorder interface {
	RecordRun(status string, duration time.Duration)
	RecordSkippedComputation(key, code string)
	RecordPoll(pending int)
}

// Controller owns the status transitions of runs.
type Controller struct {
	registry jobdomain.Registry
	policy   jobdomain.RetryPolicy
	runs     jobdomain.RunRepository
	events   jobdomain.EventPublisher
	recorder Recorder
	logger   logging.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithRunRepository persists the run after every change.
func WithRunRepository(r jobdomain.RunRepository) Option {
	return func(c *Controller) { c.runs = r }
}

// WithEventPublisher publishes an event per status transition.
func WithEventPublisher(p jobdomain.EventPublisher) Option {
	return func(c *Controller) { c.events = p }
}

// WithRecorder reports run outcomes.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithSleeper replaces the wait between polls.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) { c.sleep = fn }
}

// NewController creates a Controller.
func NewController(registry jobdomain.Registry, policy jobdomain.RetryPolicy, logger logging.Logger, opts ...Option) (*Controller, error) {
	if registry == nil {
		return nil, errors.InvalidParam("registry is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidParam, "invalid retry policy")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	c := &Controller{
		registry: registry,
		policy:   policy,
		logger:   logger.Named("controller"),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run executes task for run and returns once run is terminal. The returned
// error is nil for COMPLETE and SKIPPED runs.
func (c *Controller) Run(ctx context.Context, run *jobdomain.Run, task Task) error {
	start := time.Now()
	log := c.logger.With(logging.String("run_id", run.ID))
	run.AttemptsRemaining = c.policy.MaxAttempts
	c.save(ctx, run)

	defer func() {
		if c.recorder != nil {
			c.recorder.RecordRun(string(run.Status), time.Since(start))
		}
		log.Info("run finished",
			logging.String("status", string(run.Status)),
			logging.Int("skipped", len(run.Skipped)),
			logging.Duration("elapsed", time.Since(start)))
	}()

	if err := task.CheckInputs(ctx, run); err != nil {
		if errors.IsCode(err, errors.ErrCodeRunSkipped) {
			return c.transition(ctx, run, jobdomain.StatusSkipped, err.Error())
		}
		return c.fail(ctx, run, err)
	}
	c.reportSkips(log, run)

	if err := c.transition(ctx, run, jobdomain.StatusRunning, ""); err != nil {
		return err
	}
	if err := task.Calc(ctx, run, c.registry); err != nil {
		return c.fail(ctx, run, err)
	}
	c.save(ctx, run)

	if err := c.Wait(ctx, run); err != nil {
		return c.fail(ctx, run, err)
	}
	if err := task.Finalize(ctx, run); err != nil {
		return c.fail(ctx, run, err)
	}
	return c.transition(ctx, run, jobdomain.StatusComplete, "")
}

// Wait polls the registry until every job of run is terminal. It gives up
// after the policy's attempts are used, when a job fails, or when ctx ends.
func (c *Controller) Wait(ctx context.Context, run *jobdomain.Run) error {
	if len(run.JobIDs) == 0 {
		return nil
	}
	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrCodeCancelled, "wait cancelled")
		}
		statuses, err := c.registry.Status(ctx, run.JobIDs)
		if err != nil {
			return errors.Wrap(err, errors.CodeUnknown, "poll deferred jobs")
		}

		pending := 0
		for _, s := range statuses {
			switch s.State {
			case jobdomain.JobFailed:
				return errors.Newf(errors.ErrCodeDeferredJobFailed, "job %s failed: %s", s.ID, s.Error)
			case jobdomain.JobCompleted:
			default:
				pending++
			}
		}
		run.AttemptsRemaining = c.policy.MaxAttempts - attempt - 1
		if c.recorder != nil {
			c.recorder.RecordPoll(pending)
		}
		if pending == 0 {
			return nil
		}

		delay := c.policy.Delay(attempt)
		c.logger.Debug("waiting for deferred jobs",
			logging.String("run_id", run.ID),
			logging.Int("pending", pending),
			logging.Int("attempts_remaining", run.AttemptsRemaining),
			logging.Duration("next_poll", delay))
		c.save(ctx, run)
		if run.AttemptsRemaining == 0 {
			break
		}
		if err := c.sleep(ctx, delay); err != nil {
			return errors.Wrap(err, errors.ErrCodeCancelled, "wait cancelled")
		}
	}
	return errors.Newf(errors.ErrCodeWaitExhausted, "deferred jobs still pending after %d polls", c.policy.MaxAttempts)
}

func (c *Controller) reportSkips(log logging.Logger, run *jobdomain.Run) {
	for _, s := range run.Skipped {
		log.Warn("sub-computation skipped",
			logging.String("landscape_key", s.Key),
			logging.String("code", s.Code),
			logging.String("reason", s.Reason))
		if c.recorder != nil {
			c.recorder.RecordSkippedComputation(s.Key, s.Code)
		}
	}
}

func (c *Controller) fail(ctx context.Context, run *jobdomain.Run, cause error) error {
	from := run.Status
	if err := run.Fail(cause); err != nil {
		return err
	}
	c.logger.Error("run failed", logging.String("run_id", run.ID), logging.Err(cause))
	c.persist(ctx, run, from)
	return cause
}

func (c *Controller) transition(ctx context.Context, run *jobdomain.Run, to jobdomain.Status, reason string) error {
	from := run.Status
	if err := run.TransitionTo(to, reason); err != nil {
		return err
	}
	c.persist(ctx, run, from)
	return nil
}

// persist saves run and publishes the transition that just happened. Both
// are best effort: a lost event never changes the outcome of a run.
func (c *Controller) persist(ctx context.Context, run *jobdomain.Run, from jobdomain.Status) {
	ctx = context.WithoutCancel(ctx)
	c.save(ctx, run)
	if c.events == nil {
		return
	}
	ev := jobdomain.RunEvent{
		RunID:    run.ID,
		From:     from,
		To:       run.Status,
		Species:  run.Config.Species,
		Scenario: run.Config.Scenario,
		TaskDate: run.Config.TaskDate.String(),
		At:       run.UpdatedAt,
	}
	if n := len(run.History); n > 0 {
		ev.Reason = run.History[n-1].Reason
	}
	if err := c.events.PublishRunEvent(ctx, ev); err != nil {
		c.logger.Warn("publish run event", logging.String("run_id", run.ID), logging.Err(err))
	}
}

func (c *Controller) save(ctx context.Context, run *jobdomain.Run) {
	if c.runs == nil {
		return
	}
	if err := c.runs.Save(context.WithoutCancel(ctx), run); err != nil {
		c.logger.Warn("save run", logging.String("run_id", run.ID), logging.Err(err))
	}
}

//Personal.AI order the ending
