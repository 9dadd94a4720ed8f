package job_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/job"
	jobdomain "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/testutil"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

// scriptedRegistry answers every poll with the next scripted state; the last
// one repeats.
type scriptedRegistry struct {
	mu        sync.Mutex
	submitted []jobdomain.WorkItem
	polls     []jobdomain.JobState
	calls     int
}

func (r *scriptedRegistry) Submit(_ context.Context, item jobdomain.WorkItem) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.ID = fmt.Sprintf("job-%d", len(r.submitted)+1)
	r.submitted = append(r.submitted, item)
	return item.ID, nil
}

func (r *scriptedRegistry) Status(_ context.Context, ids []string) ([]jobdomain.JobStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.calls
	if i >= len(r.polls) {
		i = len(r.polls) - 1
	}
	r.calls++
	out := make([]jobdomain.JobStatus, len(ids))
	for j, id := range ids {
		out[j] = jobdomain.JobStatus{ID: id, State: r.polls[i]}
		if r.polls[i] == jobdomain.JobFailed {
			out[j].Error = "reduce failed"
		}
	}
	return out, nil
}

type fakeTask struct {
	checkErr  error
	skip      []string
	jobs      int
	calls     []string
	finalized bool
}

func (t *fakeTask) CheckInputs(_ context.Context, run *jobdomain.Run) error {
	t.calls = append(t.calls, "check")
	for _, key := range t.skip {
		run.Skip(key, errors.New(errors.ErrCodeInputStale, "stale"))
	}
	return t.checkErr
}

func (t *fakeTask) Calc(ctx context.Context, run *jobdomain.Run, registry jobdomain.Registry) error {
	t.calls = append(t.calls, "calc")
	for i := 0; i < t.jobs; i++ {
		id, err := registry.Submit(ctx, jobdomain.WorkItem{RunID: run.ID})
		if err != nil {
			return err
		}
		run.AddJob(id)
	}
	return nil
}

func (t *fakeTask) Finalize(context.Context, *jobdomain.Run) error {
	t.calls = append(t.calls, "finalize")
	t.finalized = true
	return nil
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishRunEvent(ctx context.Context, ev jobdomain.RunEvent) error {
	return m.Called(ctx, ev).Error(0)
}

type memRuns struct {
	mu       sync.Mutex
	saved    []jobdomain.Status
	canceled int
}

func (r *memRuns) Save(ctx context.Context, run *jobdomain.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ctx.Err() != nil {
		r.canceled++
	}
	r.saved = append(r.saved, run.Status)
	return nil
}

func (r *memRuns) Get(context.Context, string) (*jobdomain.Run, error) { return nil, nil }

func (r *memRuns) ListRecent(context.Context, int) ([]*jobdomain.Run, error) { return nil, nil }

type runRecorder struct {
	statuses []string
	skipped  []string
	polls    []int
}

func (r *runRecorder) RecordRun(status string, _ time.Duration) { r.statuses = append(r.statuses, status) }
func (r *runRecorder) RecordSkippedComputation(key, _ string)   { r.skipped = append(r.skipped, key) }
func (r *runRecorder) RecordPoll(pending int)                   { r.polls = append(r.polls, pending) }

type sleepLog struct{ delays []time.Duration }

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newRun(t *testing.T) *jobdomain.Run {
	t.Helper()
	run, err := jobdomain.NewRun(jobdomain.RunConfig{
		Species:  "Panthera_tigris",
		Scenario: "canonical",
		TaskDate: common.NewTaskDate(2024, time.January, 1),
		Variant:  "current",
		Bucket:   "scl-pipeline",
	})
	require.NoError(t, err)
	return run
}

var testPolicy = jobdomain.RetryPolicy{Interval: time.Second, MaxInterval: 3 * time.Second, Multiplier: 2, MaxAttempts: 5}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestController_CompletesAfterJobsFinish(t *testing.T) {
	reg := &scriptedRegistry{polls: []jobdomain.JobState{jobdomain.JobPending, jobdomain.JobRunning, jobdomain.JobRunning, jobdomain.JobCompleted}}
	pub := new(mockPublisher)
	pub.On("PublishRunEvent", mock.Anything, mock.MatchedBy(func(ev jobdomain.RunEvent) bool {
		return ev.From == jobdomain.StatusInitialized && ev.To == jobdomain.StatusRunning
	})).Return(nil).Once()
	pub.On("PublishRunEvent", mock.Anything, mock.MatchedBy(func(ev jobdomain.RunEvent) bool {
		return ev.From == jobdomain.StatusRunning && ev.To == jobdomain.StatusComplete && ev.TaskDate == "2024-01-01"
	})).Return(nil).Once()
	runs := &memRuns{}
	rec := &runRecorder{}
	sl := &sleepLog{}

	c, err := job.NewController(reg, testPolicy, testutil.NewMockLogger(),
		job.WithEventPublisher(pub), job.WithRunRepository(runs), job.WithRecorder(rec), job.WithSleeper(sl.sleep))
	require.NoError(t, err)

	run := newRun(t)
	task := &fakeTask{jobs: 2}
	require.NoError(t, c.Run(context.Background(), run, task))

	assert.Equal(t, jobdomain.StatusComplete, run.Status)
	assert.Equal(t, []string{"check", "calc", "finalize"}, task.calls)
	assert.Equal(t, []string{"job-1", "job-2"}, run.JobIDs)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, sl.delays)
	assert.Equal(t, testPolicy.MaxAttempts-4, run.AttemptsRemaining)
	assert.Equal(t, []int{2, 2, 2, 0}, rec.polls)
	assert.Equal(t, []string{"COMPLETE"}, rec.statuses)
	assert.Equal(t, jobdomain.StatusComplete, runs.saved[len(runs.saved)-1])
	pub.AssertExpectations(t)
}

func TestController_NoJobsSkipsWait(t *testing.T) {
	reg := &scriptedRegistry{polls: []jobdomain.JobState{jobdomain.JobPending}}
	c, err := job.NewController(reg, testPolicy, nil)
	require.NoError(t, err)

	run := newRun(t)
	require.NoError(t, c.Run(context.Background(), run, &fakeTask{}))
	assert.Equal(t, jobdomain.StatusComplete, run.Status)
	assert.Zero(t, reg.calls)
}

func TestController_SkippedBeforeSubmission(t *testing.T) {
	reg := &scriptedRegistry{polls: []jobdomain.JobState{jobdomain.JobCompleted}}
	rec := &runRecorder{}
	c, err := job.NewController(reg, testPolicy, nil, job.WithRecorder(rec))
	require.NoError(t, err)

	run := newRun(t)
	task := &fakeTask{checkErr: errors.New(errors.ErrCodeRunSkipped, "every output exists"), jobs: 1}
	require.NoError(t, c.Run(context.Background(), run, task))

	assert.Equal(t, jobdomain.StatusSkipped, run.Status)
	assert.Equal(t, []string{"check"}, task.calls)
	assert.Empty(t, reg.submitted)
	assert.Equal(t, []string{"SKIPPED"}, rec.statuses)
}

func TestController_PreconditionFails(t *testing.T) {
	reg := &scriptedRegistry{polls: []jobdomain.JobState{jobdomain.JobCompleted}}
	pub := new(mockPublisher)
	pub.On("PublishRunEvent", mock.Anything, mock.MatchedBy(func(ev jobdomain.RunEvent) bool {
		return ev.To == jobdomain.StatusFailed && ev.Reason != ""
	})).Return(stderrors.New("broker down"))
	c, err := job.NewController(reg, testPolicy, nil, job.WithEventPublisher(pub))
	require.NoError(t, err)

	run := newRun(t)
	task := &fakeTask{checkErr: errors.Precondition("unknown landscape key"), jobs: 1}
	err = c.Run(context.Background(), run, task)

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodePrecondition))
	assert.Equal(t, jobdomain.StatusFailed, run.Status)
	assert.Empty(t, reg.submitted)
	pub.AssertExpectations(t)
}

func TestController_ReportsSkippedComputations(t *testing.T) {
	reg := &scriptedRegistry{polls: []jobdomain.JobState{jobdomain.JobCompleted}}
	rec := &runRecorder{}
	logger := testutil.NewMockLogger()
	c, err := job.NewController(reg, testPolicy, logger, job.WithRecorder(rec))
	require.NoError(t, err)

	run := newRun(t)
	require.NoError(t, c.Run(context.Background(), run, &fakeTask{skip: []string{"scl_fragment"}, jobs: 1}))

	assert.Equal(t, jobdomain.StatusComplete, run.Status)
	assert.Equal(t, []string{"scl_fragment"}, rec.skipped)
	msg, ok := logger.Find("warn", "sub-computation skipped")
	require.True(t, ok)
	key, _ := msg.Field("landscape_key")
	assert.Equal(t, "scl_fragment", key)
}

func TestController_DeferredJobFailure(t *testing.T) {
	reg := &scriptedRegistry{polls: []jobdomain.JobState{jobdomain.JobRunning, jobdomain.JobFailed}}
	sl := &sleepLog{}
	c, err := job.NewController(reg, testPolicy, nil, job.WithSleeper(sl.sleep))
	require.NoError(t, err)

	run := newRun(t)
	task := &fakeTask{jobs: 1}
	err = c.Run(context.Background(), run, task)

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDeferredJobFailed))
	assert.Equal(t, jobdomain.StatusFailed, run.Status)
	assert.False(t, task.finalized)
	assert.Contains(t, run.Error, "reduce failed")
}

func TestController_WaitExhausted(t *testing.T) {
	reg := &scriptedRegistry{polls: []jobdomain.JobState{jobdomain.JobRunning}}
	sl := &sleepLog{}
	policy := jobdomain.RetryPolicy{Interval: time.Second, Multiplier: 1, MaxAttempts: 3}
	c, err := job.NewController(reg, policy, nil, job.WithSleeper(sl.sleep))
	require.NoError(t, err)

	run := newRun(t)
	err = c.Run(context.Background(), run, &fakeTask{jobs: 1})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeWaitExhausted))
	assert.Equal(t, 3, reg.calls)
	assert.Len(t, sl.delays, 2)
	assert.Zero(t, run.AttemptsRemaining)
	assert.Equal(t, jobdomain.StatusFailed, run.Status)
}

func TestController_CancelledWhileWaiting(t *testing.T) {
	reg := &scriptedRegistry{polls: []jobdomain.JobState{jobdomain.JobRunning}}
	runs := &memRuns{}
	ctx, cancel := context.WithCancel(context.Background())
	sleeper := func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	c, err := job.NewController(reg, testPolicy, nil, job.WithSleeper(sleeper), job.WithRunRepository(runs))
	require.NoError(t, err)

	run := newRun(t)
	err = c.Run(ctx, run, &fakeTask{jobs: 1})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCancelled))
	assert.Equal(t, jobdomain.StatusFailed, run.Status)
	assert.Equal(t, jobdomain.StatusFailed, runs.saved[len(runs.saved)-1])
	assert.Zero(t, runs.canceled)
}

func TestNewController_Validation(t *testing.T) {
	_, err := job.NewController(nil, testPolicy, nil)
	assert.Error(t, err)

	_, err = job.NewController(&scriptedRegistry{}, jobdomain.RetryPolicy{}, nil)
	assert.Error(t, err)
}

//Personal.AI order the ending
