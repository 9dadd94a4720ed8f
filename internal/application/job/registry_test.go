package job_test

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/job"
	jobdomain "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/testutil"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

type funcExecutor func(ctx context.Context, item jobdomain.WorkItem) ([]string, error)

func (f funcExecutor) Execute(ctx context.Context, item jobdomain.WorkItem) ([]string, error) {
	return f(ctx, item)
}

type statusLog struct {
	mu     sync.Mutex
	states []jobdomain.JobState
}

func (l *statusLog) SetStatus(_ context.Context, s jobdomain.JobStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s.State)
	return nil
}

func waitTerminal(t *testing.T, reg *job.LocalRegistry, id string) jobdomain.JobStatus {
	t.Helper()
	var last jobdomain.JobStatus
	require.Eventually(t, func() bool {
		st, err := reg.Status(context.Background(), []string{id})
		if err != nil {
			return false
		}
		last = st[0]
		return last.State.IsTerminal()
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func TestProcess_RecordsTransitions(t *testing.T) {
	log := &statusLog{}
	exec := funcExecutor(func(context.Context, jobdomain.WorkItem) ([]string, error) {
		return []string{"a.geojson"}, nil
	})

	require.NoError(t, job.Process(context.Background(), exec, log, jobdomain.WorkItem{ID: "j1"}, testutil.NewMockLogger()))
	assert.Equal(t, []jobdomain.JobState{jobdomain.JobRunning, jobdomain.JobCompleted}, log.states)

	log.states = nil
	failing := funcExecutor(func(context.Context, jobdomain.WorkItem) ([]string, error) {
		return nil, stderrors.New("pixel budget")
	})
	assert.Error(t, job.Process(context.Background(), failing, log, jobdomain.WorkItem{ID: "j2"}, testutil.NewMockLogger()))
	assert.Equal(t, []jobdomain.JobState{jobdomain.JobRunning, jobdomain.JobFailed}, log.states)
}

func TestLocalRegistry_ExecutesSubmittedWork(t *testing.T) {
	exec := funcExecutor(func(_ context.Context, item jobdomain.WorkItem) ([]string, error) {
		if item.LandscapeKey == "scl_fragment" {
			return nil, stderrors.New("boom")
		}
		return []string{item.LandscapeKey + ".geojson"}, nil
	})
	reg := job.NewLocalRegistry(exec, 3, nil)
	defer reg.Close()

	ok, err := reg.Submit(context.Background(), jobdomain.WorkItem{LandscapeKey: "scl_species"})
	require.NoError(t, err)
	bad, err := reg.Submit(context.Background(), jobdomain.WorkItem{LandscapeKey: "scl_fragment"})
	require.NoError(t, err)
	assert.NotEqual(t, ok, bad)

	st := waitTerminal(t, reg, ok)
	assert.Equal(t, jobdomain.JobCompleted, st.State)
	assert.Equal(t, []string{"scl_species.geojson"}, st.Outputs)

	st = waitTerminal(t, reg, bad)
	assert.Equal(t, jobdomain.JobFailed, st.State)
	assert.Equal(t, "boom", st.Error)
}

func TestLocalRegistry_UnknownJob(t *testing.T) {
	reg := job.NewLocalRegistry(funcExecutor(func(context.Context, jobdomain.WorkItem) ([]string, error) { return nil, nil }), 1, nil)
	defer reg.Close()

	_, err := reg.Status(context.Background(), []string{"nope"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeJobNotFound))
}

func TestLocalRegistry_CloseCancelsRunningWork(t *testing.T) {
	started := make(chan struct{})
	exec := funcExecutor(func(ctx context.Context, _ jobdomain.WorkItem) ([]string, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	reg := job.NewLocalRegistry(exec, 1, nil)

	id, err := reg.Submit(context.Background(), jobdomain.WorkItem{})
	require.NoError(t, err)
	<-started
	reg.Close()

	st, err := reg.Status(context.Background(), []string{id})
	require.NoError(t, err)
	assert.Equal(t, jobdomain.JobFailed, st[0].State)

	_, err = reg.Submit(context.Background(), jobdomain.WorkItem{})
	assert.Error(t, err)
	reg.Close()
}

// queueSubmitter stands in for the message queue: workers drain items.
type queueSubmitter struct {
	status *statusTable
	items  chan jobdomain.WorkItem
}

func (q *queueSubmitter) Submit(ctx context.Context, item jobdomain.WorkItem) (string, error) {
	_ = q.status.SetStatus(ctx, jobdomain.JobStatus{ID: item.ID, State: jobdomain.JobPending})
	q.items <- item
	return item.ID, nil
}

type statusTable struct {
	mu sync.Mutex
	m  map[string]jobdomain.JobStatus
}

func (s *statusTable) SetStatus(_ context.Context, st jobdomain.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[st.ID] = st
	return nil
}

func (s *statusTable) Status(_ context.Context, ids []string) ([]jobdomain.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]jobdomain.JobStatus, 0, len(ids))
	for _, id := range ids {
		st, ok := s.m[id]
		if !ok {
			return nil, errors.Newf(errors.ErrCodeJobNotFound, "job %s not found", id)
		}
		out = append(out, st)
	}
	return out, nil
}

func TestDistributedRegistry_WorkerReportsThroughStatusTable(t *testing.T) {
	table := &statusTable{m: make(map[string]jobdomain.JobStatus)}
	queue := &queueSubmitter{status: table, items: make(chan jobdomain.WorkItem, 1)}
	reg := job.NewDistributedRegistry(queue, table)

	id, err := reg.Submit(context.Background(), jobdomain.WorkItem{ID: "w1"})
	require.NoError(t, err)
	st, err := reg.Status(context.Background(), []string{id})
	require.NoError(t, err)
	assert.Equal(t, jobdomain.JobPending, st[0].State)

	exec := funcExecutor(func(context.Context, jobdomain.WorkItem) ([]string, error) {
		return []string{"ls_stats/x.geojson"}, nil
	})
	require.NoError(t, job.Process(context.Background(), exec, table, <-queue.items, testutil.NewMockLogger()))

	st, err = reg.Status(context.Background(), []string{id})
	require.NoError(t, err)
	assert.Equal(t, jobdomain.JobCompleted, st[0].State)
	assert.Equal(t, []string{"ls_stats/x.geojson"}, st[0].Outputs)
}

//Personal.AI order the ending
