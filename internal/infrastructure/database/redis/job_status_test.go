package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobdomain "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

func TestJobStatusStore_RoundTrip(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewJobStatusStore(client, time.Hour, nil)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.SetStatus(ctx, jobdomain.JobStatus{ID: "a", State: jobdomain.JobRunning, UpdatedAt: now}))
	require.NoError(t, store.SetStatus(ctx, jobdomain.JobStatus{ID: "b", State: jobdomain.JobCompleted, Outputs: []string{"x"}, UpdatedAt: now}))
	assert.Equal(t, time.Hour, mr.TTL("test:job:a"))

	got, err := store.Status(ctx, []string{"b", "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, jobdomain.JobCompleted, got[0].State)
	assert.Equal(t, []string{"x"}, got[0].Outputs)
	assert.Equal(t, jobdomain.JobRunning, got[1].State)
	assert.True(t, now.Equal(got[1].UpdatedAt))
}

func TestJobStatusStore_UnknownJob(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewJobStatusStore(client, 0, nil)

	_, err := store.Status(context.Background(), []string{"missing"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeJobNotFound))

	got, err := store.Status(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestJobStatusStore_TerminalIsSticky(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewJobStatusStore(client, 0, nil)
	ctx := context.Background()

	require.NoError(t, store.SetStatus(ctx, jobdomain.JobStatus{ID: "a", State: jobdomain.JobCompleted}))
	require.NoError(t, store.SetStatus(ctx, jobdomain.JobStatus{ID: "a", State: jobdomain.JobRunning}))

	got, err := store.Status(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, jobdomain.JobCompleted, got[0].State)

	require.NoError(t, store.SetStatus(ctx, jobdomain.JobStatus{ID: "a", State: jobdomain.JobFailed, Error: "retry failed"}))
	got, err = store.Status(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, jobdomain.JobFailed, got[0].State)
}

func TestJobStatusStore_CorruptEntry(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewJobStatusStore(client, 0, nil)
	require.NoError(t, mr.Set("test:job:a", "{"))

	_, err := store.Status(context.Background(), []string{"a"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))
}

//Personal.AI order the ending
