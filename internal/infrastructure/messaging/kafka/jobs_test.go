package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobdomain "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/job"
	pkgerrors "github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

type memStatus struct {
	statuses map[string]jobdomain.JobStatus
	order    []jobdomain.JobState
}

func (m *memStatus) SetStatus(_ context.Context, s jobdomain.JobStatus) error {
	if m.statuses == nil {
		m.statuses = make(map[string]jobdomain.JobStatus)
	}
	m.statuses[s.ID] = s
	m.order = append(m.order, s.State)
	return nil
}

func TestJobSubmitter_Submit(t *testing.T) {
	pub := &recordingPublisher{}
	status := &memStatus{}
	s := NewJobSubmitter(pub, status, "", nil)

	id, err := s.Submit(context.Background(), jobdomain.WorkItem{
		RunID:        "run-1",
		Kind:         jobdomain.KindLandscapeStats,
		LandscapeKey: "scl_species",
		Inputs:       map[string]string{"countries": "USDOS/LSIB/2013"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	assert.Equal(t, []jobdomain.JobState{jobdomain.JobPending}, status.order)
	msgs := pub.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, TopicJobs, msgs[0].Topic)
	assert.Equal(t, []byte("run-1"), msgs[0].Key)
	assert.Equal(t, "scl_species", msgs[0].Headers["landscape_key"])

	item, err := DecodeWorkItem(&Message{Value: msgs[0].Value})
	require.NoError(t, err)
	assert.Equal(t, id, item.ID)
	assert.Equal(t, "USDOS/LSIB/2013", item.Inputs["countries"])
	assert.False(t, item.SubmittedAt.IsZero())
}

func TestJobSubmitter_PublishFailureMarksFailed(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	status := &memStatus{}
	s := NewJobSubmitter(pub, status, "jobs", nil)

	_, err := s.Submit(context.Background(), jobdomain.WorkItem{ID: "a", RunID: "run-1", Kind: jobdomain.KindHistoricalRange})
	require.Error(t, err)
	assert.Equal(t, []jobdomain.JobState{jobdomain.JobPending, jobdomain.JobFailed}, status.order)
	assert.Equal(t, "broker down", status.statuses["a"].Error)
}

func TestDecodeWorkItem_Errors(t *testing.T) {
	_, err := DecodeWorkItem(&Message{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))

	_, err = DecodeWorkItem(&Message{Value: []byte("[")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))

	_, err = DecodeWorkItem(&Message{Value: []byte(`{"run_id":"r"}`)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func TestRunEventPublisher(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewRunEventPublisher(pub, "")
	event := jobdomain.RunEvent{
		RunID:    "run-1",
		From:     jobdomain.StatusRunning,
		To:       jobdomain.StatusComplete,
		Species:  "Panthera_tigris",
		Scenario: "canonical",
		TaskDate: "2024-01-01",
		At:       time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishRunEvent(context.Background(), event))

	msgs := pub.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, TopicRunEvents, msgs[0].Topic)
	assert.Equal(t, []byte("run-1"), msgs[0].Key)

	var env EventEnvelope
	require.NoError(t, json.Unmarshal(msgs[0].Value, &env))
	assert.Equal(t, EventRunTransition, env.EventType)
	var back jobdomain.RunEvent
	require.NoError(t, json.Unmarshal(env.Payload, &back))
	assert.Equal(t, event, back)
}

//Personal.AI order the ending
