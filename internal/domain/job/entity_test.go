package job

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/types/common"
)

func testConfig() RunConfig {
	return RunConfig{
		Species:  "Panthera_tigris",
		Scenario: "canonical",
		TaskDate: common.NewTaskDate(2021, time.June, 1),
		Variant:  "current",
		Bucket:   "scl-pipeline",
		RootDir:  "projects/SCL/v1",
	}
}

func TestNewRun(t *testing.T) {
	run, err := NewRun(testConfig())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, StatusInitialized, run.Status)
	assert.Empty(t, run.History)
	assert.Nil(t, run.FinishedAt)
}

func TestNewRun_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Scenario = ""
	_, err := NewRun(cfg)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodePrecondition))
}

func TestRun_TransitionTo(t *testing.T) {
	cases := []struct {
		name  string
		path  []Status
		valid bool
	}{
		{"complete", []Status{StatusRunning, StatusComplete}, true},
		{"fail while running", []Status{StatusRunning, StatusFailed}, true},
		{"fail before running", []Status{StatusFailed}, true},
		{"skip before running", []Status{StatusSkipped}, true},
		{"complete without running", []Status{StatusComplete}, false},
		{"skip while running", []Status{StatusRunning, StatusSkipped}, false},
		{"leave terminal", []Status{StatusSkipped, StatusRunning}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			run, err := NewRun(testConfig())
			require.NoError(t, err)

			var last error
			for _, s := range tc.path {
				if last = run.TransitionTo(s, "test"); last != nil {
					break
				}
			}
			if tc.valid {
				require.NoError(t, last)
				assert.Equal(t, tc.path[len(tc.path)-1], run.Status)
				assert.Len(t, run.History, len(tc.path))
			} else {
				require.Error(t, last)
				assert.True(t, errors.IsCode(last, errors.ErrCodeInvalidTransition))
			}
		})
	}
}

func TestRun_TerminalSetsFinishedAt(t *testing.T) {
	run, _ := NewRun(testConfig())
	require.NoError(t, run.TransitionTo(StatusRunning, ""))
	assert.Nil(t, run.FinishedAt)
	require.NoError(t, run.TransitionTo(StatusComplete, ""))
	require.NotNil(t, run.FinishedAt)
	assert.True(t, run.Status.IsTerminal())
}

func TestRun_FailRecordsError(t *testing.T) {
	run, _ := NewRun(testConfig())
	require.NoError(t, run.Fail(stderrors.New("countries missing")))
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "countries missing", run.Error)
	assert.Equal(t, "countries missing", run.History[0].Reason)
}

func TestRun_FailAfterTerminalKeepsError(t *testing.T) {
	run, _ := NewRun(testConfig())
	require.NoError(t, run.TransitionTo(StatusRunning, ""))
	require.NoError(t, run.TransitionTo(StatusComplete, ""))

	err := run.Fail(stderrors.New("late failure"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTransition))
	assert.Equal(t, StatusComplete, run.Status)
	assert.Empty(t, run.Error)
	assert.Len(t, run.History, 2)

	failed, _ := NewRun(testConfig())
	require.NoError(t, failed.Fail(stderrors.New("first")))
	require.Error(t, failed.Fail(stderrors.New("second")))
	assert.Equal(t, "first", failed.Error)
}

func TestRun_SkipAndAddJob(t *testing.T) {
	run, _ := NewRun(testConfig())
	run.Skip("scl_fragment", errors.New(errors.ErrCodeInputStale, "too old"))
	run.AddJob("job-1")

	require.Len(t, run.Skipped, 1)
	assert.Equal(t, "scl_fragment", run.Skipped[0].Key)
	assert.Equal(t, "INPUT_003", run.Skipped[0].Code)
	assert.Equal(t, []string{"job-1"}, run.JobIDs)
}

func TestJobState_IsTerminal(t *testing.T) {
	assert.False(t, JobPending.IsTerminal())
	assert.False(t, JobRunning.IsTerminal())
	assert.True(t, JobCompleted.IsTerminal())
	assert.True(t, JobFailed.IsTerminal())
}

//Personal.AI order the ending
