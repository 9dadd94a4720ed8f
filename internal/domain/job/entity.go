// Package job models a statistics run, the deferred work items it submits,
// and the retry policy used while waiting for them.
package job

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/types/common"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusInitialized Status = "INITIALIZED"
	StatusRunning     Status = "RUNNING"
	StatusComplete    Status = "COMPLETE"
	StatusFailed      Status = "FAILED"
	StatusSkipped     Status = "SKIPPED"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

var validTransitions = map[Status][]Status{
	StatusInitialized: {StatusRunning, StatusFailed, StatusSkipped},
	StatusRunning:     {StatusComplete, StatusFailed},
}

// RunConfig is the explicit, immutable description of one run. It is built
// once and passed to every component that needs species, scenario or date.
type RunConfig struct {
	Species   string          `json:"species"`
	Scenario  string          `json:"scenario"`
	TaskDate  common.TaskDate `json:"taskdate"`
	Overwrite bool            `json:"overwrite"`
	Variant   string          `json:"variant"`
	Bucket    string          `json:"bucket"`
	RootDir   string          `json:"root_dir"`
}

// Validate checks the fields every run needs.
func (c RunConfig) Validate() error {
	if c.Species == "" {
		return errors.Precondition("species is required")
	}
	if c.Scenario == "" {
		return errors.Precondition("scenario is required")
	}
	if c.TaskDate.IsZero() {
		return errors.Precondition("task date is required")
	}
	if c.Bucket == "" {
		return errors.Precondition("bucket is required")
	}
	return nil
}

// Transition records one status change.
type Transition struct {
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

// SkippedComputation records a landscape-type computation that did not run.
type SkippedComputation struct {
	Key    string `json:"key"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Run is the aggregate root of one invocation of the pipeline.
type Run struct {
	ID                string               `json:"id"`
	Config            RunConfig            `json:"config"`
	Status            Status               `json:"status"`
	History           []Transition         `json:"history"`
	Skipped           []SkippedComputation `json:"skipped"`
	JobIDs            []string             `json:"job_ids"`
	AttemptsRemaining int                  `json:"attempts_remaining"`
	Error             string               `json:"error,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
	FinishedAt        *time.Time           `json:"finished_at,omitempty"`
}

// NewRun creates a run in the INITIALIZED state.
func NewRun(cfg RunConfig) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Run{
		ID:        uuid.New().String(),
		Config:    cfg,
		Status:    StatusInitialized,
		History:   []Transition{},
		Skipped:   []SkippedComputation{},
		JobIDs:    []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// TransitionTo moves the run to status. Only the edges of the lifecycle
// graph are accepted.
func (r *Run) TransitionTo(status Status, reason string) error {
	if !isValidTransition(r.Status, status) {
		return errors.InvalidState(fmt.Sprintf("invalid transition from %s to %s", r.Status, status))
	}
	now := time.Now().UTC()
	r.History = append(r.History, Transition{From: r.Status, To: status, At: now, Reason: reason})
	r.Status = status
	r.UpdatedAt = now
	if status.IsTerminal() {
		r.FinishedAt = &now
	}
	return nil
}

// Fail moves the run to FAILED and records err. A rejected transition leaves
// the run untouched.
func (r *Run) Fail(err error) error {
	reason := r.Error
	if err != nil {
		reason = err.Error()
	}
	if terr := r.TransitionTo(StatusFailed, reason); terr != nil {
		return terr
	}
	r.Error = reason
	return nil
}

// Skip records a landscape-type computation that was not attempted.
func (r *Run) Skip(key string, err error) {
	s := SkippedComputation{Key: key, Code: string(errors.GetCode(err))}
	if err != nil {
		s.Reason = err.Error()
	}
	r.Skipped = append(r.Skipped, s)
	r.UpdatedAt = time.Now().UTC()
}

// AddJob records the id of a submitted work item.
func (r *Run) AddJob(id string) {
	r.JobIDs = append(r.JobIDs, id)
	r.UpdatedAt = time.Now().UTC()
}

func isValidTransition(from, to Status) bool {
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

//Personal.AI order the ending
