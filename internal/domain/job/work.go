package job

import (
	"context"
	"time"
)

// WorkKind selects the computation a work item performs.
type WorkKind string

const (
	KindLandscapeStats  WorkKind = "landscape_stats"
	KindHistoricalRange WorkKind = "historical_range"
)

// WorkItem is one deferred computation. It carries everything an executor
// needs, so it can be serialized and run in another process.
type WorkItem struct {
	ID           string   `json:"id"`
	RunID        string   `json:"run_id"`
	Kind         WorkKind `json:"kind"`
	LandscapeKey string   `json:"landscape_key,omitempty"`
	// Granularities lists the tables written for a landscape_stats item.
	Granularities []string          `json:"granularities,omitempty"`
	Config        RunConfig         `json:"config"`
	Inputs        map[string]string `json:"inputs"`
	SubmittedAt   time.Time         `json:"submitted_at"`
}

// JobState is the execution state of a work item.
type JobState string

const (
	JobPending   JobState = "PENDING"
	JobRunning   JobState = "RUNNING"
	JobCompleted JobState = "COMPLETED"
	JobFailed    JobState = "FAILED"
)

// IsTerminal reports whether the item will not change state again.
func (s JobState) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobStatus is the registry's view of one work item.
type JobStatus struct {
	ID        string    `json:"id"`
	State     JobState  `json:"state"`
	Error     string    `json:"error,omitempty"`
	Outputs   []string  `json:"outputs,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry accepts work items and reports their state.
type Registry interface {
	Submit(ctx context.Context, item WorkItem) (string, error)
	// Status returns one entry per id, in the order given.
	Status(ctx context.Context, ids []string) ([]JobStatus, error)
}

// StatusWriter is the executor-side half of a registry.
type StatusWriter interface {
	SetStatus(ctx context.Context, status JobStatus) error
}

// Executor runs one work item to completion and returns the paths it wrote.
type Executor interface {
	Execute(ctx context.Context, item WorkItem) ([]string, error)
}

// RunEvent is published on every status transition of a run.
type RunEvent struct {
	RunID    string    `json:"run_id"`
	From     Status    `json:"from"`
	To       Status    `json:"to"`
	Reason   string    `json:"reason,omitempty"`
	Species  string    `json:"species"`
	Scenario string    `json:"scenario"`
	TaskDate string    `json:"taskdate"`
	At       time.Time `json:"at"`
}

// RunRepository persists run history.
type RunRepository interface {
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	ListRecent(ctx context.Context, limit int) ([]*Run, error)
}

// EventPublisher publishes run events.
type EventPublisher interface {
	PublishRunEvent(ctx context.Context, event RunEvent) error
}

//Personal.AI order the ending
