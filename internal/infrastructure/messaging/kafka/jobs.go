package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	jobdomain "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// MessagePublisher is the producer side used by the adapters below.
type MessagePublisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// ─────────────────────────────────────────────────────────────────────────────
// Work items
// ─────────────────────────────────────────────────────────────────────────────

// JobSubmitter publishes work items to the jobs topic. The item is marked
// PENDING in the status table before it is published, so a worker can never
// report on an id the controller has not seen.
type JobSubmitter struct {
	producer MessagePublisher
	status   jobdomain.StatusWriter
	topic    string
	logger   logging.Logger
}

func NewJobSubmitter(p MessagePublisher, status jobdomain.StatusWriter, topic string, log logging.Logger) *JobSubmitter {
	if topic == "" {
		topic = TopicJobs
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &JobSubmitter{producer: p, status: status, topic: topic, logger: log.Named("job_submitter")}
}

// Submit publishes item keyed by its run id and returns the item id.
func (s *JobSubmitter) Submit(ctx context.Context, item jobdomain.WorkItem) (string, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.SubmittedAt.IsZero() {
		item.SubmittedAt = time.Now().UTC()
	}
	value, err := json.Marshal(item)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "encode work item")
	}

	pending := jobdomain.JobStatus{ID: item.ID, State: jobdomain.JobPending, UpdatedAt: item.SubmittedAt}
	if err := s.status.SetStatus(ctx, pending); err != nil {
		return "", err
	}

	msg := &ProducerMessage{
		Topic: s.topic,
		Key:   []byte(item.RunID),
		Value: value,
		Headers: map[string]string{
			"kind":          string(item.Kind),
			"landscape_key": item.LandscapeKey,
		},
		Timestamp: item.SubmittedAt,
	}
	if err := s.producer.Publish(ctx, msg); err != nil {
		failed := jobdomain.JobStatus{ID: item.ID, State: jobdomain.JobFailed, Error: err.Error(), UpdatedAt: time.Now().UTC()}
		if serr := s.status.SetStatus(context.WithoutCancel(ctx), failed); serr != nil {
			s.logger.Warn("record submit failure", logging.String("job_id", item.ID), logging.Err(serr))
		}
		return "", err
	}

	s.logger.Debug("work item submitted",
		logging.String("job_id", item.ID),
		logging.String("run_id", item.RunID),
		logging.String("kind", string(item.Kind)))
	return item.ID, nil
}

// DecodeWorkItem reads a work item published by JobSubmitter.
func DecodeWorkItem(msg *Message) (jobdomain.WorkItem, error) {
	var item jobdomain.WorkItem
	if len(msg.Value) == 0 {
		return item, errors.New(errors.ErrCodeValidation, "empty work item")
	}
	if err := json.Unmarshal(msg.Value, &item); err != nil {
		return item, errors.Wrap(err, errors.ErrCodeSerialization, "decode work item")
	}
	if item.ID == "" {
		return item, errors.New(errors.ErrCodeValidation, "work item has no id")
	}
	return item, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Run events
// ─────────────────────────────────────────────────────────────────────────────

// RunEventPublisher publishes run status transitions keyed by run id, so the
// events of one run stay ordered within a partition.
type RunEventPublisher struct {
	producer MessagePublisher
	topic    string
}

func NewRunEventPublisher(p MessagePublisher, topic string) *RunEventPublisher {
	if topic == "" {
		topic = TopicRunEvents
	}
	return &RunEventPublisher{producer: p, topic: topic}
}

func (p *RunEventPublisher) PublishRunEvent(ctx context.Context, event jobdomain.RunEvent) error {
	env, err := NewEventEnvelope(EventRunTransition, event)
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(p.topic, event.RunID)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

var _ jobdomain.EventPublisher = (*RunEventPublisher)(nil)

//Personal.AI order the ending
