package redis

import (
	"context"
	"encoding/json"
	"time"

	jobdomain "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

const defaultStatusTTL = 7 * 24 * time.Hour

// JobStatusStore is the shared status table of deferred work items. Workers
// write it; the controller polls it.
type JobStatusStore struct {
	client *Client
	ttl    time.Duration
	logger logging.Logger
}

// NewJobStatusStore keeps each status for ttl after its last update. Zero
// means seven days.
func NewJobStatusStore(client *Client, ttl time.Duration, log logging.Logger) *JobStatusStore {
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &JobStatusStore{client: client, ttl: ttl, logger: log}
}

func (s *JobStatusStore) key(id string) string {
	return s.client.Key("job", id)
}

// SetStatus implements jobdomain.StatusWriter. A terminal status is never
// overwritten by a non-terminal one, so a redelivered item cannot undo a
// completion.
func (s *JobStatusStore) SetStatus(ctx context.Context, status jobdomain.JobStatus) error {
	rdb, err := s.client.Underlying()
	if err != nil {
		return err
	}
	if !status.State.IsTerminal() {
		prev, err := s.Status(ctx, []string{status.ID})
		if err == nil && prev[0].State.IsTerminal() {
			s.logger.Debug("ignoring status regression",
				logging.String("job_id", status.ID),
				logging.String("state", string(status.State)))
			return nil
		}
	}
	data, err := json.Marshal(status)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	if err := rdb.Set(ctx, s.key(status.ID), data, s.ttl).Err(); err != nil {
		return errors.Wrapf(err, errors.ErrCodeCacheError, "write status of job %s", status.ID)
	}
	return nil
}

// Status implements jobdomain.Registry.Status.
func (s *JobStatusStore) Status(ctx context.Context, ids []string) ([]jobdomain.JobStatus, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rdb, err := s.client.Underlying()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "read job statuses")
	}

	out := make([]jobdomain.JobStatus, len(ids))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeJobNotFound, "job %s not found", ids[i])
		}
		if err := json.Unmarshal([]byte(raw), &out[i]); err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeSerialization, "decode status of job %s", ids[i])
		}
	}
	return out, nil
}

var _ jobdomain.StatusWriter = (*JobStatusStore)(nil)

//Personal.AI order the ending
