package job

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	jobdomain "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// Process runs item with exec and records its state transitions in w. The
// returned error is the execution error; status write failures are logged.
func Process(ctx context.Context, exec jobdomain.Executor, w jobdomain.StatusWriter, item jobdomain.WorkItem, logger logging.Logger) error {
	set := func(s jobdomain.JobStatus) {
		s.ID = item.ID
		s.UpdatedAt = time.Now().UTC()
		if err := w.SetStatus(context.WithoutCancel(ctx), s); err != nil {
			logger.Warn("record job status", logging.String("job_id", item.ID), logging.Err(err))
		}
	}

	set(jobdomain.JobStatus{State: jobdomain.JobRunning})
	outputs, err := exec.Execute(ctx, item)
	if err != nil {
		logger.Error("work item failed",
			logging.String("job_id", item.ID),
			logging.String("kind", string(item.Kind)),
			logging.String("landscape_key", item.LandscapeKey),
			logging.Err(err))
		set(jobdomain.JobStatus{State: jobdomain.JobFailed, Error: err.Error()})
		return err
	}
	set(jobdomain.JobStatus{State: jobdomain.JobCompleted, Outputs: outputs})
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// LocalRegistry
// ─────────────────────────────────────────────────────────────────────────────

// LocalRegistry executes submitted work on an in-process worker pool.
type LocalRegistry struct {
	exec   jobdomain.Executor
	logger logging.Logger

	queue  chan jobdomain.WorkItem
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// sendMu guards closed and sends on queue.
	sendMu sync.RWMutex
	closed bool

	mu       sync.RWMutex
	statuses map[string]jobdomain.JobStatus
}

// NewLocalRegistry starts workers goroutines executing with exec. Close stops
// them.
func NewLocalRegistry(exec jobdomain.Executor, workers int, logger logging.Logger) *LocalRegistry {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &LocalRegistry{
		exec:     exec,
		logger:   logger.Named("local_registry"),
		queue:    make(chan jobdomain.WorkItem, workers*16),
		ctx:      ctx,
		cancel:   cancel,
		statuses: make(map[string]jobdomain.JobStatus),
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	return r
}

func (r *LocalRegistry) worker(id int) {
	defer r.wg.Done()
	r.logger.Debug("worker started", logging.Int("worker_id", id))
	for item := range r.queue {
		if r.ctx.Err() != nil {
			_ = r.SetStatus(context.Background(), jobdomain.JobStatus{
				ID: item.ID, State: jobdomain.JobFailed, Error: "registry closed", UpdatedAt: time.Now().UTC(),
			})
			continue
		}
		_ = Process(r.ctx, r.exec, r, item, r.logger)
	}
}

// Submit queues item and returns its id. It blocks while the queue is full.
func (r *LocalRegistry) Submit(ctx context.Context, item jobdomain.WorkItem) (string, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.SubmittedAt.IsZero() {
		item.SubmittedAt = time.Now().UTC()
	}

	r.sendMu.RLock()
	defer r.sendMu.RUnlock()
	if r.closed {
		return "", errors.InvalidState("registry is closed")
	}
	_ = r.SetStatus(ctx, jobdomain.JobStatus{ID: item.ID, State: jobdomain.JobPending, UpdatedAt: item.SubmittedAt})

	select {
	case r.queue <- item:
		return item.ID, nil
	case <-ctx.Done():
		r.forget(item.ID)
		return "", errors.Wrap(ctx.Err(), errors.ErrCodeCancelled, "submit cancelled")
	case <-r.ctx.Done():
		r.forget(item.ID)
		return "", errors.InvalidState("registry is closed")
	}
}

func (r *LocalRegistry) forget(id string) {
	r.mu.Lock()
	delete(r.statuses, id)
	r.mu.Unlock()
}

// Status implements jobdomain.Registry.
func (r *LocalRegistry) Status(_ context.Context, ids []string) ([]jobdomain.JobStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]jobdomain.JobStatus, 0, len(ids))
	for _, id := range ids {
		s, ok := r.statuses[id]
		if !ok {
			return nil, errors.Newf(errors.ErrCodeJobNotFound, "job %s not found", id)
		}
		out = append(out, s)
	}
	return out, nil
}

// SetStatus implements jobdomain.StatusWriter.
func (r *LocalRegistry) SetStatus(_ context.Context, s jobdomain.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[s.ID] = s
	return nil
}

// Close stops accepting work, cancels running items and waits for the
// workers to exit. Queued items are marked failed.
func (r *LocalRegistry) Close() {
	r.cancel()
	r.sendMu.Lock()
	if r.closed {
		r.sendMu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.sendMu.Unlock()
	r.wg.Wait()
}

// ─────────────────────────────────────────────────────────────────────────────
// DistributedRegistry
// ─────────────────────────────────────────────────────────────────────────────

// Submitter hands a work item to remote workers.
type Submitter interface {
	Submit(ctx context.Context, item jobdomain.WorkItem) (string, error)
}

// StatusReader reports the state of submitted items.
type StatusReader interface {
	Status(ctx context.Context, ids []string) ([]jobdomain.JobStatus, error)
}

// DistributedRegistry submits through a message queue and reads state from a
// shared status table that the workers write with Process.
type DistributedRegistry struct {
	Submitter
	StatusReader
}

func NewDistributedRegistry(s Submitter, r StatusReader) *DistributedRegistry {
	return &DistributedRegistry{Submitter: s, StatusReader: r}
}

var (
	_ jobdomain.Registry     = (*LocalRegistry)(nil)
	_ jobdomain.StatusWriter = (*LocalRegistry)(nil)
	_ jobdomain.Registry     = (*DistributedRegistry)(nil)
)

//Personal.AI order the ending
