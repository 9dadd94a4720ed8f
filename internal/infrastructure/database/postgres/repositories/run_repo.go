package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	jobdomain "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// pgxQuerier is the subset of pgxpool.Pool used by RunRepo.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RunRepo persists run history in the stats_runs table.
type RunRepo struct {
	q   pgxQuerier
	log logging.Logger
}

// NewRunRepo creates a repository on pool.
func NewRunRepo(pool *pgxpool.Pool, log logging.Logger) *RunRepo {
	return newRunRepo(pool, log)
}

func newRunRepo(q pgxQuerier, log logging.Logger) *RunRepo {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &RunRepo{q: q, log: log}
}

const runColumns = `id, status, config, history, skipped, job_ids,
	attempts_remaining, error, created_at, updated_at, finished_at`

// runRecord is the column form of a run.
type runRecord struct {
	ID                string
	Species           string
	Scenario          string
	TaskDate          time.Time
	Variant           string
	Status            string
	Config            []byte
	History           []byte
	Skipped           []byte
	JobIDs            []string
	AttemptsRemaining int
	Error             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	FinishedAt        *time.Time
}

func toRecord(run *jobdomain.Run) (runRecord, error) {
	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return runRecord{}, err
	}
	history, err := json.Marshal(nonNil(run.History))
	if err != nil {
		return runRecord{}, err
	}
	skipped, err := json.Marshal(nonNil(run.Skipped))
	if err != nil {
		return runRecord{}, err
	}
	jobIDs := run.JobIDs
	if jobIDs == nil {
		jobIDs = []string{}
	}
	return runRecord{
		ID:                run.ID,
		Species:           run.Config.Species,
		Scenario:          run.Config.Scenario,
		TaskDate:          run.Config.TaskDate.Time(),
		Variant:           run.Config.Variant,
		Status:            string(run.Status),
		Config:            cfg,
		History:           history,
		Skipped:           skipped,
		JobIDs:            jobIDs,
		AttemptsRemaining: run.AttemptsRemaining,
		Error:             run.Error,
		CreatedAt:         run.CreatedAt,
		UpdatedAt:         run.UpdatedAt,
		FinishedAt:        run.FinishedAt,
	}, nil
}

func fromRecord(rec runRecord) (*jobdomain.Run, error) {
	run := &jobdomain.Run{
		ID:                rec.ID,
		Status:            jobdomain.Status(rec.Status),
		JobIDs:            rec.JobIDs,
		AttemptsRemaining: rec.AttemptsRemaining,
		Error:             rec.Error,
		CreatedAt:         rec.CreatedAt.UTC(),
		UpdatedAt:         rec.UpdatedAt.UTC(),
	}
	if rec.FinishedAt != nil {
		f := rec.FinishedAt.UTC()
		run.FinishedAt = &f
	}
	if err := json.Unmarshal(rec.Config, &run.Config); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rec.History, &run.History); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rec.Skipped, &run.Skipped); err != nil {
		return nil, err
	}
	if run.JobIDs == nil {
		run.JobIDs = []string{}
	}
	return run, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Save inserts or replaces run.
func (r *RunRepo) Save(ctx context.Context, run *jobdomain.Run) error {
	rec, err := toRecord(run)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode run")
	}
	query := `
		INSERT INTO stats_runs (
			id, species, scenario, taskdate, variant, status, config, history, skipped,
			job_ids, attempts_remaining, error, created_at, updated_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			history = EXCLUDED.history,
			skipped = EXCLUDED.skipped,
			job_ids = EXCLUDED.job_ids,
			attempts_remaining = EXCLUDED.attempts_remaining,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at,
			finished_at = EXCLUDED.finished_at
	`
	_, err = r.q.Exec(ctx, query,
		rec.ID, rec.Species, rec.Scenario, rec.TaskDate, rec.Variant, rec.Status, rec.Config, rec.History, rec.Skipped,
		rec.JobIDs, rec.AttemptsRemaining, rec.Error, rec.CreatedAt, rec.UpdatedAt, rec.FinishedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save run")
	}
	r.log.Debug("run saved", logging.String("run_id", run.ID), logging.String("status", rec.Status))
	return nil
}

func (r *RunRepo) Get(ctx context.Context, id string) (*jobdomain.Run, error) {
	row := r.q.QueryRow(ctx, `SELECT `+runColumns+` FROM stats_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NotFound("run " + id + " not found")
		}
		return nil, err
	}
	return run, nil
}

// ListRecent returns up to limit runs, newest first.
func (r *RunRepo) ListRecent(ctx context.Context, limit int) ([]*jobdomain.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.q.Query(ctx, `SELECT `+runColumns+` FROM stats_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list runs")
	}
	defer rows.Close()

	var out []*jobdomain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate runs")
	}
	return out, nil
}

func scanRun(s scanner) (*jobdomain.Run, error) {
	var rec runRecord
	err := s.Scan(&rec.ID, &rec.Status, &rec.Config, &rec.History, &rec.Skipped, &rec.JobIDs,
		&rec.AttemptsRemaining, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt, &rec.FinishedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan run")
	}
	run, err := fromRecord(rec)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode run")
	}
	return run, nil
}

var _ jobdomain.RunRepository = (*RunRepo)(nil)

//Personal.AI order the ending
