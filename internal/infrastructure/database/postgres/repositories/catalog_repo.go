package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/dataset"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/database/postgres"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// PostgresCatalog is the dataset catalog stored in the dataset_versions
// table.
type PostgresCatalog struct {
	conn *postgres.Connection
	tx   *sql.Tx
	log  logging.Logger
}

// NewPostgresCatalog creates a catalog on conn.
func NewPostgresCatalog(conn *postgres.Connection, log logging.Logger) *PostgresCatalog {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &PostgresCatalog{conn: conn, log: log}
}

func (r *PostgresCatalog) executor() queryExecutor {
	if r.tx != nil {
		return r.tx
	}
	return r.conn.DB()
}

// WithTx returns a catalog bound to tx.
func (r *PostgresCatalog) WithTx(tx *sql.Tx) *PostgresCatalog {
	return &PostgresCatalog{conn: r.conn, tx: tx, log: r.log}
}

const versionColumns = `family, version_date, path, registered_at`

func (r *PostgresCatalog) ListVersions(ctx context.Context, family string, notAfter time.Time) ([]dataset.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM dataset_versions
		WHERE family = $1 AND version_date <= $2
		ORDER BY version_date DESC`
	rows, err := r.executor().QueryContext(ctx, query, family, notAfter.UTC())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list dataset versions")
	}
	defer rows.Close()
	return collectVersions(rows)
}

// ListFamilies returns every version of the given families, newest first
// within each family.
func (r *PostgresCatalog) ListFamilies(ctx context.Context, families []string) ([]dataset.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM dataset_versions`
	var args []interface{}
	if len(families) > 0 {
		query += ` WHERE family = ANY($1)`
		args = append(args, pq.Array(families))
	}
	query += ` ORDER BY family, version_date DESC`

	rows, err := r.executor().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list dataset families")
	}
	defer rows.Close()
	return collectVersions(rows)
}

func (r *PostgresCatalog) Register(ctx context.Context, v dataset.Version) error {
	if v.Family == "" || v.Path == "" || v.Date.IsZero() {
		return errors.InvalidParam("family, date and path are required")
	}
	if v.RegisteredAt.IsZero() {
		v.RegisteredAt = time.Now().UTC()
	}
	query := `
		INSERT INTO dataset_versions (family, version_date, path, registered_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (family, version_date)
		DO UPDATE SET path = EXCLUDED.path, registered_at = EXCLUDED.registered_at
	`
	if _, err := r.executor().ExecContext(ctx, query, v.Family, v.Date.UTC(), v.Path, v.RegisteredAt); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to register dataset version")
	}
	r.log.Info("dataset version registered",
		logging.String("family", v.Family),
		logging.String("date", v.Date.Format("2006-01-02")),
		logging.String("path", v.Path))
	return nil
}

func collectVersions(rows *sql.Rows) ([]dataset.Version, error) {
	var out []dataset.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate dataset versions")
	}
	return out, nil
}

func scanVersion(s scanner) (dataset.Version, error) {
	var v dataset.Version
	if err := s.Scan(&v.Family, &v.Date, &v.Path, &v.RegisteredAt); err != nil {
		return dataset.Version{}, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan dataset version")
	}
	v.Date = v.Date.UTC()
	return v, nil
}

var _ dataset.Catalog = (*PostgresCatalog)(nil)

//Personal.AI order the ending
