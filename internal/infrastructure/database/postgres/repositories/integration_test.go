//go:build integration

// Package repositories_test runs the PostgreSQL repositories against a real
// database. Tests require Docker and are gated behind the "integration"
// build tag.
package repositories_test

import (
	"context"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/config"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/dataset"
	jobdomain "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/database/postgres"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/database/postgres/repositories"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/types/common"
)

// startPostgres launches a PostgreSQL 16 container, applies the migrations
// and returns its configuration.
func startPostgres(t *testing.T) config.DatabaseConfig {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "scl_stats_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	p, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	cfg := config.DatabaseConfig{Host: host, Port: p, User: "test", Password: "test", DBName: "scl_stats_test", SSLMode: "disable"}
	require.NoError(t, postgres.MigrateUp(postgres.DSN(cfg), migrationsDir(t)))
	return cfg
}

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "..", "migrations")
}

func TestIntegration_Migrations(t *testing.T) {
	cfg := startPostgres(t)
	dsn := postgres.DSN(cfg)

	version, dirty, err := postgres.MigrationStatus(dsn, migrationsDir(t))
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)

	require.NoError(t, postgres.MigrateUp(dsn, migrationsDir(t)))
	require.NoError(t, postgres.MigrateDown(dsn, migrationsDir(t), 1))
	version, _, err = postgres.MigrationStatus(dsn, migrationsDir(t))
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestIntegration_Catalog(t *testing.T) {
	cfg := startPostgres(t)
	conn, err := postgres.NewConnection(cfg, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.RunMigrations(migrationsDir(t)))
	catalog := repositories.NewPostgresCatalog(conn, nil)
	ctx := context.Background()

	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, catalog.Register(ctx, dataset.Version{Family: "scl_species", Date: jan, Path: "old"}))
	require.NoError(t, catalog.Register(ctx, dataset.Version{Family: "scl_species", Date: jan, Path: "replaced"}))
	require.NoError(t, catalog.Register(ctx, dataset.Version{Family: "scl_species", Date: jun, Path: "later"}))

	got, err := catalog.ListVersions(ctx, "scl_species", jan)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "replaced", got[0].Path)
	assert.True(t, jan.Equal(got[0].Date))

	all, err := catalog.ListFamilies(ctx, []string{"scl_species"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	resolver := dataset.NewResolver(catalog, nil)
	r, err := resolver.Resolve(ctx, dataset.InputSpec{Key: "scl_species", Kind: dataset.KindFeatureCollection, Path: "scl_species", MaxAgeYears: 1}, jun)
	require.NoError(t, err)
	assert.Equal(t, "later", r.Path)
}

func TestIntegration_Runs(t *testing.T) {
	cfg := startPostgres(t)
	pool, err := postgres.NewConnectionPool(cfg, nil)
	require.NoError(t, err)
	defer postgres.Close(pool)
	repo := repositories.NewRunRepo(pool, nil)
	ctx := context.Background()

	run, err := jobdomain.NewRun(jobdomain.RunConfig{
		Species:  "Panthera_tigris",
		Scenario: "canonical",
		TaskDate: common.NewTaskDate(2024, time.January, 1),
		Bucket:   "scl-pipeline",
	})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, run))

	require.NoError(t, run.TransitionTo(jobdomain.StatusRunning, ""))
	run.AddJob("job-1")
	require.NoError(t, run.TransitionTo(jobdomain.StatusComplete, ""))
	require.NoError(t, repo.Save(ctx, run))

	got, err := repo.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, jobdomain.StatusComplete, got.Status)
	assert.Equal(t, []string{"job-1"}, got.JobIDs)
	assert.Len(t, got.History, 2)
	require.NotNil(t, got.FinishedAt)

	recent, err := repo.ListRecent(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	_, err = repo.Get(ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

//Personal.AI order the ending
