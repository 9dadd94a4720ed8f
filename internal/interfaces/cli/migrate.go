package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/config"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/database/postgres"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// Migrator applies the schema migrations of a database URL.
type Migrator interface {
	Up(dbURL, path string) error
	Down(dbURL, path string, steps int) error
	Status(dbURL, path string) (version uint, dirty bool, err error)
}

type migrateRunner struct{}

func (migrateRunner) Up(dbURL, path string) error { return postgres.MigrateUp(dbURL, path) }
func (migrateRunner) Down(dbURL, path string, steps int) error {
	return postgres.MigrateDown(dbURL, path, steps)
}
func (migrateRunner) Status(dbURL, path string) (uint, bool, error) {
	return postgres.MigrationStatus(dbURL, path)
}

// migrator is replaced in tests.
var migrator Migrator = migrateRunner{}

// MigrationState is the printed result of migrate status.
type MigrationState struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func (s MigrationState) String() string {
	if s.Dirty {
		return fmt.Sprintf("schema version %d (dirty)", s.Version)
	}
	return fmt.Sprintf("schema version %d", s.Version)
}

func newMigrateCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the catalog and run-history schema",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "migrations directory (default database.migration_path)")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, path, func(log logging.Logger, dbURL, dir string) error {
				if err := migrator.Up(dbURL, dir); err != nil {
					return errors.Wrap(err, errors.ErrCodeDatabaseError, "migrate up")
				}
				log.Info("migrations applied", logging.String("path", dir))
				return PrintResult(cmd, "migrations applied")
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return errors.InvalidParam("--steps must be at least 1")
			}
			return withDatabase(cmd, path, func(log logging.Logger, dbURL, dir string) error {
				if err := migrator.Down(dbURL, dir, steps); err != nil {
					return errors.Wrap(err, errors.ErrCodeDatabaseError, "migrate down")
				}
				log.Info("migrations rolled back", logging.Int("steps", steps))
				return PrintResult(cmd, fmt.Sprintf("rolled back %d migration(s)", steps))
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, path, func(_ logging.Logger, dbURL, dir string) error {
				version, dirty, err := migrator.Status(dbURL, dir)
				if err != nil {
					return errors.Wrap(err, errors.ErrCodeDatabaseError, "migrate status")
				}
				return PrintResult(cmd, MigrationState{Version: version, Dirty: dirty})
			})
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

// withDatabase resolves the database URL and migrations directory for fn.
func withDatabase(cmd *cobra.Command, path string, fn func(log logging.Logger, dbURL, dir string) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	db := cliCtx.Config.Database
	if !db.Enabled {
		return errors.Precondition("migrations require database.enabled")
	}
	if path == "" {
		path = db.MigrationPath
	}
	if path == "" {
		path = config.DefaultMigrationPath
	}
	return fn(cliCtx.Logger, postgres.DSN(db), path)
}

//Personal.AI order the ending
