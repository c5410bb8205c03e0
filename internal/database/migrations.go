package database

import (
	"context"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
)

// MigrationRunner applies the SQL migrations shipped in migrations/.
type MigrationRunner struct {
	migrate *migrate.Migrate
	log     *logrus.Logger
}

// MigrationStatus describes the current schema version.
type MigrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// NewMigrationRunner builds a runner reading migrations from the given
// directory and applying them to the database at databaseURL.
func NewMigrationRunner(databaseURL, migrationsPath string, logger *logrus.Logger) (*MigrationRunner, error) {
	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}
	return &MigrationRunner{migrate: m, log: logger}, nil
}

// Up applies all pending migrations.
func (r *MigrationRunner) Up(ctx context.Context) error {
	r.log.Info("Running database migrations up")

	if err := r.migrate.Up(); err != nil {
		if err == migrate.ErrNoChange {
			r.log.Info("No pending migrations to run")
			return nil
		}
		return fmt.Errorf("running migrations up: %w", err)
	}

	r.logSchemaVersion("Migrations applied")
	return nil
}

// Down rolls back the most recent migration.
func (r *MigrationRunner) Down(ctx context.Context) error {
	r.log.Info("Rolling back one migration")

	if err := r.migrate.Steps(-1); err != nil {
		if err == migrate.ErrNoChange {
			r.log.Info("No migrations to roll back")
			return nil
		}
		return fmt.Errorf("rolling back migration: %w", err)
	}

	r.logSchemaVersion("Migration rolled back")
	return nil
}

func (r *MigrationRunner) logSchemaVersion(msg string) {
	status, err := r.Status()
	if err != nil {
		r.log.WithError(err).Warn("Could not read schema version")
		return
	}
	r.log.WithFields(logrus.Fields{
		"version": status.Version,
		"dirty":   status.Dirty,
	}).Info(msg)
}

// Status returns the current schema version. A database with no applied
// migrations reports version zero.
func (r *MigrationRunner) Status() (MigrationStatus, error) {
	version, dirty, err := r.migrate.Version()
	if err == migrate.ErrNilVersion {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("reading migration version: %w", err)
	}
	return MigrationStatus{Version: version, Dirty: dirty}, nil
}

// Close releases the runner's source and database handles.
func (r *MigrationRunner) Close() error {
	sourceErr, dbErr := r.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("closing migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing migration database: %w", dbErr)
	}
	return nil
}
