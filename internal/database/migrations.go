package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"

	"github.com/assessment-results-server/migrations"
)

// SchemaStatus compares the applied schema version with the newest one available.
type SchemaStatus struct {
	Current uint `json:"current"`
	Latest  uint `json:"latest"`
	Dirty   bool `json:"dirty"`
}

// UpToDate reports whether every available migration has been applied cleanly.
func (s SchemaStatus) UpToDate() bool {
	return !s.Dirty && s.Current >= s.Latest
}

// SchemaRunner applies the report_sessions and email_deliveries schema.
// With no directory it uses the schema embedded in the binary.
type SchemaRunner struct {
	m      *migrate.Migrate
	latest uint
	log    *logrus.Logger
}

// NewSchemaRunner opens the migration set in dir, or the embedded one when dir is empty.
func NewSchemaRunner(databaseURL, dir string, logger *logrus.Logger) (*SchemaRunner, error) {
	name, src, err := openSchemaSource(dir)
	if err != nil {
		return nil, err
	}
	latest, err := latestVersion(src)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("reading migration set: %w", err)
	}

	m, err := migrate.NewWithSourceInstance(name, src, databaseURL)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("connecting migration target: %w", err)
	}
	return &SchemaRunner{m: m, latest: latest, log: logger}, nil
}

// EmbeddedSchemaVersion is the newest migration compiled into the binary.
func EmbeddedSchemaVersion() (uint, error) {
	_, src, err := openSchemaSource("")
	if err != nil {
		return 0, err
	}
	defer src.Close()
	return latestVersion(src)
}

func openSchemaSource(dir string) (string, source.Driver, error) {
	if dir == "" {
		src, err := iofs.New(migrations.FS, ".")
		if err != nil {
			return "", nil, fmt.Errorf("opening embedded migrations: %w", err)
		}
		return "iofs", src, nil
	}
	src, err := source.Open("file://" + dir)
	if err != nil {
		return "", nil, fmt.Errorf("opening migrations in %s: %w", dir, err)
	}
	return "file", src, nil
}

// latestVersion walks the source to its last migration; an empty set is version 0.
func latestVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, err
		}
		v = next
	}
}

// Up applies every pending migration.
func (r *SchemaRunner) Up(ctx context.Context) error {
	err := r.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		r.log.Debug("Schema already current")
		return nil
	}
	if err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	r.report("Schema upgraded")
	return nil
}

// Down reverts the most recent migration.
func (r *SchemaRunner) Down(ctx context.Context) error {
	err := r.m.Steps(-1)
	if errors.Is(err, migrate.ErrNoChange) || errors.Is(err, fs.ErrNotExist) {
		r.log.Debug("No schema migration to revert")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reverting schema: %w", err)
	}
	r.report("Schema migration reverted")
	return nil
}

// Status returns the applied and newest schema versions. A fresh database is version 0.
func (r *SchemaRunner) Status() (SchemaStatus, error) {
	status := SchemaStatus{Latest: r.latest}
	current, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return status, nil
	}
	if err != nil {
		return status, fmt.Errorf("reading schema version: %w", err)
	}
	status.Current, status.Dirty = current, dirty
	return status, nil
}

func (r *SchemaRunner) report(msg string) {
	status, err := r.Status()
	if err != nil {
		r.log.WithError(err).Warn(msg)
		return
	}
	r.log.WithFields(logrus.Fields{
		"version": status.Current,
		"latest":  status.Latest,
		"dirty":   status.Dirty,
	}).Info(msg)
}

// Close releases the migration source and database handles.
func (r *SchemaRunner) Close() error {
	srcErr, dbErr := r.m.Close()
	return errors.Join(srcErr, dbErr)
}
