// internal/database/migration.go
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationFiles embed.FS

// Migrator handles database migrations
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger.With(zap.String("component", "migrator")),
	}
}

// Up runs all up migrations
func (m *Migrator) Up() error {
	migrator, err := m.createMigrator()
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	m.logger.Info("Catalog migrations completed")
	return nil
}

// Down runs all down migrations
func (m *Migrator) Down() error {
	migrator, err := m.createMigrator()
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}

	m.logger.Info("Catalog migrations rolled back")
	return nil
}

// Version returns the current migration version
func (m *Migrator) Version() (uint, bool, error) {
	migrator, err := m.createMigrator()
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migrator: %w", err)
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}

	return version, dirty, nil
}

// createMigrator binds the embedded migrations of the active dialect.
// The migrate instance is not closed: closing it would close the shared *sql.DB.
func (m *Migrator) createMigrator() (*migrate.Migrate, error) {
	var (
		driver migratedb.Driver
		err    error
	)

	switch m.db.Driver() {
	case DriverPostgres:
		driver, err = postgres.WithInstance(m.db.DB, &postgres.Config{})
	case DriverSQLite:
		driver, err = sqlite.WithInstance(m.db.DB, &sqlite.Config{})
	default:
		err = fmt.Errorf("unsupported driver %s", m.db.Driver())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s migration driver: %w", m.db.Driver(), err)
	}

	source, err := iofs.New(migrationFiles, "migrations/"+m.db.Driver())
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	return migrate.NewWithInstance("iofs", source, m.db.Driver(), driver)
}
