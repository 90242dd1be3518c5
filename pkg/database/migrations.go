package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver used by the migration runner
	"go.uber.org/zap"
)

// MigrationState describes the schema version of the catalog store.
type MigrationState struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// migrator wraps one golang-migrate instance bound to a database/sql handle.
type migrator struct {
	m      *migrate.Migrate
	logger *zap.Logger
}

func newMigrator(db *sql.DB, migrationsPath string, logger *zap.Logger) (*migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return &migrator{m: m, logger: logger}, nil
}

func (mg *migrator) close() {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil {
		mg.logger.Warn("Failed to close migration source", zap.Error(srcErr))
	}
	if dbErr != nil {
		mg.logger.Warn("Failed to close migration database", zap.Error(dbErr))
	}
}

func (mg *migrator) state() (MigrationState, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationState{}, nil
	}
	if err != nil {
		return MigrationState{}, fmt.Errorf("failed to read migration version: %w", err)
	}
	return MigrationState{Version: v, Dirty: dirty}, nil
}

// RunMigrations applies pending catalog store migrations from migrationsPath.
// Calling it on an up-to-date store is a no-op.
func RunMigrations(db *sql.DB, migrationsPath string, logger *zap.Logger) error {
	mg, err := newMigrator(db, migrationsPath, logger)
	if err != nil {
		return err
	}
	defer mg.close()

	err = mg.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No migrations to apply (catalog store up-to-date)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	st, _ := mg.state()
	logger.Info("Applied migrations successfully", zap.Uint("version", st.Version))
	return nil
}

// RollbackMigrations reverts the last steps migrations.
func RollbackMigrations(db *sql.DB, migrationsPath string, steps int, logger *zap.Logger) error {
	if steps < 1 {
		return fmt.Errorf("rollback steps must be positive, got %d", steps)
	}
	mg, err := newMigrator(db, migrationsPath, logger)
	if err != nil {
		return err
	}
	defer mg.close()

	if err := mg.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	st, _ := mg.state()
	logger.Info("Rolled back migrations", zap.Int("steps", steps), zap.Uint("version", st.Version))
	return nil
}

// MigrationStatus reports the current schema version without changing it.
func MigrationStatus(db *sql.DB, migrationsPath string, logger *zap.Logger) (MigrationState, error) {
	mg, err := newMigrator(db, migrationsPath, logger)
	if err != nil {
		return MigrationState{}, err
	}
	defer mg.close()
	return mg.state()
}

// OpenMigrationDB opens a short-lived database/sql handle for the migration runner.
func OpenMigrationDB(url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open migration connection: %w", err)
	}
	return db, nil
}

// RunMigrationsFromURL applies pending migrations over a short-lived connection.
func RunMigrationsFromURL(url, migrationsPath string, logger *zap.Logger) error {
	db, err := OpenMigrationDB(url)
	if err != nil {
		return err
	}
	defer db.Close()
	return RunMigrations(db, migrationsPath, logger)
}
