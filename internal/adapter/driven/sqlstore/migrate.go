package sqlstore

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// RunMigrations applies all pending migrations for the database's dialect on
// the writer connection. It is safe to call on every startup; already-applied
// migrations are skipped.
func RunMigrations(db *DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations/"+db.dialect.Name())
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	var (
		dbDriver database.Driver
		name     string
	)
	switch db.dialect.Name() {
	case "postgres":
		dbDriver, err = migratepgx.WithInstance(db.Writer, &migratepgx.Config{})
		name = "pgx5"
	default:
		dbDriver, err = migratesqlite.WithInstance(db.Writer, &migratesqlite.Config{})
		name = "sqlite"
	}
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, name, dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
