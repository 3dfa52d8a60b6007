// Package sqlstore implements the relay's driven storage ports on top of
// database/sql, backed by SQLite (modernc) or PostgreSQL (pgx).
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Config selects the backend and its connection string. For SQLite the DSN is
// a file path.
type Config struct {
	Driver string
	DSN    string
}

// DB provides reader/writer connections. For SQLite the writer is limited to a
// single connection to avoid "database is locked" errors and the reader pool
// allows up to 4 concurrent readers, both with WAL mode enabled. For
// PostgreSQL both fields share one pool.
type DB struct {
	Writer  *sql.DB
	Reader  *sql.DB
	dialect Dialect
}

// NewDB opens the configured database and verifies connectivity.
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	d, err := DialectFromDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}

	switch d.Name() {
	case "postgres":
		return openPostgres(ctx, d, cfg.DSN)
	default:
		return openSQLite(ctx, d, cfg.DSN)
	}
}

func openSQLite(ctx context.Context, d Dialect, dbPath string) (*DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		dbPath,
	)

	writer, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	if err := writer.PingContext(ctx); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("ping writer: %w", err)
	}

	reader, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(4)

	if err := reader.PingContext(ctx); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("ping reader: %w", err)
	}

	return &DB{Writer: writer, Reader: reader, dialect: d}, nil
}

// openPostgres retries the initial ping because the database container may
// still be starting.
func openPostgres(ctx context.Context, d Dialect, dsn string) (*DB, error) {
	pool, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pool.SetMaxOpenConns(20)
	pool.SetMaxIdleConns(2)
	pool.SetConnMaxLifetime(30 * time.Minute)
	pool.SetConnMaxIdleTime(5 * time.Minute)

	const attempts = 10
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = pool.PingContext(ctx); err == nil {
			slog.Info("postgres connected", "attempt", attempt)
			return &DB{Writer: pool, Reader: pool, dialect: d}, nil
		}
		slog.Warn("postgres ping failed", "attempt", attempt, "max", attempts, "error", err)

		select {
		case <-ctx.Done():
			_ = pool.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	_ = pool.Close()
	return nil, fmt.Errorf("connect postgres after %d attempts: %w", attempts, err)
}

// Dialect returns the SQL dialect of the open database.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Close closes both connections. Returns the first error encountered.
func (db *DB) Close() error {
	var firstErr error

	if db.Reader != db.Writer {
		if err := db.Reader.Close(); err != nil {
			firstErr = fmt.Errorf("close reader: %w", err)
		}
	}

	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}

	return firstErr
}

// q rebinds a ?-style query for the open dialect.
func (db *DB) q(query string) string {
	return db.dialect.Rebind(query)
}
