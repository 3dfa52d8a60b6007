package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the differences between the supported SQL backends. Queries
// are written with ? placeholders and rebound per dialect.
type Dialect interface {
	// Name returns the dialect name ("sqlite", "postgres").
	Name() string

	// DriverName returns the database/sql driver name to open.
	DriverName() string

	// Rebind converts ? placeholders to the dialect's format.
	Rebind(query string) string
}

// DialectFromDriver returns the dialect for a configured driver name.
func DialectFromDriver(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return sqliteDialect{}, nil
	case "postgres", "postgresql", "pgx":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string               { return "sqlite" }
func (sqliteDialect) DriverName() string         { return "sqlite" }
func (sqliteDialect) Rebind(query string) string { return query }

type postgresDialect struct{}

func (postgresDialect) Name() string       { return "postgres" }
func (postgresDialect) DriverName() string { return "pgx" }

// Rebind converts ? placeholders to $1, $2, ... Queries in this package never
// contain a literal question mark.
func (postgresDialect) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	idx := 1
	for _, ch := range query {
		if ch == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(idx))
			idx++
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
