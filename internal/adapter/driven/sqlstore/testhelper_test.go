package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"
)

// setupTestDB creates a named shared in-memory SQLite database for testing.
// Writer and reader connections share the same in-memory database via cache=shared.
// A unique name derived from t.Name() ensures isolation between parallel tests.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	safeName := url.PathEscape(t.Name())
	// WAL mode is not applicable to in-memory databases; omit journal_mode pragma.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		safeName,
	)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("create test db writer: %v", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(context.Background()); err != nil {
		_ = writer.Close()
		t.Fatalf("ping test db writer: %v", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("create test db reader: %v", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.PingContext(context.Background()); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		t.Fatalf("ping test db reader: %v", err)
	}

	db := &DB{Writer: writer, Reader: reader, dialect: sqliteDialect{}}

	if err := RunMigrations(db); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// mustExec runs a seeding statement on the writer connection.
func mustExec(t *testing.T, db *DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Writer.ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func insertAccount(t *testing.T, db *DB, id, role string, credits any) {
	t.Helper()
	mustExec(t, db, `INSERT INTO accounts (id, email, role, credits) VALUES (?, ?, ?, ?)`,
		id, id+"@example.com", role, credits)
}

type tenantRow struct {
	id, accountID, name, externalID, widgetKey string
	enabled                                    bool
	model                                      string
	accessToken, verifyToken, providerKey      any
	allowedOrigins, knowledgeTitles            string
	createdAt                                  string
}

func insertTenant(t *testing.T, db *DB, row tenantRow) {
	t.Helper()
	if row.allowedOrigins == "" {
		row.allowedOrigins = "[]"
	}
	if row.knowledgeTitles == "" {
		row.knowledgeTitles = "[]"
	}
	if row.createdAt == "" {
		row.createdAt = "2026-01-01 00:00:00"
	}
	var externalID, widgetKey any
	if row.externalID != "" {
		externalID = row.externalID
	}
	if row.widgetKey != "" {
		widgetKey = row.widgetKey
	}
	mustExec(t, db, `INSERT INTO tenants (id, account_id, name, external_id, widget_key, is_enabled, ai_model,
		access_token, verify_token, provider_key, allowed_origins, knowledge_titles, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.id, row.accountID, row.name, externalID, widgetKey, row.enabled, row.model,
		row.accessToken, row.verifyToken, row.providerKey, row.allowedOrigins, row.knowledgeTitles, row.createdAt)
}
