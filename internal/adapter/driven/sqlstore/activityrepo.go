package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/inboxrelay/internal/domain/model"
	"github.com/ericfisherdev/inboxrelay/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ActivityStore = (*ActivityRepo)(nil)

// activityPayload is the stored JSON shape of an exchange.
type activityPayload struct {
	In  string `json:"in"`
	Out string `json:"out"`
}

// ActivityRepo is the SQL implementation of the ActivityStore port interface.
type ActivityRepo struct {
	db *DB
}

// NewActivityRepo creates a new ActivityRepo backed by the given DB.
func NewActivityRepo(db *DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

// Append inserts a log row. A missing ID or timestamp is filled in.
func (r *ActivityRepo) Append(ctx context.Context, entry model.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	payload, err := json.Marshal(activityPayload{In: entry.Input, Out: entry.Output})
	if err != nil {
		return fmt.Errorf("marshal activity payload: %w", err)
	}

	query := r.db.q(`INSERT INTO activity_logs (id, tenant_id, type, payload, created_at) VALUES (?, ?, ?, ?, ?)`)
	_, err = r.db.Writer.ExecContext(ctx, query, entry.ID, entry.TenantID, string(entry.Type), string(payload), createdAt.UTC())
	if err != nil {
		return fmt.Errorf("append activity for tenant %s: %w", entry.TenantID, err)
	}

	return nil
}

// ListByTenant returns a tenant's log rows, newest first, up to limit rows.
func (r *ActivityRepo) ListByTenant(ctx context.Context, tenantID string, limit int) ([]model.ActivityLog, error) {
	query := r.db.q(`SELECT id, tenant_id, type, payload, created_at FROM activity_logs
		WHERE tenant_id = ? ORDER BY created_at DESC LIMIT ?`)

	rows, err := r.db.Reader.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	var logs []model.ActivityLog
	for rows.Next() {
		var (
			entry     model.ActivityLog
			typ       string
			payload   string
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &entry.TenantID, &typ, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}

		var p activityPayload
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("decode activity payload %s: %w", entry.ID, err)
		}
		entry.Type = model.ActivityType(typ)
		entry.Input, entry.Output = p.In, p.Out

		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}

	return logs, nil
}
