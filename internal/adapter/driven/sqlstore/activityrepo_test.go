package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/inboxrelay/internal/domain/model"
)

func TestActivityRepo_AppendAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRepo(db)
	ctx := context.Background()

	insertAccount(t, db, "acc-1", "USER", 0)
	insertTenant(t, db, tenantRow{id: "t-1", accountID: "acc-1"})

	older := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Append(ctx, model.ActivityLog{
		TenantID: "t-1", Type: model.ActivityAutoReply, Input: "hi", Output: "hello", CreatedAt: older,
	}))
	require.NoError(t, repo.Append(ctx, model.ActivityLog{
		TenantID: "t-1", Type: model.ActivityWidgetReply, Input: "price?", Output: "$5",
	}))

	logs, err := repo.ListByTenant(ctx, "t-1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.Equal(t, model.ActivityWidgetReply, logs[0].Type)
	assert.Equal(t, "price?", logs[0].Input)
	assert.Equal(t, "$5", logs[0].Output)
	assert.NotEmpty(t, logs[0].ID)

	assert.Equal(t, model.ActivityAutoReply, logs[1].Type)
	assert.True(t, older.Equal(logs[1].CreatedAt))
}

func TestActivityRepo_StoresPayloadAsJSON(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRepo(db)
	ctx := context.Background()

	insertAccount(t, db, "acc-1", "USER", 0)
	insertTenant(t, db, tenantRow{id: "t-1", accountID: "acc-1"})

	require.NoError(t, repo.Append(ctx, model.ActivityLog{
		ID: "log-1", TenantID: "t-1", Type: model.ActivityAutoReply, Input: `say "hi"`, Output: "ok",
	}))

	var payload string
	err := db.Reader.QueryRowContext(ctx, `SELECT payload FROM activity_logs WHERE id = ?`, "log-1").Scan(&payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"in":"say \"hi\"","out":"ok"}`, payload)
}

func TestActivityRepo_UnknownTenantFails(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRepo(db)

	err := repo.Append(context.Background(), model.ActivityLog{TenantID: "ghost", Type: model.ActivityAutoReply})
	assert.Error(t, err, "foreign key must reject unknown tenant")
}
