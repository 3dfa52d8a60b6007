package sqlstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/inboxrelay/internal/domain/model"
)

func TestTenantRepo_GetByExternalID_JoinsAccount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTenantRepo(db)
	ctx := context.Background()

	insertAccount(t, db, "acc-1", "USER", 3)
	insertTenant(t, db, tenantRow{
		id: "t-1", accountID: "acc-1", name: "Bakery", externalID: "page-1", widgetKey: "wk-1",
		enabled: true, model: "openai/gpt-4o", accessToken: "enc:a:b:c", verifyToken: "verify",
		providerKey: nil, allowedOrigins: `["shop.example.com"]`, knowledgeTitles: `["Hours","Menu"]`,
	})

	tenant, err := repo.GetByExternalID(ctx, "page-1")
	require.NoError(t, err)
	require.NotNil(t, tenant)

	assert.Equal(t, "t-1", tenant.ID)
	assert.Equal(t, "Bakery", tenant.Name)
	assert.True(t, tenant.Enabled)
	assert.Equal(t, "openai/gpt-4o", tenant.AIModel)
	assert.Equal(t, "enc:a:b:c", tenant.AccessToken)
	assert.Equal(t, "verify", tenant.VerifyToken)
	assert.Equal(t, "", tenant.ProviderKey)
	assert.Equal(t, []string{"shop.example.com"}, tenant.AllowedOrigins)
	assert.Equal(t, []string{"Hours", "Menu"}, tenant.KnowledgeFilter)

	require.NotNil(t, tenant.Account)
	assert.Equal(t, "acc-1", tenant.Account.ID)
	assert.Equal(t, model.RoleUser, tenant.Account.Role)
	assert.Equal(t, int64(3), tenant.Account.Balance())
}

func TestTenantRepo_GetByExternalID_NullCredits(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTenantRepo(db)

	insertAccount(t, db, "acc-1", "ADMIN", nil)
	insertTenant(t, db, tenantRow{id: "t-1", accountID: "acc-1", externalID: "page-1", enabled: true})

	tenant, err := repo.GetByExternalID(context.Background(), "page-1")
	require.NoError(t, err)
	require.NotNil(t, tenant.Account)
	assert.Nil(t, tenant.Account.Credits)
	assert.True(t, tenant.Account.IsElevated())
}

func TestTenantRepo_GetByExternalID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTenantRepo(db)

	tenant, err := repo.GetByExternalID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, tenant)
}

func TestTenantRepo_GetByExternalID_ReturnsDisabled(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTenantRepo(db)

	insertAccount(t, db, "acc-1", "USER", 1)
	insertTenant(t, db, tenantRow{id: "t-1", accountID: "acc-1", externalID: "page-1", enabled: false})

	tenant, err := repo.GetByExternalID(context.Background(), "page-1")
	require.NoError(t, err)
	require.NotNil(t, tenant)
	assert.False(t, tenant.Enabled)
}

func TestTenantRepo_GetByWidgetKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTenantRepo(db)
	ctx := context.Background()

	insertAccount(t, db, "acc-1", "USER", 0)
	insertTenant(t, db, tenantRow{
		id: "t-1", accountID: "acc-1", name: "Shop", widgetKey: "wk-1", enabled: true,
		allowedOrigins: `["https://shop.example.com"]`,
	})

	tenant, err := repo.GetByWidgetKey(ctx, "wk-1")
	require.NoError(t, err)
	require.NotNil(t, tenant)
	assert.Equal(t, "Shop", tenant.Name)
	assert.Equal(t, []string{"https://shop.example.com"}, tenant.AllowedOrigins)
	assert.Empty(t, tenant.KnowledgeFilter)
	assert.Nil(t, tenant.Account, "widget lookup does not join the account")

	missing, err := repo.GetByWidgetKey(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTenantRepo_ListVerifyTokens(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTenantRepo(db)

	insertAccount(t, db, "acc-1", "USER", 0)
	insertAccount(t, db, "acc-2", "USER", 0)
	insertTenant(t, db, tenantRow{id: "t-1", accountID: "acc-1", verifyToken: "v1", createdAt: "2026-01-01 00:00:00"})
	insertTenant(t, db, tenantRow{id: "t-2", accountID: "acc-2", verifyToken: "v2", createdAt: "2026-01-02 00:00:00"})
	insertTenant(t, db, tenantRow{id: "t-3", accountID: "acc-2", verifyToken: nil})
	insertTenant(t, db, tenantRow{id: "t-4", accountID: "acc-2", verifyToken: ""})

	rows, err := repo.ListVerifyTokens(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, model.VerifyTokenRow{TenantID: "t-1", AccountID: "acc-1", VerifyToken: "v1"}, rows[0])
	assert.Equal(t, model.VerifyTokenRow{TenantID: "t-2", AccountID: "acc-2", VerifyToken: "v2"}, rows[1])
}

func TestTenantRepo_ListAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTenantRepo(db)

	insertAccount(t, db, "acc-1", "USER", 0)
	insertTenant(t, db, tenantRow{id: "t-2", accountID: "acc-1", createdAt: "2026-02-01 00:00:00"})
	insertTenant(t, db, tenantRow{id: "t-1", accountID: "acc-1", createdAt: "2026-01-01 00:00:00"})

	tenants, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, tenants, 2)
	assert.Equal(t, "t-1", tenants[0].ID)
	assert.Equal(t, "t-2", tenants[1].ID)
	assert.Equal(t, 2026, tenants[0].CreatedAt.Year())
}
