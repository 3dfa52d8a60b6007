package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ericfisherdev/inboxrelay/internal/domain/model"
	"github.com/ericfisherdev/inboxrelay/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TenantStore = (*TenantRepo)(nil)

// TenantRepo is the SQL implementation of the TenantStore port interface.
type TenantRepo struct {
	db *DB
}

// NewTenantRepo creates a new TenantRepo backed by the given DB.
func NewTenantRepo(db *DB) *TenantRepo {
	return &TenantRepo{db: db}
}

const tenantColumns = `t.id, t.account_id, t.name, t.external_id, t.widget_key, t.is_enabled, t.ai_model,
	t.access_token, t.verify_token, t.provider_key, t.allowed_origins, t.knowledge_titles, t.created_at`

// GetByExternalID returns the tenant for a messaging page id joined with its
// owning account. Returns nil, nil if no tenant matches.
func (r *TenantRepo) GetByExternalID(ctx context.Context, externalID string) (*model.Tenant, error) {
	query := r.db.q(`SELECT ` + tenantColumns + `, a.id, a.email, a.role, a.credits
		FROM tenants t LEFT JOIN accounts a ON a.id = t.account_id
		WHERE t.external_id = ?`)

	var (
		accountID sql.NullString
		email     sql.NullString
		role      sql.NullString
		credits   sql.NullInt64
	)
	tenant, err := scanTenant(r.db.Reader.QueryRowContext(ctx, query, externalID), &accountID, &email, &role, &credits)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant by external id %s: %w", externalID, err)
	}

	if accountID.Valid {
		account := &model.Account{
			ID:    accountID.String,
			Email: email.String,
			Role:  model.Role(role.String),
		}
		if credits.Valid {
			c := credits.Int64
			account.Credits = &c
		}
		tenant.Account = account
	}

	return tenant, nil
}

// GetByWidgetKey returns the tenant owning a public widget key. Returns nil,
// nil if no tenant matches.
func (r *TenantRepo) GetByWidgetKey(ctx context.Context, key string) (*model.Tenant, error) {
	query := r.db.q(`SELECT ` + tenantColumns + ` FROM tenants t WHERE t.widget_key = ?`)

	tenant, err := scanTenant(r.db.Reader.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant by widget key: %w", err)
	}

	return tenant, nil
}

// ListVerifyTokens returns the sealed verify token of every tenant that has one.
func (r *TenantRepo) ListVerifyTokens(ctx context.Context) ([]model.VerifyTokenRow, error) {
	const query = `SELECT id, account_id, verify_token FROM tenants
		WHERE verify_token IS NOT NULL AND verify_token <> '' ORDER BY created_at, id`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list verify tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.VerifyTokenRow
	for rows.Next() {
		var row model.VerifyTokenRow
		if err := rows.Scan(&row.TenantID, &row.AccountID, &row.VerifyToken); err != nil {
			return nil, fmt.Errorf("scan verify token: %w", err)
		}
		tokens = append(tokens, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verify tokens: %w", err)
	}

	return tokens, nil
}

// ListAll returns every tenant ordered by creation time.
func (r *TenantRepo) ListAll(ctx context.Context) ([]model.Tenant, error) {
	const query = `SELECT ` + tenantColumns + ` FROM tenants t ORDER BY t.created_at, t.id`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []model.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, *tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenants: %w", err)
	}

	return tenants, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanTenant scans tenantColumns followed by any extra destinations.
func scanTenant(s scanner, extra ...any) (*model.Tenant, error) {
	var (
		t              model.Tenant
		externalID     sql.NullString
		widgetKey      sql.NullString
		accessToken    sql.NullString
		verifyToken    sql.NullString
		providerKey    sql.NullString
		allowedOrigins sql.NullString
		titles         sql.NullString
		createdAt      string
	)

	dest := []any{
		&t.ID, &t.AccountID, &t.Name, &externalID, &widgetKey, &t.Enabled, &t.AIModel,
		&accessToken, &verifyToken, &providerKey, &allowedOrigins, &titles, &createdAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	t.ExternalID = externalID.String
	t.WidgetKey = widgetKey.String
	t.AccessToken = accessToken.String
	t.VerifyToken = verifyToken.String
	t.ProviderKey = providerKey.String

	var err error
	if t.AllowedOrigins, err = decodeStringList(allowedOrigins); err != nil {
		return nil, fmt.Errorf("decode allowed_origins: %w", err)
	}
	if t.KnowledgeFilter, err = decodeStringList(titles); err != nil {
		return nil, fmt.Errorf("decode knowledge_titles: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &t, nil
}

// decodeStringList decodes a JSON array column. NULL and empty values decode
// to a nil slice.
func decodeStringList(col sql.NullString) ([]string, error) {
	if !col.Valid || col.String == "" || col.String == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(col.String), &list); err != nil {
		return nil, err
	}
	return list, nil
}
