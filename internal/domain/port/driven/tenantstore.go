// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"

	"github.com/ericfisherdev/inboxrelay/internal/domain/model"
)

// TenantStore defines the driven port for reading tenant configuration.
// Lookups return (nil, nil) when no row matches; disabled tenants are returned
// as-is so the caller decides how to treat them.
type TenantStore interface {
	// GetByExternalID returns the tenant for a messaging page id together with
	// its owning account in a single read.
	GetByExternalID(ctx context.Context, externalID string) (*model.Tenant, error)

	// GetByWidgetKey returns the tenant owning a public widget key.
	GetByWidgetKey(ctx context.Context, key string) (*model.Tenant, error)

	// ListVerifyTokens returns the sealed verify token of every tenant.
	ListVerifyTokens(ctx context.Context) ([]model.VerifyTokenRow, error)

	// ListAll returns every tenant, ordered by creation time.
	ListAll(ctx context.Context) ([]model.Tenant, error)
}
