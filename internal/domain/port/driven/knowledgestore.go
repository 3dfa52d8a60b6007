package driven

import (
	"context"

	"github.com/ericfisherdev/inboxrelay/internal/domain/model"
)

// KnowledgeStore defines the driven port for knowledge entries.
type KnowledgeStore interface {
	// ListByAccount returns the account's entries. When titles is non-empty only
	// entries whose title exactly matches one of them are returned.
	ListByAccount(ctx context.Context, accountID string, titles []string) ([]model.KnowledgeEntry, error)

	// AddIfMissing inserts the entry unless the account already has one with the
	// same title. It reports whether a row was inserted.
	AddIfMissing(ctx context.Context, entry model.KnowledgeEntry) (bool, error)
}

// ProductStore defines the driven port for the product catalog.
type ProductStore interface {
	// ListActive returns the account's active products.
	ListActive(ctx context.Context, accountID string) ([]model.Product, error)
}
