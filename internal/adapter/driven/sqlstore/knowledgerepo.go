package sqlstore

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/inboxrelay/internal/domain/model"
	"github.com/ericfisherdev/inboxrelay/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.KnowledgeStore = (*KnowledgeRepo)(nil)
	_ driven.ProductStore   = (*ProductRepo)(nil)
)

// KnowledgeRepo is the SQL implementation of the KnowledgeStore port interface.
type KnowledgeRepo struct {
	db *DB
}

// NewKnowledgeRepo creates a new KnowledgeRepo backed by the given DB.
func NewKnowledgeRepo(db *DB) *KnowledgeRepo {
	return &KnowledgeRepo{db: db}
}

// ListByAccount returns the account's knowledge entries in insertion order,
// restricted to exact title matches when titles is non-empty.
func (r *KnowledgeRepo) ListByAccount(ctx context.Context, accountID string, titles []string) ([]model.KnowledgeEntry, error) {
	query := `SELECT id, account_id, title, content FROM knowledge_entries WHERE account_id = ?`
	args := []any{accountID}
	if len(titles) > 0 {
		query += ` AND title IN (` + placeholders(len(titles)) + `)`
		for _, title := range titles {
			args = append(args, title)
		}
	}
	query += ` ORDER BY id`

	rows, err := r.db.Reader.QueryContext(ctx, r.db.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list knowledge for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var entries []model.KnowledgeEntry
	for rows.Next() {
		var e model.KnowledgeEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Title, &e.Content); err != nil {
			return nil, fmt.Errorf("scan knowledge entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge entries: %w", err)
	}

	return entries, nil
}

// AddIfMissing inserts entry unless the account already has an entry with the
// same title. It reports whether a row was inserted.
func (r *KnowledgeRepo) AddIfMissing(ctx context.Context, entry model.KnowledgeEntry) (bool, error) {
	query := r.db.q(`INSERT INTO knowledge_entries (account_id, title, content)
		SELECT ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM knowledge_entries WHERE account_id = ? AND title = ?)`)

	result, err := r.db.Writer.ExecContext(ctx, query,
		entry.AccountID, entry.Title, entry.Content, entry.AccountID, entry.Title)
	if err != nil {
		return false, fmt.Errorf("add knowledge entry %q: %w", entry.Title, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}

	return rows == 1, nil
}

// ProductRepo is the SQL implementation of the ProductStore port interface.
type ProductRepo struct {
	db *DB
}

// NewProductRepo creates a new ProductRepo backed by the given DB.
func NewProductRepo(db *DB) *ProductRepo {
	return &ProductRepo{db: db}
}

// ListActive returns the account's active products in insertion order.
func (r *ProductRepo) ListActive(ctx context.Context, accountID string) ([]model.Product, error) {
	query := r.db.q(`SELECT id, account_id, name, description, price, stock_quantity, is_active
		FROM products WHERE account_id = ? AND is_active = ? ORDER BY id`)

	rows, err := r.db.Reader.QueryContext(ctx, query, accountID, true)
	if err != nil {
		return nil, fmt.Errorf("list products for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.AccountID, &p.Name, &p.Description, &p.Price, &p.StockQuantity, &p.Active); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}
