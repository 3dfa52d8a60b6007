package model

// KnowledgeEntry is a titled block of free text owned by an account.
type KnowledgeEntry struct {
	ID        int64
	AccountID string
	Title     string
	Content   string
}

// Product is a catalog row owned by an account. Only active products are
// offered to the assistant.
type Product struct {
	ID            int64
	AccountID     string
	Name          string
	Description   string
	Price         float64
	StockQuantity int64
	Active        bool
}
