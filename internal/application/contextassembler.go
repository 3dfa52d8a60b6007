package application

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ericfisherdev/inboxrelay/internal/domain/model"
	"github.com/ericfisherdev/inboxrelay/internal/domain/port/driven"
)

const catalogHeader = "\n\nPRODUCT CATALOG:\n"

// ContextAssembler builds the knowledge text handed to the completion
// provider. Store failures degrade the output instead of failing the caller.
type ContextAssembler struct {
	knowledge driven.KnowledgeStore
	products  driven.ProductStore
	logger    *slog.Logger
}

// NewContextAssembler creates a new ContextAssembler with the required dependencies.
func NewContextAssembler(knowledge driven.KnowledgeStore, products driven.ProductStore, logger *slog.Logger) *ContextAssembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextAssembler{
		knowledge: knowledge,
		products:  products,
		logger:    logger,
	}
}

// Assemble joins the account's knowledge entry contents with blank lines and
// appends a product catalog block when the account has active products. A
// non-empty titles restricts knowledge entries to those exact titles.
func (a *ContextAssembler) Assemble(ctx context.Context, accountID string, titles []string) string {
	var b strings.Builder

	entries, err := a.knowledge.ListByAccount(ctx, accountID, titles)
	if err != nil {
		a.logger.Warn("knowledge lookup failed, continuing without knowledge",
			"account_id", accountID, "error", err)
	}
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(e.Content)
	}

	products, err := a.products.ListActive(ctx, accountID)
	if err != nil {
		a.logger.Warn("product lookup failed, continuing without catalog",
			"account_id", accountID, "error", err)
		products = nil
	}
	if len(products) > 0 {
		b.WriteString(catalogHeader)
		for i, p := range products {
			if i > 0 {
				b.WriteByte('\n')
			}
			writeProductLine(&b, p)
		}
	}

	return b.String()
}

// writeProductLine renders "- name: description (Price: $price, Stock: n)".
func writeProductLine(b *strings.Builder, p model.Product) {
	b.WriteString("- ")
	b.WriteString(p.Name)
	b.WriteString(": ")
	b.WriteString(p.Description)
	b.WriteString(" (Price: $")
	b.WriteString(strconv.FormatFloat(p.Price, 'f', -1, 64))
	b.WriteString(", Stock: ")
	b.WriteString(strconv.FormatInt(p.StockQuantity, 10))
	b.WriteString(")")
}
