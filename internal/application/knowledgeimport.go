package application

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ericfisherdev/inboxrelay/internal/domain/model"
	"github.com/ericfisherdev/inboxrelay/internal/domain/port/driven"
)

// ImportSummary counts the outcome of a knowledge import.
type ImportSummary struct {
	Added   []string
	Skipped []string
}

// KnowledgeImporter seeds an account's knowledge base from Markdown files.
type KnowledgeImporter struct {
	store  driven.KnowledgeStore
	logger *slog.Logger
}

// NewKnowledgeImporter creates a new KnowledgeImporter.
func NewKnowledgeImporter(store driven.KnowledgeStore, logger *slog.Logger) *KnowledgeImporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &KnowledgeImporter{store: store, logger: logger}
}

// Import adds one entry per top-level .md file in fsys, titled after the file
// name. Titles the account already has are left untouched.
func (k *KnowledgeImporter) Import(ctx context.Context, accountID string, fsys fs.FS) (ImportSummary, error) {
	var summary ImportSummary

	if accountID == "" {
		return summary, fmt.Errorf("import knowledge: account id is required")
	}

	files, err := fs.Glob(fsys, "*.md")
	if err != nil {
		return summary, fmt.Errorf("list markdown files: %w", err)
	}
	sort.Strings(files)

	for _, name := range files {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return summary, fmt.Errorf("read %s: %w", name, err)
		}

		title := TitleFromFilename(name)
		added, err := k.store.AddIfMissing(ctx, model.KnowledgeEntry{
			AccountID: accountID,
			Title:     title,
			Content:   strings.TrimSpace(string(content)),
		})
		if err != nil {
			return summary, fmt.Errorf("import %s: %w", name, err)
		}

		if added {
			summary.Added = append(summary.Added, title)
			k.logger.Info("knowledge entry added", "account_id", accountID, "title", title)
		} else {
			summary.Skipped = append(summary.Skipped, title)
			k.logger.Debug("knowledge entry exists, skipped", "account_id", accountID, "title", title)
		}
	}

	return summary, nil
}

// TitleFromFilename turns "shipping-and_returns.md" into "Shipping And Returns".
func TitleFromFilename(name string) string {
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
