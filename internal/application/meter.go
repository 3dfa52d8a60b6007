package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/ericfisherdev/inboxrelay/internal/domain/model"
	"github.com/ericfisherdev/inboxrelay/internal/domain/port/driven"
)

// UsageMeter gates replies on the owning account's credit balance, charges
// for delivered replies, and records every exchange.
type UsageMeter struct {
	accounts driven.AccountStore
	activity driven.ActivityStore
	logger   *slog.Logger
}

// NewUsageMeter creates a new UsageMeter with the required dependencies.
func NewUsageMeter(accounts driven.AccountStore, activity driven.ActivityStore, logger *slog.Logger) *UsageMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageMeter{accounts: accounts, activity: activity, logger: logger}
}

// CheckCredits reports whether the account may receive a reply. Admins always
// may; everyone else needs a positive balance. A nil account counts as a
// standard account with no credits.
func (m *UsageMeter) CheckCredits(account *model.Account) bool {
	if account.IsElevated() {
		return true
	}
	return account.Balance() > 0
}

// LogActivity appends an exchange to the tenant's activity log. Failures are
// logged and swallowed.
func (m *UsageMeter) LogActivity(ctx context.Context, tenantID string, typ model.ActivityType, in, out string) {
	err := m.activity.Append(ctx, model.ActivityLog{
		TenantID:  tenantID,
		Type:      typ,
		Input:     in,
		Output:    out,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		m.logger.Error("activity log append failed", "tenant_id", tenantID, "type", typ, "error", err)
	}
}

// DecrementCredit charges one credit to a standard account. Admin and missing
// accounts are never charged. It reports whether a credit was charged.
func (m *UsageMeter) DecrementCredit(ctx context.Context, account *model.Account) bool {
	if account == nil || account.IsElevated() {
		return false
	}

	charged, err := m.accounts.DecrementCredit(ctx, account.ID)
	if err != nil {
		m.logger.Error("credit decrement failed", "account_id", account.ID, "error", err)
		return false
	}
	if !charged {
		m.logger.Warn("unmetered reply: balance exhausted before charge", "account_id", account.ID)
	}
	return charged
}
