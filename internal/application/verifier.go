package application

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/inboxrelay/internal/domain/port/driven"
)

// subscribeMode is the only hub.mode accepted by the handshake.
const subscribeMode = "subscribe"

// WebhookVerifier answers the messaging platform's subscription handshake by
// matching the presented token against every tenant's sealed verify token.
type WebhookVerifier struct {
	tenants driven.TenantStore
	vault   driven.SecretVault
	logger  *slog.Logger
}

// NewWebhookVerifier creates a new WebhookVerifier with the required dependencies.
func NewWebhookVerifier(tenants driven.TenantStore, vault driven.SecretVault, logger *slog.Logger) *WebhookVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookVerifier{tenants: tenants, vault: vault, logger: logger}
}

// Verify reports whether the handshake is accepted. It is accepted when mode
// is "subscribe", token is non-empty, and the token matches the decrypted
// verify token of at least one tenant, all of whose matches belong to one
// account. A store failure is returned as an error.
func (v *WebhookVerifier) Verify(ctx context.Context, mode, token string) (bool, error) {
	if mode != subscribeMode || token == "" {
		return false, nil
	}

	rows, err := v.tenants.ListVerifyTokens(ctx)
	if err != nil {
		return false, fmt.Errorf("list verify tokens: %w", err)
	}

	accounts := make(map[string]struct{})
	var matched []string
	for _, row := range rows {
		plain := v.vault.Decrypt(row.VerifyToken)
		if plain == "" || subtle.ConstantTimeCompare([]byte(plain), []byte(token)) != 1 {
			continue
		}
		accounts[row.AccountID] = struct{}{}
		matched = append(matched, row.TenantID)
	}

	switch {
	case len(matched) == 0:
		v.logger.Warn("webhook verification failed: invalid token")
		return false, nil
	case len(accounts) > 1:
		v.logger.Warn("webhook verification refused: token shared across accounts",
			"tenants", matched, "accounts", len(accounts))
		return false, nil
	}

	v.logger.Info("webhook verified", "tenants", matched)
	return true, nil
}
