// Package model holds the relay's domain types.
package model

import "time"

// Tenant is one connected page or website. Credential fields hold vault
// envelopes (or legacy plaintext) exactly as stored; they are never decrypted
// into the struct.
type Tenant struct {
	ID              string
	AccountID       string
	Name            string
	ExternalID      string // Messaging channel page id.
	WidgetKey       string
	Enabled         bool
	AIModel         string
	AccessToken     string // Sealed channel-send credential.
	VerifyToken     string // Sealed webhook handshake token.
	ProviderKey     string // Sealed AI provider key.
	AllowedOrigins  []string
	KnowledgeFilter []string // Knowledge entry titles; empty means all.
	CreatedAt       time.Time

	// Account is populated by lookups that join the owning account.
	Account *Account
}

// VerifyTokenRow is the projection scanned by the webhook handshake.
type VerifyTokenRow struct {
	TenantID    string
	AccountID   string
	VerifyToken string
}
