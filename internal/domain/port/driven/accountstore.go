package driven

import "context"

// AccountStore defines the driven port for credit metering. Accounts are read
// together with their tenant through TenantStore.
type AccountStore interface {
	// DecrementCredit atomically subtracts one credit when the balance is
	// positive. It reports whether a credit was charged; false means the
	// balance was already exhausted (or the account is missing).
	DecrementCredit(ctx context.Context, id string) (bool, error)
}
