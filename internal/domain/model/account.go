package model

// Account owns tenants, knowledge entries and products, and holds the credit
// balance that meters messaging replies.
type Account struct {
	ID      string
	Email   string
	Role    Role
	Credits *int64 // nil when the balance column is NULL.
}

// IsElevated reports whether the account bypasses credit metering.
func (a *Account) IsElevated() bool {
	return a != nil && a.Role == RoleAdmin
}

// Balance returns the credit balance, treating a missing value as zero.
func (a *Account) Balance() int64 {
	if a == nil || a.Credits == nil {
		return 0
	}
	return *a.Credits
}
