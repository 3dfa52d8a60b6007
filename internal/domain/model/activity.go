package model

import "time"

// ActivityLog is an append-only record of one exchange.
type ActivityLog struct {
	ID        string
	TenantID  string
	Type      ActivityType
	Input     string
	Output    string
	CreatedAt time.Time
}
