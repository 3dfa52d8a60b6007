package model

// Role is an account's privilege level.
type Role string

const (
	RoleAdmin Role = "ADMIN" // Bypasses metering and ownership scoping.
	RoleUser  Role = "USER"
)

// Channel identifies where an inbound message came from.
type Channel string

const (
	ChannelMessaging Channel = "messaging"
	ChannelWidget    Channel = "widget"
)

// ActivityType tags an activity log row.
type ActivityType string

const (
	ActivityAutoReply   ActivityType = "AUTO_REPLY"
	ActivityWidgetReply ActivityType = "WIDGET_REPLY"
)
