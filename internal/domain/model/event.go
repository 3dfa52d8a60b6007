package model

// InboundEvent carries one inbound message through the pipeline. It is never
// persisted.
type InboundEvent struct {
	ID         string // Correlation id for logs and traces.
	Channel    Channel
	ExternalID string // Messaging: page id the event was delivered for.
	WidgetKey  string // Widget: public key from the request body.
	Origin     string // Widget: request Origin header.
	SenderID   string
	Text       string
}

// OutboundReply is the generated answer addressed back to the sender.
type OutboundReply struct {
	RecipientID string
	Text        string
}
