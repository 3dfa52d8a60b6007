package application

import "strings"

// Fallback replies used when the provider answers without content.
const (
	MessagingFallbackReply = "I'm not sure how to respond to that."
	WidgetFallbackReply    = "Thanks! Can you share more details?"
)

// messagingSystemPrompt builds the system prompt for page conversations.
func messagingSystemPrompt(tenantName, contextText string) string {
	var b strings.Builder
	b.WriteString(`You are a helpful AI assistant for the Facebook page "`)
	b.WriteString(tenantName)
	b.WriteString("\".\n\nKNOWLEDGE BASE:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nINSTRUCTIONS:\n")
	b.WriteString("- Answer based on the knowledge base and product catalog if relevant.\n")
	b.WriteString("- If a user asks about products, recommend items from the catalog.\n")
	b.WriteString("- Be polite and professional.\n")
	b.WriteString("- Keep answers concise for chat.\n")
	return b.String()
}

// widgetSystemPrompt builds the system prompt for the website widget.
func widgetSystemPrompt(tenantName, contextText string) string {
	return "You are the website assistant for " + tenantName + ". Use this knowledge base:\n" + contextText
}
