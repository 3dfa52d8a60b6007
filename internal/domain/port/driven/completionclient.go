package driven

import (
	"context"
	"errors"
)

// ErrMissingAPIKey is returned when a completion is requested without a
// provider key. No network call is made.
var ErrMissingAPIKey = errors.New("completion provider key not configured")

// CompletionRequest is a single-turn chat completion request.
type CompletionRequest struct {
	SystemPrompt string
	UserText     string
	Model        string // Empty selects the client's default model.
	APIKey       string
	Fallback     string // Returned when the response carries no content.
}

// CompletionClient defines the driven port for the AI completion provider.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
