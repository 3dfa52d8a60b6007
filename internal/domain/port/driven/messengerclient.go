package driven

import (
	"context"
	"errors"
)

// ErrMissingAccessToken is returned when a reply is sent without a channel
// credential. No network call is made.
var ErrMissingAccessToken = errors.New("channel access token not configured")

// MessengerClient defines the driven port for the social-messaging send API.
type MessengerClient interface {
	SendText(ctx context.Context, accessToken, recipientID, text string) error
}
