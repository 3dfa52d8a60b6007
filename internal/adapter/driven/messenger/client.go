// Package messenger sends replies through the Graph send API of the
// social-messaging platform.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ericfisherdev/inboxrelay/internal/domain/port/driven"
)

const (
	// DefaultBaseURL is the public Graph API root.
	DefaultBaseURL = "https://graph.facebook.com"

	// DefaultAPIVersion is the Graph API version used for the send call.
	DefaultAPIVersion = "v22.0"

	maxErrorBodyBytes = 64 << 10
)

// Compile-time interface satisfaction check.
var _ driven.MessengerClient = (*Client)(nil)

// APIError is returned when the send API answers with a non-2xx status.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("send API error (status %d): %s", e.Status, e.Body)
}

type sendRequest struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
}

// Client posts text messages to a recipient on behalf of a page.
type Client struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client
}

// NewClient creates a send API client. Empty arguments select the defaults;
// a nil httpClient selects http.DefaultClient.
func NewClient(baseURL, apiVersion string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiVersion: strings.Trim(apiVersion, "/"),
		httpClient: httpClient,
	}
}

// SendText delivers text to recipientID using the page access token.
func (c *Client) SendText(ctx context.Context, accessToken, recipientID, text string) error {
	if accessToken == "" {
		return driven.ErrMissingAccessToken
	}

	var payload sendRequest
	payload.Recipient.ID = recipientID
	payload.Message.Text = text

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}

	// The token travels in a header so request URLs, which end up in traces
	// and transport errors, never carry it.
	endpoint := fmt.Sprintf("%s/%s/me/messages", c.baseURL, c.apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send to %s: %w", recipientID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
