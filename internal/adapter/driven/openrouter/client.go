// Package openrouter implements the completion port against the OpenRouter
// chat completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ericfisherdev/inboxrelay/internal/domain/port/driven"
)

const (
	// DefaultBaseURL is the public OpenRouter API root.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel is used when neither the request nor the client names one.
	DefaultModel = "openai/gpt-5.2"

	defaultReferer = "https://github.com/ericfisherdev/inboxrelay"
	defaultTitle   = "inboxrelay"

	// maxResponseBytes bounds how much of a provider response is read.
	maxResponseBytes = 4 << 20
)

// Compile-time interface satisfaction check.
var _ driven.CompletionClient = (*Client)(nil)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithDefaultModel overrides the model used when a request names none.
func WithDefaultModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.defaultModel = model
		}
	}
}

// WithAppIdentity sets the HTTP-Referer and X-Title attribution headers.
func WithAppIdentity(referer, title string) ClientOption {
	return func(c *Client) {
		c.referer = referer
		c.title = title
	}
}

// WithLogger sets the logger used for provider warnings.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client is an HTTP client for the OpenRouter chat completions endpoint. The
// API key travels with each request because every tenant may bring its own.
type Client struct {
	baseURL      string
	defaultModel string
	referer      string
	title        string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient creates a new OpenRouter client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		defaultModel: DefaultModel,
		referer:      defaultReferer,
		title:        defaultTitle,
		httpClient:   http.DefaultClient,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends a single system+user exchange and returns the first choice's
// content, or req.Fallback when a 2xx response carries no usable content.
func (c *Client) Complete(ctx context.Context, req driven.CompletionRequest) (string, error) {
	if req.APIKey == "" {
		return "", driven.ErrMissingAPIKey
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserText},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq, req.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	// A 2xx body of the wrong shape counts as "no content", not a failure.
	var result chatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		c.logger.Warn("unexpected completion response shape, using fallback reply",
			"model", model, "error", err)
		return req.Fallback, nil
	}

	if len(result.Choices) == 0 || result.Choices[0].Message == nil || result.Choices[0].Message.Content == "" {
		c.logger.Warn("completion response has no content, using fallback reply", "model", model)
		return req.Fallback, nil
	}

	return result.Choices[0].Message.Content, nil
}

func (c *Client) setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}
}
