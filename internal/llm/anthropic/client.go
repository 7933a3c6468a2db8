// Package anthropic adapts the Anthropic messages API to the answer provider
// interface.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/s76354m/AxisRAG/internal/domain"
)

const (
	// Name identifies this provider in configuration and reports.
	Name = "anthropic"

	DefaultModel         = "claude-3-5-sonnet-latest"
	defaultContextWindow = 200000
	defaultMaxTokens     = 1024
)

// Config holds configuration for the Anthropic client.
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	ContextWindow int
	Temperature   float32
	HTTPClient    *http.Client
}

// Client wraps the Anthropic SDK client.
type Client struct {
	client        anthropic.Client
	model         string
	contextWindow int
	temperature   float32
}

// NewClient creates a new Anthropic client. Retries are left to the caller.
func NewClient(c Config) (*Client, error) {
	if c.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(c.APIKey),
		option.WithMaxRetries(0),
	}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	if c.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	}

	model := c.Model
	if model == "" {
		model = DefaultModel
	}
	window := c.ContextWindow
	if window <= 0 {
		window = defaultContextWindow
	}

	return &Client{
		client:        anthropic.NewClient(opts...),
		model:         model,
		contextWindow: window,
		temperature:   c.Temperature,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string { return Name }

// Model returns the model used for answers.
func (c *Client) Model() string { return c.model }

// ContextWindow returns the model's prompt budget in tokens.
func (c *Client) ContextWindow() int { return c.contextWindow }

// Generate sends the prompt and concatenates the text blocks of the reply.
func (c *Client) Generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	maxTokens := prompt.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.User)),
		},
		Temperature: anthropic.Float(float64(c.temperature)),
	}
	if prompt.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: prompt.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("anthropic messages: no text content returned")
	}
	return sb.String(), nil
}

// Retryable reports whether err is worth retrying: rate limits, overload and
// server errors are; other client errors are not.
func Retryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		code := apiErr.StatusCode
		return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
	}
	return !errors.Is(err, context.Canceled)
}
