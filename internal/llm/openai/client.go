// Package openai adapts the hosted OpenAI API to the embedder and answer
// provider interfaces.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/s76354m/AxisRAG/internal/domain"
)

const (
	// Name identifies this provider in configuration and reports.
	Name = "openai"

	DefaultChatModel      = openai.GPT4o
	DefaultEmbeddingModel = openai.SmallEmbedding3
	defaultContextWindow  = 128000
)

var knownDimensions = map[openai.EmbeddingModel]int{
	openai.SmallEmbedding3: 1536,
	openai.LargeEmbedding3: 3072,
	openai.AdaEmbeddingV2:  1536,
}

// Config holds configuration for the OpenAI client.
type Config struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	ContextWindow  int
	Temperature    float32
	HTTPClient     *http.Client
}

// Client wraps the OpenAI API client.
type Client struct {
	client         *openai.Client
	chatModel      string
	embeddingModel openai.EmbeddingModel
	contextWindow  int
	temperature    float32
	dimension      int
}

// NewClient creates a new OpenAI client with the given configuration.
func NewClient(c Config) (*Client, error) {
	if c.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	cfg := openai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	if c.HTTPClient != nil {
		cfg.HTTPClient = c.HTTPClient
	}

	chat := c.ChatModel
	if chat == "" {
		chat = DefaultChatModel
	}
	embed := openai.EmbeddingModel(c.EmbeddingModel)
	if embed == "" {
		embed = DefaultEmbeddingModel
	}
	window := c.ContextWindow
	if window <= 0 {
		window = defaultContextWindow
	}

	return &Client{
		client:         openai.NewClientWithConfig(cfg),
		chatModel:      chat,
		embeddingModel: embed,
		contextWindow:  window,
		temperature:    c.Temperature,
		dimension:      knownDimensions[embed],
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string { return Name }

// Model returns the chat model used for answers.
func (c *Client) Model() string { return c.chatModel }

// ContextWindow returns the chat model's prompt budget in tokens.
func (c *Client) ContextWindow() int { return c.contextWindow }

// Dimension returns the embedding dimension, or 0 until DetectDimension has
// run for a model with an unknown dimension.
func (c *Client) Dimension() int { return c.dimension }

// DetectDimension embeds a short string to learn the dimension of models that
// are not in the built-in table.
func (c *Client) DetectDimension(ctx context.Context) error {
	if c.dimension > 0 {
		return nil
	}
	v, err := c.embed(ctx, "dimension check")
	if err != nil {
		return err
	}
	c.dimension = len(v)
	return nil
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text)
}

func (c *Client) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: c.embeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("openai embeddings: no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}

// Generate sends the prompt as a system and user message pair and returns the
// first choice.
func (c *Client) Generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: prompt.System,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt.User,
			},
		},
		MaxTokens:   prompt.MaxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion after %s: %w", time.Since(start).Round(time.Millisecond), err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Retryable reports whether err is worth retrying: rate limits, server errors
// and transport failures are; other client errors are not.
func Retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return !errors.Is(err, context.Canceled)
}

func retryableStatus(code int) bool {
	return code == 0 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}
