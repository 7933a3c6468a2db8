// Package config holds the single configuration struct that is passed
// explicitly into every pipeline component.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/s76354m/AxisRAG/internal/domain"
)

// OpenAIConfig configures the hosted OpenAI embedding and chat models.
type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	ChatModel      string `mapstructure:"chat_model" yaml:"chat_model"`
	EmbeddingModel string `mapstructure:"embedding_model" yaml:"embedding_model"`
	ContextWindow  int    `mapstructure:"context_window" yaml:"context_window"`
}

// AnthropicConfig configures the hosted Anthropic messages model.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL       string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Model         string `mapstructure:"model" yaml:"model"`
	ContextWindow int    `mapstructure:"context_window" yaml:"context_window"`
}

// EmbedderConfig selects the embedder and bounds the embedding worker pool.
type EmbedderConfig struct {
	// Type is one of "auto", "openai" or "local". Auto picks openai when an
	// API key is configured.
	Type              string  `mapstructure:"type" yaml:"type"`
	Dimensions        int     `mapstructure:"dimensions" yaml:"dimensions"`
	Concurrency       int     `mapstructure:"concurrency" yaml:"concurrency"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Size      int `mapstructure:"size" yaml:"size"`
	Overlap   int `mapstructure:"overlap" yaml:"overlap"`
	MaxChunks int `mapstructure:"max_chunks" yaml:"max_chunks"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host       string `mapstructure:"host" yaml:"host"`
	Port       int    `mapstructure:"port" yaml:"port"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	UseTLS     bool   `mapstructure:"use_tls" yaml:"use_tls"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// ChromaConfig contains connection details for a Chroma server.
type ChromaConfig struct {
	URL        string `mapstructure:"url" yaml:"url"`
	Tenant     string `mapstructure:"tenant" yaml:"tenant"`
	Database   string `mapstructure:"database" yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// PostgresConfig contains connection details for a pgvector database.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn" yaml:"dsn,omitempty"`
	Table string `mapstructure:"table" yaml:"table"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	// Type is one of "sqlite", "memory", "qdrant", "chroma" or "pgvector".
	Type string `mapstructure:"type" yaml:"type"`

	// SQLitePath overrides the per-embedder database file under the data dir.
	SQLitePath string         `mapstructure:"sqlite_path" yaml:"sqlite_path,omitempty"`
	Qdrant     QdrantConfig   `mapstructure:"qdrant" yaml:"qdrant"`
	Chroma     ChromaConfig   `mapstructure:"chroma" yaml:"chroma"`
	Postgres   PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// GeneratorConfig configures answer generation.
type GeneratorConfig struct {
	Primary         string  `mapstructure:"primary" yaml:"primary"`
	Secondary       string  `mapstructure:"secondary" yaml:"secondary"`
	MaxAnswerTokens int     `mapstructure:"max_answer_tokens" yaml:"max_answer_tokens"`
	Temperature     float32 `mapstructure:"temperature" yaml:"temperature"`
	TopK            int     `mapstructure:"top_k" yaml:"top_k"`
}

// RetryConfig is the policy for every hosted API call, embeddings and
// answers alike.
type RetryConfig struct {
	MaxRetries  int `mapstructure:"max_retries" yaml:"max_retries"`
	BaseMillis  int `mapstructure:"base_millis" yaml:"base_millis"`
	TimeoutSecs int `mapstructure:"timeout_secs" yaml:"timeout_secs"`
}

// SummarizerConfig configures the extractive summarizer.
type SummarizerConfig struct {
	MaxSentences int `mapstructure:"max_sentences" yaml:"max_sentences"`
}

// PathsConfig holds the directories for persisted state.
type PathsConfig struct {
	ReportsDir string `mapstructure:"reports_dir" yaml:"reports_dir"`
	DataDir    string `mapstructure:"data_dir" yaml:"data_dir"`
}

// DashboardConfig configures the web dashboard.
type DashboardConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// Config is the root application configuration structure.
type Config struct {
	OpenAI      OpenAIConfig      `mapstructure:"openai" yaml:"openai"`
	Anthropic   AnthropicConfig   `mapstructure:"anthropic" yaml:"anthropic"`
	Embedder    EmbedderConfig    `mapstructure:"embedder" yaml:"embedder"`
	Chunker     ChunkerConfig     `mapstructure:"chunker" yaml:"chunker"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store" yaml:"vector_store"`
	Generator   GeneratorConfig   `mapstructure:"generator" yaml:"generator"`
	Retry       RetryConfig       `mapstructure:"retry" yaml:"retry"`
	Summarizer  SummarizerConfig  `mapstructure:"summarizer" yaml:"summarizer"`
	Paths       PathsConfig       `mapstructure:"paths" yaml:"paths"`
	Dashboard   DashboardConfig   `mapstructure:"dashboard" yaml:"dashboard"`
}

// RequestTimeout is the per-call timeout for hosted APIs.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Retry.TimeoutSecs) * time.Second
}

// RetryBaseDelay is the initial backoff between retries.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseMillis) * time.Millisecond
}

// EmbedderType resolves "auto" to a concrete embedder name.
func (c *Config) EmbedderType() string {
	t := strings.ToLower(c.Embedder.Type)
	if t == "" || t == "auto" {
		if c.OpenAI.APIKey != "" {
			return "openai"
		}
		return "local"
	}
	return t
}

// SQLiteFile returns the database path for an embedder of the given name and
// dimension. Vectors of different dimensions never share a file.
func (c *Config) SQLiteFile(embedder string, dim int) string {
	if c.VectorStore.SQLitePath != "" {
		return c.VectorStore.SQLitePath
	}
	return filepath.Join(c.Paths.DataDir, fmt.Sprintf("chunks_%s_%d.db", embedder, dim))
}

// Validate reports the first invalid setting as a configuration error.
func (c *Config) Validate() error {
	ch := c.Chunker
	switch {
	case ch.Size <= 0:
		return domain.NewConfigurationError("chunk size must be positive, got %d", ch.Size)
	case ch.Overlap < 0:
		return domain.NewConfigurationError("chunk overlap must not be negative, got %d", ch.Overlap)
	case ch.Overlap >= ch.Size:
		return domain.NewConfigurationError("chunk overlap (%d) must be smaller than chunk size (%d)", ch.Overlap, ch.Size)
	case ch.MaxChunks <= 0:
		return domain.NewConfigurationError("max chunks must be positive, got %d", ch.MaxChunks)
	}

	switch c.EmbedderType() {
	case "local":
		if c.Embedder.Dimensions <= 0 {
			return domain.NewConfigurationError("embedder dimensions must be positive, got %d", c.Embedder.Dimensions)
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			return domain.NewConfigurationError("openai embedder requires OPENAI_API_KEY")
		}
	default:
		return domain.NewConfigurationError("unknown embedder type %q", c.Embedder.Type)
	}
	if c.Embedder.Concurrency <= 0 {
		return domain.NewConfigurationError("embed concurrency must be positive, got %d", c.Embedder.Concurrency)
	}

	switch c.VectorStore.Type {
	case "memory", "sqlite", "qdrant", "chroma":
	case "pgvector":
		if c.VectorStore.Postgres.DSN == "" {
			return domain.NewConfigurationError("pgvector store requires a dsn")
		}
	default:
		return domain.NewConfigurationError("unknown vector store type %q", c.VectorStore.Type)
	}

	for _, p := range []string{c.Generator.Primary, c.Generator.Secondary} {
		switch p {
		case "", "openai", "anthropic":
		default:
			return domain.NewConfigurationError("unknown answer provider %q", p)
		}
	}
	if c.Generator.Primary == "" {
		return domain.NewConfigurationError("a primary answer provider is required")
	}
	if c.Generator.Primary == c.Generator.Secondary {
		return domain.NewConfigurationError("secondary provider must differ from primary %q", c.Generator.Primary)
	}
	if c.Generator.TopK <= 0 {
		return domain.NewConfigurationError("top_k must be positive, got %d", c.Generator.TopK)
	}
	if c.Retry.MaxRetries < 0 {
		return domain.NewConfigurationError("max retries must not be negative, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.BaseMillis < 0 {
		return domain.NewConfigurationError("retry base delay must not be negative, got %d", c.Retry.BaseMillis)
	}
	if c.Retry.TimeoutSecs <= 0 {
		return domain.NewConfigurationError("request timeout must be positive, got %d", c.Retry.TimeoutSecs)
	}
	if c.Paths.ReportsDir == "" {
		return domain.NewConfigurationError("reports dir must be set")
	}
	return nil
}

// Save writes the config to the given path as YAML, creating directories as
// needed. API keys are never written.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	redacted := *cfg
	redacted.OpenAI.APIKey = ""
	redacted.Anthropic.APIKey = ""
	redacted.VectorStore.Qdrant.APIKey = ""
	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
