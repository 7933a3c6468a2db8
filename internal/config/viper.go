package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/s76354m/AxisRAG/internal/domain"
)

// EnvPrefix prefixes every config key when read from the environment.
const EnvPrefix = "AXISRAG"

// legacyEnv maps config keys to the unprefixed variable names earlier
// releases documented in .env files.
var legacyEnv = map[string]string{
	"openai.api_key":        "OPENAI_API_KEY",
	"openai.chat_model":     "OPENAI_MODEL_NAME",
	"anthropic.api_key":     "ANTHROPIC_API_KEY",
	"anthropic.model":       "ANTHROPIC_MODEL_NAME",
	"chunker.size":          "CHUNK_SIZE",
	"chunker.overlap":       "CHUNK_OVERLAP",
	"chunker.max_chunks":    "MAX_CHUNKS",
	"embedder.concurrency":  "EMBED_CONCURRENCY",
	"retry.timeout_secs":    "REQUEST_TIMEOUT",
	"generator.temperature": "TEMPERATURE",
}

// InitViper creates and returns a configured *viper.Viper.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound by the caller)
//  2. Environment variables (AXISRAG_CHUNKER_SIZE, then legacy CHUNK_SIZE)
//  3. config file values (YAML)
//  4. Defaults from NewDefaultConfig()
//
// An empty configFile searches ./config.yaml and ~/.config/axisrag/config.yaml.
func InitViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/axisrag")
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) || configFile != "" {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("binding %s: %w", legacy, err)
		}
	}

	return v, nil
}

// Load resolves the configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: decoding config: %v", domain.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation so every key is visible to AutomaticEnv.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("openai.api_key", d.OpenAI.APIKey)
	v.SetDefault("openai.base_url", d.OpenAI.BaseURL)
	v.SetDefault("openai.chat_model", d.OpenAI.ChatModel)
	v.SetDefault("openai.embedding_model", d.OpenAI.EmbeddingModel)
	v.SetDefault("openai.context_window", d.OpenAI.ContextWindow)

	v.SetDefault("anthropic.api_key", d.Anthropic.APIKey)
	v.SetDefault("anthropic.base_url", d.Anthropic.BaseURL)
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.context_window", d.Anthropic.ContextWindow)

	v.SetDefault("embedder.type", d.Embedder.Type)
	v.SetDefault("embedder.dimensions", d.Embedder.Dimensions)
	v.SetDefault("embedder.concurrency", d.Embedder.Concurrency)
	v.SetDefault("embedder.requests_per_second", d.Embedder.RequestsPerSecond)

	v.SetDefault("chunker.size", d.Chunker.Size)
	v.SetDefault("chunker.overlap", d.Chunker.Overlap)
	v.SetDefault("chunker.max_chunks", d.Chunker.MaxChunks)

	// Vector store
	v.SetDefault("vector_store.type", d.VectorStore.Type)
	v.SetDefault("vector_store.sqlite_path", d.VectorStore.SQLitePath)
	v.SetDefault("vector_store.qdrant.host", d.VectorStore.Qdrant.Host)
	v.SetDefault("vector_store.qdrant.port", d.VectorStore.Qdrant.Port)
	v.SetDefault("vector_store.qdrant.api_key", d.VectorStore.Qdrant.APIKey)
	v.SetDefault("vector_store.qdrant.use_tls", d.VectorStore.Qdrant.UseTLS)
	v.SetDefault("vector_store.qdrant.collection", d.VectorStore.Qdrant.Collection)
	v.SetDefault("vector_store.chroma.url", d.VectorStore.Chroma.URL)
	v.SetDefault("vector_store.chroma.tenant", d.VectorStore.Chroma.Tenant)
	v.SetDefault("vector_store.chroma.database", d.VectorStore.Chroma.Database)
	v.SetDefault("vector_store.chroma.collection", d.VectorStore.Chroma.Collection)
	v.SetDefault("vector_store.postgres.dsn", d.VectorStore.Postgres.DSN)
	v.SetDefault("vector_store.postgres.table", d.VectorStore.Postgres.Table)

	// Generator
	v.SetDefault("generator.primary", d.Generator.Primary)
	v.SetDefault("generator.secondary", d.Generator.Secondary)
	v.SetDefault("generator.max_answer_tokens", d.Generator.MaxAnswerTokens)
	v.SetDefault("generator.temperature", d.Generator.Temperature)
	v.SetDefault("generator.top_k", d.Generator.TopK)

	v.SetDefault("retry.max_retries", d.Retry.MaxRetries)
	v.SetDefault("retry.base_millis", d.Retry.BaseMillis)
	v.SetDefault("retry.timeout_secs", d.Retry.TimeoutSecs)

	v.SetDefault("summarizer.max_sentences", d.Summarizer.MaxSentences)
	v.SetDefault("paths.reports_dir", d.Paths.ReportsDir)
	v.SetDefault("paths.data_dir", d.Paths.DataDir)
	v.SetDefault("dashboard.listen", d.Dashboard.Listen)
}
