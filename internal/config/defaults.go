package config

import "path/filepath"

const (
	DefaultChunkSize       = 1000
	DefaultChunkOverlap    = 100
	DefaultMaxChunks       = 20
	DefaultTopK            = 4
	DefaultMaxAnswerTokens = 4000
	DefaultListen          = ":8501"
)

// NewDefaultConfig returns a Config with sane defaults. It is the single
// source of truth for viper defaults.
func NewDefaultConfig() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			ChatModel:      "gpt-4o",
			EmbeddingModel: "text-embedding-3-small",
			ContextWindow:  128000,
		},
		Anthropic: AnthropicConfig{
			Model:         "claude-3-5-sonnet-latest",
			ContextWindow: 200000,
		},
		Embedder: EmbedderConfig{
			Type:              "auto",
			Dimensions:        512,
			Concurrency:       4,
			RequestsPerSecond: 10,
		},
		Chunker: ChunkerConfig{
			Size:      DefaultChunkSize,
			Overlap:   DefaultChunkOverlap,
			MaxChunks: DefaultMaxChunks,
		},
		VectorStore: VectorStoreConfig{
			Type: "sqlite",
			Qdrant: QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "axisrag_chunks",
			},
			Chroma: ChromaConfig{
				URL:        "http://localhost:8000",
				Tenant:     "default_tenant",
				Database:   "default_database",
				Collection: "axisrag_chunks",
			},
			Postgres: PostgresConfig{
				Table: "axisrag_chunks",
			},
		},
		Generator: GeneratorConfig{
			Primary:         "openai",
			Secondary:       "anthropic",
			MaxAnswerTokens: DefaultMaxAnswerTokens,
			TopK:            DefaultTopK,
		},
		Retry: RetryConfig{
			MaxRetries:  3,
			BaseMillis:  500,
			TimeoutSecs: 60,
		},
		Summarizer: SummarizerConfig{MaxSentences: 5},
		Paths: PathsConfig{
			ReportsDir: "reports",
			DataDir:    filepath.Join("data", "vectorstore"),
		},
		Dashboard: DashboardConfig{Listen: DefaultListen},
	}
}
