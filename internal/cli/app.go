package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/s76354m/AxisRAG/internal/answer"
	"github.com/s76354m/AxisRAG/internal/chunker"
	"github.com/s76354m/AxisRAG/internal/config"
	"github.com/s76354m/AxisRAG/internal/domain"
	"github.com/s76354m/AxisRAG/internal/embedding"
	"github.com/s76354m/AxisRAG/internal/embedding/local"
	"github.com/s76354m/AxisRAG/internal/llm/anthropic"
	"github.com/s76354m/AxisRAG/internal/llm/openai"
	"github.com/s76354m/AxisRAG/internal/loader"
	"github.com/s76354m/AxisRAG/internal/report"
	"github.com/s76354m/AxisRAG/internal/retry"
	"github.com/s76354m/AxisRAG/internal/service"
	"github.com/s76354m/AxisRAG/internal/summarizer"
	"github.com/s76354m/AxisRAG/internal/vectorstore"
	"github.com/s76354m/AxisRAG/internal/vectorstore/chroma"
	"github.com/s76354m/AxisRAG/internal/vectorstore/memory"
	"github.com/s76354m/AxisRAG/internal/vectorstore/pgvector"
	"github.com/s76354m/AxisRAG/internal/vectorstore/qdrant"
	"github.com/s76354m/AxisRAG/internal/vectorstore/sqlitevec"
)

// App holds the wired pipeline for one command invocation.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Service   *service.RAGService
	Reports   *report.Writer
	Embedder  domain.Embedder
	Store     *vectorstore.Guarded
	Generator *answer.Generator
}

// NewApp builds every pipeline component from cfg.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	emb, embRetryable, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, domain.AtStage(domain.StageConfig, err)
	}
	logger.Debug("embedder ready", "embedder", emb.Name(), "dimensions", emb.Dimension())

	pool, err := embedding.NewPool(embedding.Config{
		Embedder:          emb,
		Concurrency:       cfg.Embedder.Concurrency,
		RequestsPerSecond: cfg.Embedder.RequestsPerSecond,
		Retry: retry.Policy{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.RetryBaseDelay(),
			Timeout:    cfg.RequestTimeout(),
			Retryable:  embRetryable,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, domain.AtStage(domain.StageConfig, err)
	}

	ch, err := chunker.NewWindowChunker(cfg.Chunker.Size, cfg.Chunker.Overlap, cfg.Chunker.MaxChunks)
	if err != nil {
		return nil, domain.AtStage(domain.StageConfig, err)
	}

	backend, err := newStore(ctx, cfg, emb, logger)
	if err != nil {
		return nil, domain.AtStage(domain.StageStore, fmt.Errorf("%w: %w", domain.ErrRetrieval, err))
	}
	store := vectorstore.Guard(cfg.VectorStore.Type, backend, logger)

	var gen *answer.Generator
	if providers := newProviders(cfg, logger); len(providers) > 0 {
		gen, err = answer.NewGenerator(answer.Config{
			Providers: providers,
			Retry: retry.Policy{
				MaxRetries: cfg.Retry.MaxRetries,
				BaseDelay:  cfg.RetryBaseDelay(),
				Timeout:    cfg.RequestTimeout(),
			},
			MaxAnswerTokens: cfg.Generator.MaxAnswerTokens,
			Logger:          logger,
		})
		if err != nil {
			store.Close()
			return nil, domain.AtStage(domain.StageConfig, err)
		}
	}

	reports := report.NewWriter(cfg.Paths.ReportsDir, logger)
	svc, err := service.NewRAGService(service.Config{
		Loader:           loader.NewPDFLoader(logger),
		Chunker:          ch,
		Pool:             pool,
		Store:            store,
		Generator:        gen,
		Summarizer:       summarizer.NewFrequencySummarizer(),
		Reports:          reports,
		StoreName:        store.Name(),
		SummarySentences: cfg.Summarizer.MaxSentences,
		TopK:             cfg.Generator.TopK,
		Logger:           logger,
	})
	if err != nil {
		store.Close()
		return nil, domain.AtStage(domain.StageConfig, err)
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Service:   svc,
		Reports:   reports,
		Embedder:  emb,
		Store:     store,
		Generator: gen,
	}, nil
}

// Close releases the vector store.
func (a *App) Close() error {
	return a.Store.Close()
}

func newEmbedder(ctx context.Context, cfg *config.Config) (domain.Embedder, func(error) bool, error) {
	switch cfg.EmbedderType() {
	case local.Name:
		return local.New(cfg.Embedder.Dimensions), nil, nil
	case openai.Name:
		client, err := openai.NewClient(openai.Config{
			APIKey:         cfg.OpenAI.APIKey,
			BaseURL:        cfg.OpenAI.BaseURL,
			ChatModel:      cfg.OpenAI.ChatModel,
			EmbeddingModel: cfg.OpenAI.EmbeddingModel,
			ContextWindow:  cfg.OpenAI.ContextWindow,
			Temperature:    cfg.Generator.Temperature,
		})
		if err != nil {
			return nil, nil, err
		}
		dimCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout())
		defer cancel()
		if err := client.DetectDimension(dimCtx); err != nil {
			return nil, nil, fmt.Errorf("%w: detecting embedding dimension: %w", domain.ErrEmbedding, err)
		}
		return client, openai.Retryable, nil
	default:
		return nil, nil, domain.NewConfigurationError("unknown embedder type %q", cfg.Embedder.Type)
	}
}

func newStore(ctx context.Context, cfg *config.Config, emb domain.Embedder, logger *slog.Logger) (domain.VectorStore, error) {
	vs := cfg.VectorStore
	switch vs.Type {
	case "memory":
		return memory.NewStorage(), nil
	case "sqlite":
		return sqlitevec.NewStorage(sqlitevec.Config{DBPath: cfg.SQLiteFile(emb.Name(), emb.Dimension())}, logger)
	case "qdrant":
		return qdrant.NewStorage(qdrant.Config{
			Host:       vs.Qdrant.Host,
			Port:       vs.Qdrant.Port,
			APIKey:     vs.Qdrant.APIKey,
			UseTLS:     vs.Qdrant.UseTLS,
			Collection: vs.Qdrant.Collection,
		}, logger)
	case "chroma":
		return chroma.NewStorage(chroma.Config{
			URL:        vs.Chroma.URL,
			Tenant:     vs.Chroma.Tenant,
			Database:   vs.Chroma.Database,
			Collection: vs.Chroma.Collection,
		}, logger)
	case "pgvector":
		return pgvector.NewStorage(ctx, pgvector.Config{DSN: vs.Postgres.DSN, Table: vs.Postgres.Table}, logger)
	default:
		return nil, domain.NewConfigurationError("unknown vector store type %q", vs.Type)
	}
}

// newProviders builds the primary and secondary providers that have an API
// key configured, in order.
func newProviders(cfg *config.Config, logger *slog.Logger) []answer.Provider {
	var providers []answer.Provider
	for _, name := range []string{cfg.Generator.Primary, cfg.Generator.Secondary} {
		if name == "" {
			continue
		}
		p, err := newProvider(name, cfg)
		if err != nil {
			logger.Warn("answer provider unavailable", "provider", name, "error", err)
			continue
		}
		providers = append(providers, p)
	}
	return providers
}

func newProvider(name string, cfg *config.Config) (answer.Provider, error) {
	switch name {
	case openai.Name:
		client, err := openai.NewClient(openai.Config{
			APIKey:         cfg.OpenAI.APIKey,
			BaseURL:        cfg.OpenAI.BaseURL,
			ChatModel:      cfg.OpenAI.ChatModel,
			EmbeddingModel: cfg.OpenAI.EmbeddingModel,
			ContextWindow:  cfg.OpenAI.ContextWindow,
			Temperature:    cfg.Generator.Temperature,
		})
		if err != nil {
			return answer.Provider{}, err
		}
		return answer.Provider{AnswerProvider: client, Retryable: openai.Retryable}, nil
	case anthropic.Name:
		client, err := anthropic.NewClient(anthropic.Config{
			APIKey:        cfg.Anthropic.APIKey,
			BaseURL:       cfg.Anthropic.BaseURL,
			Model:         cfg.Anthropic.Model,
			ContextWindow: cfg.Anthropic.ContextWindow,
			Temperature:   cfg.Generator.Temperature,
		})
		if err != nil {
			return answer.Provider{}, err
		}
		return answer.Provider{AnswerProvider: client, Retryable: anthropic.Retryable}, nil
	default:
		return answer.Provider{}, domain.NewConfigurationError("unknown answer provider %q", name)
	}
}

// ensureDir creates dir if needed and reports whether it is writable.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".axisrag-check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
