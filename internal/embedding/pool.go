// Package embedding runs an Embedder over document chunks with bounded
// concurrency, rate limiting and retries.
package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/s76354m/AxisRAG/internal/domain"
	"github.com/s76354m/AxisRAG/internal/retry"
)

const defaultConcurrency = 4

// Config is the configuration for a Pool.
type Config struct {
	// Embedder produces the vectors.
	Embedder domain.Embedder

	// Concurrency bounds in-flight Embed calls (defaults to 4).
	Concurrency int

	// RequestsPerSecond throttles Embed calls. Zero disables throttling.
	RequestsPerSecond float64

	// Retry is applied to every Embed call.
	Retry retry.Policy

	Logger *slog.Logger
}

// Sink receives each embedding as soon as it is produced. It may be called
// concurrently.
type Sink func(ctx context.Context, entry domain.Entry) error

// Pool embeds chunks in parallel.
type Pool struct {
	config  Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewPool validates c and creates a Pool.
func NewPool(c Config) (*Pool, error) {
	if c.Embedder == nil {
		return nil, domain.NewConfigurationError("embedding pool requires an embedder")
	}
	if c.Concurrency == 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.Concurrency < 0 {
		return nil, domain.NewConfigurationError("embed concurrency must be positive, got %d", c.Concurrency)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if c.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.RequestsPerSecond), c.Concurrency)
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Pool{config: c, limiter: limiter, logger: logger}, nil
}

// Embedder returns the underlying embedder.
func (p *Pool) Embedder() domain.Embedder { return p.config.Embedder }

// EmbedChunks embeds every chunk and hands each result to sink as it
// completes. The first failure cancels the remaining work; entries already
// passed to sink are kept. Exhausted retries surface as *domain.EmbeddingFailure.
func (p *Pool) EmbedChunks(ctx context.Context, chunks []domain.Chunk, sink Sink) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)

	for _, ch := range chunks {
		g.Go(func() error {
			vec, err := p.embed(gctx, ch.Text, ch.Index)
			if err != nil {
				return err
			}
			if err := sink(gctx, domain.Entry{Chunk: ch, Vector: vec}); err != nil {
				return fmt.Errorf("storing chunk %d: %w", ch.Index, err)
			}
			p.logger.Debug("chunk embedded", "chunk_id", ch.ChunkID, "dimension", len(vec))
			return nil
		})
	}
	return g.Wait()
}

// EmbedQuery embeds a single query string with the same retry policy.
func (p *Pool) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return p.embed(ctx, text, -1)
}

func (p *Pool) embed(ctx context.Context, text string, index int) ([]float32, error) {
	var vec []float32
	attempts, err := retry.Do(ctx, p.config.Retry, func(ctx context.Context) error {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		v, err := p.config.Embedder.Embed(ctx, text)
		if err != nil {
			p.logger.Debug("embed attempt failed", "chunk_index", index, "error", err)
			return err
		}
		if want := p.config.Embedder.Dimension(); want > 0 && len(v) != want {
			return retry.Permanent(fmt.Errorf("embedder returned %d dimensions, expected %d", len(v), want))
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, &domain.EmbeddingFailure{ChunkIndex: index, Attempts: attempts, Err: err}
	}
	return vec, nil
}
