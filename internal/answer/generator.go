// Package answer builds prompts from retrieved chunks and asks the configured
// providers for an answer, falling back to the next provider on failure.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/s76354m/AxisRAG/internal/domain"
	"github.com/s76354m/AxisRAG/internal/retry"
)

// Provider is an answer provider together with its notion of transient errors.
type Provider struct {
	domain.AnswerProvider

	// Retryable classifies errors returned by Generate. Nil retries everything.
	Retryable func(error) bool
}

// Config is the configuration for a Generator.
type Config struct {
	// Providers are tried in order: the first is the primary, the rest are
	// fallbacks.
	Providers []Provider

	// Retry is applied to every Generate call. Its Retryable is replaced by
	// the provider's.
	Retry retry.Policy

	// MaxAnswerTokens is reserved from each provider's context window.
	MaxAnswerTokens int

	Logger *slog.Logger
}

// Generator answers questions with retrieved context.
type Generator struct {
	providers       []Provider
	policy          retry.Policy
	maxAnswerTokens int
	logger          *slog.Logger
}

// NewGenerator creates a Generator. At least one provider is required.
func NewGenerator(c Config) (*Generator, error) {
	if len(c.Providers) == 0 {
		return nil, domain.NewConfigurationError("no answer provider configured")
	}
	if c.MaxAnswerTokens <= 0 {
		return nil, domain.NewConfigurationError("max answer tokens must be positive, got %d", c.MaxAnswerTokens)
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{
		providers:       c.Providers,
		policy:          c.Retry,
		maxAnswerTokens: c.MaxAnswerTokens,
		logger:          logger,
	}, nil
}

// Providers returns the names of the configured providers in order.
func (g *Generator) Providers() []string {
	names := make([]string, len(g.providers))
	for i, p := range g.providers {
		names[i] = p.Name()
	}
	return names
}

// Answer asks the primary provider and falls back to the next one once its
// retries are exhausted. The returned error is a *domain.GenerationFailure
// when every provider failed.
func (g *Generator) Answer(ctx context.Context, question string, results []domain.SearchResult) (domain.Answer, error) {
	var (
		tried []string
		errs  []error
	)
	for i, p := range g.providers {
		tried = append(tried, p.Name())
		answer, err := g.ask(ctx, p, question, results)
		if err == nil {
			answer.Fallback = i > 0
			return answer, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if ctx.Err() != nil {
			break
		}
		if i+1 < len(g.providers) {
			g.logger.Warn("provider failed, falling back",
				"provider", p.Name(), "next", g.providers[i+1].Name(), "error", err)
		}
	}
	return domain.Answer{}, &domain.GenerationFailure{Providers: tried, Err: errors.Join(errs...)}
}

// Compare asks every provider the same question. Failures are recorded on
// the corresponding answer; an error is returned only if all providers failed.
func (g *Generator) Compare(ctx context.Context, question string, results []domain.SearchResult) ([]domain.Answer, error) {
	answers := make([]domain.Answer, 0, len(g.providers))
	var errs []error
	for _, p := range g.providers {
		answer, err := g.ask(ctx, p, question, results)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			answer = domain.Answer{Provider: p.Name(), Model: p.Model(), Error: err.Error()}
		}
		answers = append(answers, answer)
	}
	if len(errs) == len(g.providers) {
		return answers, &domain.GenerationFailure{Providers: g.Providers(), Err: errors.Join(errs...)}
	}
	return answers, nil
}

func (g *Generator) ask(ctx context.Context, p Provider, question string, results []domain.SearchResult) (domain.Answer, error) {
	prompt, used, err := BuildPrompt(question, results, p.ContextWindow(), g.maxAnswerTokens)
	if err != nil {
		return domain.Answer{}, err
	}
	if dropped := len(results) - len(used); dropped > 0 {
		g.logger.Debug("context truncated", "provider", p.Name(), "dropped", dropped)
	}

	policy := g.policy
	policy.Retryable = p.Retryable

	var text string
	attempts, err := retry.Do(ctx, policy, func(ctx context.Context) error {
		t, err := p.Generate(ctx, prompt)
		if err != nil {
			g.logger.Debug("generate attempt failed", "provider", p.Name(), "error", err)
			return err
		}
		text = t
		return nil
	})
	if err != nil {
		return domain.Answer{}, fmt.Errorf("after %d attempt(s): %w", attempts, err)
	}

	g.logger.Info("answer generated", "provider", p.Name(), "model", p.Model(), "sources", len(used), "attempts", attempts)
	return domain.Answer{
		Provider: p.Name(),
		Model:    p.Model(),
		Text:     text,
		Sources:  used,
	}, nil
}
