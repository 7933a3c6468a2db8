// Package service runs the ingestion and question answering pipeline for a
// session.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/s76354m/AxisRAG/internal/answer"
	"github.com/s76354m/AxisRAG/internal/domain"
	"github.com/s76354m/AxisRAG/internal/embedding"
	"github.com/s76354m/AxisRAG/internal/evaluation"
	"github.com/s76354m/AxisRAG/internal/report"
)

// Config wires the pipeline components together.
type Config struct {
	Loader     domain.Loader
	Chunker    domain.Chunker
	Pool       *embedding.Pool
	Store      domain.VectorStore
	Generator  *answer.Generator
	Summarizer domain.Summarizer
	Reports    *report.Writer
	// Evaluator scores compared answers. Defaults to evaluation.New().
	Evaluator  *evaluation.Scorer

	// StoreName is recorded in reports.
	StoreName        string
	SummarySentences int
	TopK             int
	Logger           *slog.Logger
}

// Ingestion describes a document after ingestion.
type Ingestion struct {
	Document report.DocumentInfo `json:"document"`
	Summary  string              `json:"summary,omitempty"`
}

// RAGService runs the pipeline. Retrieval waits for a running ingestion to
// complete.
type RAGService struct {
	cfg    Config
	logger *slog.Logger

	mu          sync.RWMutex
	initialized bool
	current     *Ingestion
	chunks      []domain.Chunk
}

// NewRAGService validates c and creates a service.
func NewRAGService(c Config) (*RAGService, error) {
	switch {
	case c.Loader == nil, c.Chunker == nil, c.Pool == nil, c.Store == nil:
		return nil, domain.NewConfigurationError("service requires a loader, chunker, embedding pool and vector store")
	case c.TopK <= 0:
		return nil, domain.NewConfigurationError("top_k must be positive, got %d", c.TopK)
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if c.Evaluator == nil {
		c.Evaluator = evaluation.New()
	}
	return &RAGService{cfg: c, logger: logger}, nil
}

// Current returns the document ingested in this session, if any.
func (s *RAGService) Current() *Ingestion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *RAGService) init(ctx context.Context) error {
	if s.initialized {
		return nil
	}
	if err := s.cfg.Store.Init(ctx, s.cfg.Pool.Embedder().Dimension()); err != nil {
		return domain.AtStage(domain.StageStore, err)
	}
	s.initialized = true
	return nil
}

// Ingest loads, chunks and embeds the PDF at path, replacing any chunks
// previously stored for it. Embeddings are stored as they complete; on
// failure those already stored are kept and the returned Ingestion describes
// the partial result.
func (s *RAGService) Ingest(ctx context.Context, path string) (*Ingestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.cfg.Loader.Load(ctx, path)
	if err != nil {
		return nil, domain.AtStage(domain.StageLoad, err)
	}
	chunks, err := s.cfg.Chunker.Chunk(doc)
	if err != nil {
		return nil, domain.AtStage(domain.StageChunk, err)
	}
	if err := s.init(ctx); err != nil {
		return nil, err
	}
	if err := s.cfg.Store.DeleteDocument(ctx, doc.ID); err != nil {
		return nil, domain.AtStage(domain.StageStore, err)
	}

	ing := &Ingestion{Document: report.DocumentInfo{
		ID:     doc.ID,
		Path:   doc.Path,
		Pages:  doc.PageCount(),
		Chunks: len(chunks),
	}}
	s.current = ing
	s.chunks = chunks

	s.logger.Info("embedding chunks", "document_id", doc.ID, "pages", doc.PageCount(), "chunks", len(chunks))
	err = s.cfg.Pool.EmbedChunks(ctx, chunks, func(ctx context.Context, e domain.Entry) error {
		return s.cfg.Store.Upsert(ctx, []domain.Entry{e})
	})
	if err != nil {
		stage := domain.StageStore
		if errors.Is(err, domain.ErrEmbedding) {
			stage = domain.StageEmbed
		}
		return ing, domain.AtStage(stage, err)
	}

	if s.cfg.Summarizer != nil {
		summary, err := s.cfg.Summarizer.Summarize(doc.Text, s.cfg.SummarySentences)
		if err != nil {
			s.logger.Warn("summarizing document failed", "document_id", doc.ID, "error", err)
		}
		ing.Summary = summary
	}

	s.logger.Info("document ingested", "document_id", doc.ID, "path", doc.Path, "chunks", len(chunks))
	return ing, nil
}

// Search returns the topK chunks most similar to query. When the query has
// no usable terms for the embedder, or nothing scores above zero, chunks of
// the current session are ranked lexically instead.
func (s *RAGService) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	s.mu.Lock()
	err := s.init(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 {
		topK = s.cfg.TopK
	}

	vec, err := s.cfg.Pool.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.AtStage(domain.StageEmbed, err)
	}
	if isZero(vec) {
		return s.lexicalSearch(query, topK), nil
	}

	res, err := s.cfg.Store.Query(ctx, vec, topK)
	if err != nil {
		return nil, domain.AtStage(domain.StageRetrieve, err)
	}
	if len(s.chunks) > 0 && allZero(res) {
		s.logger.Debug("no semantic match, using lexical ranking", "query", query)
		return s.lexicalSearch(query, topK), nil
	}
	return res, nil
}

// Ask retrieves context for question and asks the configured providers.
func (s *RAGService) Ask(ctx context.Context, question string, topK int) (domain.Answer, error) {
	gen, err := s.generator()
	if err != nil {
		return domain.Answer{}, err
	}
	results, err := s.Search(ctx, question, topK)
	if err != nil {
		return domain.Answer{}, err
	}
	a, err := gen.Answer(ctx, question, results)
	if err != nil {
		return domain.Answer{Sources: results}, domain.AtStage(domain.StageGenerate, err)
	}
	return a, nil
}

// Compare retrieves context once, asks every provider and scores each
// answer.
func (s *RAGService) Compare(ctx context.Context, question string, topK int) ([]domain.Answer, []domain.SearchResult, error) {
	gen, err := s.generator()
	if err != nil {
		return nil, nil, err
	}
	results, err := s.Search(ctx, question, topK)
	if err != nil {
		return nil, nil, err
	}
	answers, err := gen.Compare(ctx, question, results)
	s.cfg.Evaluator.ScoreAnswers(answers)
	if err != nil {
		return answers, results, domain.AtStage(domain.StageGenerate, err)
	}
	return answers, results, nil
}

func (s *RAGService) generator() (*answer.Generator, error) {
	if s.cfg.Generator == nil {
		return nil, domain.AtStage(domain.StageGenerate,
			domain.NewConfigurationError("no answer provider configured, set OPENAI_API_KEY or ANTHROPIC_API_KEY"))
	}
	return s.cfg.Generator, nil
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

func allZero(res []domain.SearchResult) bool {
	for _, r := range res {
		if r.Score > 1e-9 {
			return false
		}
	}
	return true
}
