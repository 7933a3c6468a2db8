package domain

import (
	"context"
	"sort"
)

// Page is the extracted text of a single PDF page.
type Page struct {
	Number int
	Text   string
	// Offset is the rune offset of the page within Document.Text.
	Offset int
}

// Document represents a single PDF loaded into the system.
type Document struct {
	ID    string
	Path  string
	Pages []Page
	Text  string
}

// PageCount returns the number of pages in the source file.
func (d Document) PageCount() int { return len(d.Pages) }

// PageAt returns the number of the page containing the given rune offset.
func (d Document) PageAt(offset int) int {
	if len(d.Pages) == 0 {
		return 0
	}
	i := sort.Search(len(d.Pages), func(i int) bool { return d.Pages[i].Offset > offset })
	if i == 0 {
		return d.Pages[0].Number
	}
	return d.Pages[i-1].Number
}

// Chunk is a bounded slice of document text used as the retrieval unit.
type Chunk struct {
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id"`
	Text       string `json:"text"`
	Index      int    `json:"index"`
	Offset     int    `json:"offset"`
	FirstPage  int    `json:"first_page"`
	LastPage   int    `json:"last_page"`
}

// Entry pairs a chunk with its embedding for storage.
type Entry struct {
	Chunk  Chunk
	Vector []float32
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Prompt is what gets sent to an answer provider.
type Prompt struct {
	System string
	User   string
	// MaxTokens bounds the generated answer.
	MaxTokens int
}

// Answer is the output of a single provider for a question.
type Answer struct {
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Text     string         `json:"text,omitempty"`
	Sources  []SearchResult `json:"sources,omitempty"`
	Fallback bool           `json:"fallback,omitempty"`
	Error    string         `json:"error,omitempty"`
	Scores   *Scores        `json:"scores,omitempty"`
}

// Scores rates the content of an answer. Every score is in [0, 1].
type Scores struct {
	TechnicalDepth float64 `json:"technical_depth"`
	Completeness   float64 `json:"completeness"`
	CodeQuality    float64 `json:"code_quality"`
}

// Loader extracts text from a source file.
type Loader interface {
	Load(ctx context.Context, path string) (Document, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists vectors and supports similarity search.
//
// Upsert replaces entries that share a chunk ID. Query returns at most topK
// results ordered by descending score, ties broken by chunk index.
// DeleteChunks ignores IDs that are not stored.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, entries []Entry) error
	Query(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	Count(ctx context.Context) (int, error)
	DeleteDocument(ctx context.Context, documentID string) error
	DeleteChunks(ctx context.Context, chunkIDs []string) error
	Close() error
}

// AnswerProvider is a hosted model able to answer a prompt.
type AnswerProvider interface {
	Name() string
	Model() string
	// ContextWindow is the model's prompt budget in tokens.
	ContextWindow() int
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
