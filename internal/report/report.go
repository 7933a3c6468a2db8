// Package report persists the outcome of an analysis session as JSON with a
// Markdown rendition next to it.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/s76354m/AxisRAG/internal/domain"
)

// DocumentInfo describes the analysed document.
type DocumentInfo struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Pages  int    `json:"pages"`
	Chunks int    `json:"chunks"`
}

// Entry is one question of the session.
type Entry struct {
	Title    string                `json:"title,omitempty"`
	Question string                `json:"question"`
	Sources  []domain.SearchResult `json:"sources,omitempty"`
	Answers  []domain.Answer       `json:"answers,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// Failure records an error raised during the session.
type Failure struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// Report is a single analysis session.
type Report struct {
	SessionID   string        `json:"session_id"`
	CreatedAt   time.Time     `json:"created_at"`
	Document    *DocumentInfo `json:"document,omitempty"`
	Embedder    string        `json:"embedder,omitempty"`
	VectorStore string        `json:"vector_store,omitempty"`
	Providers   []string      `json:"providers,omitempty"`
	Summary     string        `json:"summary,omitempty"`
	Entries     []Entry       `json:"entries"`
	Errors      []Failure     `json:"errors,omitempty"`
}

// New starts a report for a new session.
func New() *Report {
	return &Report{
		SessionID: uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Entries:   []Entry{},
	}
}

// AddError records err under the stage it carries, or fallback when it has
// none.
func (r *Report) AddError(fallback domain.Stage, err error) {
	if err == nil {
		return
	}
	stage, ok := domain.StageOf(err)
	if !ok {
		stage = fallback
	}
	r.Errors = append(r.Errors, Failure{Stage: string(stage), Message: err.Error()})
}

// Err joins every recorded failure, or returns nil.
func (r *Report) Err() error {
	errs := make([]error, 0, len(r.Errors))
	for _, f := range r.Errors {
		errs = append(errs, fmt.Errorf("%s: %s", f.Stage, f.Message))
	}
	return errors.Join(errs...)
}

// Markdown renders the report for humans.
func (r *Report) Markdown() string {
	var b strings.Builder

	b.WriteString("# AxisRAG analysis report\n\n")
	fmt.Fprintf(&b, "- Session: `%s`\n", r.SessionID)
	fmt.Fprintf(&b, "- Created: %s\n", r.CreatedAt.UTC().Format(time.RFC3339))
	if r.Document != nil {
		fmt.Fprintf(&b, "- Document: `%s` (%d pages, %d chunks)\n", r.Document.Path, r.Document.Pages, r.Document.Chunks)
	}
	if r.Embedder != "" {
		fmt.Fprintf(&b, "- Embedder: %s\n", r.Embedder)
	}
	if r.VectorStore != "" {
		fmt.Fprintf(&b, "- Vector store: %s\n", r.VectorStore)
	}
	if len(r.Providers) > 0 {
		fmt.Fprintf(&b, "- Providers: %s\n", strings.Join(r.Providers, ", "))
	}

	if r.Summary != "" {
		b.WriteString("\n## Summary\n\n")
		b.WriteString(r.Summary)
		b.WriteString("\n")
	}

	for _, e := range r.Entries {
		title := e.Title
		if title == "" {
			title = e.Question
		}
		fmt.Fprintf(&b, "\n## %s\n\n", title)
		if e.Title != "" {
			fmt.Fprintf(&b, "> %s\n\n", e.Question)
		}
		for _, a := range e.Answers {
			label := fmt.Sprintf("%s (%s)", a.Provider, a.Model)
			if a.Fallback {
				label += ", fallback"
			}
			fmt.Fprintf(&b, "### %s\n\n", label)
			if a.Error != "" {
				fmt.Fprintf(&b, "_Failed: %s_\n\n", a.Error)
				continue
			}
			b.WriteString(strings.TrimSpace(a.Text))
			b.WriteString("\n\n")
			if sc := a.Scores; sc != nil {
				fmt.Fprintf(&b, "Scores: technical depth %.2f, completeness %.2f, code quality %.2f\n\n",
					sc.TechnicalDepth, sc.Completeness, sc.CodeQuality)
			}
		}
		if e.Error != "" {
			fmt.Fprintf(&b, "_Error: %s_\n\n", e.Error)
		}
		if len(e.Sources) > 0 {
			b.WriteString("Sources:\n\n")
			for i, s := range e.Sources {
				fmt.Fprintf(&b, "%d. `%s` pages %d-%d, score %.3f\n", i+1, s.Chunk.ChunkID, s.Chunk.FirstPage, s.Chunk.LastPage, s.Score)
			}
		}
	}

	if len(r.Errors) > 0 {
		b.WriteString("\n## Errors\n\n")
		for _, f := range r.Errors {
			fmt.Fprintf(&b, "- **%s**: %s\n", f.Stage, f.Message)
		}
	}
	return b.String()
}
