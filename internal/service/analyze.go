package service

import (
	"context"
	"errors"

	"github.com/s76354m/AxisRAG/internal/domain"
	"github.com/s76354m/AxisRAG/internal/report"
)

// Section is a titled question asked during an analysis.
type Section struct {
	Title    string
	Question string
}

// DefaultSections are asked when an analysis is run without questions.
var DefaultSections = []Section{
	{
		Title:    "Technical Architecture",
		Question: "Describe the technical architecture: the key components, how they relate, the technical stack and the architecture patterns used.",
	},
	{
		Title:    "Data Model",
		Question: "What data model does the document describe? Cover data sources and entities, their relationships, access patterns and integrity mechanisms.",
	},
	{
		Title:    "Integration Points",
		Question: "Which external systems, APIs and interfaces are involved, and how is data exchanged with them?",
	},
	{
		Title:    "Control Structure",
		Question: "Describe the control structure: control hierarchy, event handling, state management and user interactions.",
	},
}

// Questions turns free-form questions into untitled sections, or returns the
// default sections when there are none.
func Questions(questions []string) []Section {
	if len(questions) == 0 {
		return DefaultSections
	}
	sections := make([]Section, len(questions))
	for i, q := range questions {
		sections[i] = Section{Question: q}
	}
	return sections
}

// AnalyzeOptions configures Analyze.
type AnalyzeOptions struct {
	Sections []Section
	// Compare asks every provider instead of falling back.
	Compare bool
	TopK    int
}

// Analyze ingests path, answers every section and writes a report. A report
// is written even when a stage fails; the failures are recorded in it and
// the first one is returned alongside the report path.
func (s *RAGService) Analyze(ctx context.Context, path string, opts AnalyzeOptions) (*report.Report, string, error) {
	rep := s.newReport()

	var firstErr error
	record := func(stage domain.Stage, err error) {
		rep.AddError(stage, err)
		if firstErr == nil {
			firstErr = err
		}
	}

	ing, err := s.Ingest(ctx, path)
	if ing != nil {
		doc := ing.Document
		rep.Document = &doc
		rep.Summary = ing.Summary
	}
	if err != nil {
		record(domain.StageLoad, err)
	} else {
		for _, sec := range opts.Sections {
			entry, err := s.analyzeSection(ctx, sec, opts)
			rep.Entries = append(rep.Entries, entry)
			if err != nil {
				record(domain.StageGenerate, err)
			}
			if ctx.Err() != nil {
				break
			}
		}
	}

	if s.cfg.Reports == nil {
		return rep, "", firstErr
	}
	written, err := s.cfg.Reports.Write(rep)
	if err != nil {
		return rep, "", errors.Join(firstErr, domain.AtStage(domain.StageReport, err))
	}
	return rep, written, firstErr
}

// newReport starts a report carrying the pipeline's configuration.
func (s *RAGService) newReport() *report.Report {
	rep := report.New()
	rep.Embedder = s.cfg.Pool.Embedder().Name()
	rep.VectorStore = s.cfg.StoreName
	if s.cfg.Generator != nil {
		rep.Providers = s.cfg.Generator.Providers()
	}
	return rep
}

func (s *RAGService) analyzeSection(ctx context.Context, sec Section, opts AnalyzeOptions) (report.Entry, error) {
	entry := report.Entry{Title: sec.Title, Question: sec.Question}

	if opts.Compare {
		answers, sources, err := s.Compare(ctx, sec.Question, opts.TopK)
		entry.Answers, entry.Sources = answers, sources
		if err != nil {
			entry.Error = err.Error()
		}
		return entry, err
	}

	a, err := s.Ask(ctx, sec.Question, opts.TopK)
	entry.Sources = a.Sources
	if err != nil {
		entry.Error = err.Error()
		return entry, err
	}
	entry.Answers = []domain.Answer{a}
	return entry, nil
}
