package service

import (
	"context"
	"sync"

	"github.com/s76354m/AxisRAG/internal/domain"
	"github.com/s76354m/AxisRAG/internal/report"
)

// Pipeline is the part of the service a Session drives.
type Pipeline interface {
	Ingest(ctx context.Context, path string) (*Ingestion, error)
	Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error)
	Ask(ctx context.Context, question string, topK int) (domain.Answer, error)
	Current() *Ingestion
}

// ReportWriter persists a finished session.
type ReportWriter interface {
	Write(r *report.Report) (string, error)
}

// Session records every ingestion, search and question asked through it and
// writes them as one report on Close. It is safe for concurrent use.
type Session struct {
	pipeline Pipeline
	reports  ReportWriter

	mu      sync.Mutex
	rep     *report.Report
	written string
}

// NewSession starts a session over pipeline. rep carries the session metadata
// and is filled in as the session runs.
func NewSession(pipeline Pipeline, reports ReportWriter, rep *report.Report) *Session {
	if rep == nil {
		rep = report.New()
	}
	return &Session{pipeline: pipeline, reports: reports, rep: rep}
}

// NewSession starts a recorded session on this service.
func (s *RAGService) NewSession() *Session {
	var w ReportWriter
	if s.cfg.Reports != nil {
		w = s.cfg.Reports
	}
	return NewSession(s, w, s.newReport())
}

// Ingest ingests path and records the document, or the failure.
func (s *Session) Ingest(ctx context.Context, path string) (*Ingestion, error) {
	ing, err := s.pipeline.Ingest(ctx, path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ing != nil {
		doc := ing.Document
		s.rep.Document = &doc
		s.rep.Summary = ing.Summary
	}
	s.rep.AddError(domain.StageLoad, err)
	return ing, err
}

// Search retrieves chunks for query and records them as an unanswered entry.
func (s *Session) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	results, err := s.pipeline.Search(ctx, query, topK)

	entry := report.Entry{Title: "Search: " + query, Question: query, Sources: results}
	s.record(entry, domain.StageRetrieve, err)
	return results, err
}

// Ask answers question and records the answer with its sources.
func (s *Session) Ask(ctx context.Context, question string, topK int) (domain.Answer, error) {
	a, err := s.pipeline.Ask(ctx, question, topK)

	entry := report.Entry{Question: question, Sources: a.Sources}
	if err == nil {
		entry.Answers = []domain.Answer{a}
	}
	s.record(entry, domain.StageGenerate, err)
	return a, err
}

// Current returns the document ingested by the pipeline, if any.
func (s *Session) Current() *Ingestion {
	return s.pipeline.Current()
}

func (s *Session) record(entry report.Entry, stage domain.Stage, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		entry.Error = err.Error()
		s.rep.AddError(stage, err)
	}
	s.rep.Entries = append(s.rep.Entries, entry)
}

// Close writes the session report and returns its path. A session in which
// nothing happened writes nothing and returns an empty path. Closing again
// returns the first path.
func (s *Session) Close() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.written != "" {
		return s.written, nil
	}
	if len(s.rep.Entries) == 0 && len(s.rep.Errors) == 0 && s.rep.Document == nil {
		return "", nil
	}
	if s.rep.Document == nil {
		if cur := s.pipeline.Current(); cur != nil {
			doc := cur.Document
			s.rep.Document = &doc
			s.rep.Summary = cur.Summary
		}
	}
	if s.reports == nil {
		return "", nil
	}

	path, err := s.reports.Write(s.rep)
	if err != nil {
		return "", domain.AtStage(domain.StageReport, err)
	}
	s.written = path
	return path, nil
}

// Report returns a copy of the report recorded so far.
func (s *Session) Report() report.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep := *s.rep
	rep.Entries = append([]report.Entry(nil), s.rep.Entries...)
	rep.Errors = append([]report.Failure(nil), s.rep.Errors...)
	return rep
}
