// Package dashboard serves the web dashboard and its JSON API.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/s76354m/AxisRAG/internal/domain"
	"github.com/s76354m/AxisRAG/internal/report"
	"github.com/s76354m/AxisRAG/internal/service"
)

// Pipeline is the dashboard-facing subset of the RAG service.
type Pipeline interface {
	Ingest(ctx context.Context, path string) (*service.Ingestion, error)
	Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error)
	Ask(ctx context.Context, question string, topK int) (domain.Answer, error)
	Current() *service.Ingestion
	NewSession() *service.Session
}

// Reports lists and loads written reports.
type Reports interface {
	List() ([]string, error)
	Load(name string) (*report.Report, error)
}

// Config is the dashboard configuration.
type Config struct {
	ListenAddr  string
	DefaultTopK int
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// Server is the dashboard HTTP server.
type Server struct {
	config   Config
	pipeline Pipeline
	reports  Reports
	logger   *slog.Logger
	app      *fiber.App
}

// NewServer creates the dashboard server and registers its routes.
func NewServer(config Config, pipeline Pipeline, reports Reports, logger *slog.Logger) *Server {
	if config.DefaultTopK <= 0 {
		config.DefaultTopK = 4
	}
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		pipeline: pipeline,
		reports:  reports,
		logger:   logger,
		app:      app,
	}

	app.Get("/", s.handleIndex)
	app.Get("/ping", s.handlePing)
	app.Get("/v1/document", s.handleDocument)
	app.Post("/v1/ingest", s.handleIngest)
	app.Get("/v1/search", s.handleSearch)
	app.Post("/v1/ask", s.handleAsk)
	app.Get("/v1/reports", s.handleListReports)
	app.Get("/v1/reports/:name", s.handleGetReport)

	return s
}

// Run starts the server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting dashboard", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, report.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, domain.ErrDocumentLoad):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrConfiguration):
		status = fiber.StatusBadRequest
	case errors.Is(err, domain.ErrEmbedding), errors.Is(err, domain.ErrGeneration):
		status = fiber.StatusBadGateway
	case errors.Is(err, domain.ErrRetrieval):
		status = fiber.StatusServiceUnavailable
	}

	resp := ErrorResponse{Error: err.Error()}
	if stage, ok := domain.StageOf(err); ok {
		resp.Stage = string(stage)
	}
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "stage", resp.Stage, "error", err)
	}
	return c.Status(status).JSON(resp)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}

func (s *Server) topK(raw int) int {
	if raw <= 0 {
		return s.config.DefaultTopK
	}
	return raw
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleDocument(c *fiber.Ctx) error {
	current := s.pipeline.Current()
	if current == nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "no document ingested"})
	}
	return c.JSON(current)
}

// IngestRequest is the body of POST /v1/ingest.
type IngestRequest struct {
	PDFPath string `json:"pdf_path"`
}

func (s *Server) handleIngest(c *fiber.Ctx) error {
	var req IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.PDFPath) == "" {
		return badRequest(c, "pdf_path is required")
	}

	ing, err := s.pipeline.Ingest(c.UserContext(), req.PDFPath)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(ing)
}

// SearchResponse is the body of GET /v1/search.
type SearchResponse struct {
	Query   string                `json:"query"`
	Results []domain.SearchResult `json:"results"`
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := c.Query("query")
	if strings.TrimSpace(query) == "" {
		return badRequest(c, "query parameter is required")
	}

	topK := 0
	if raw := c.Query("top_k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return badRequest(c, "top_k must be a positive integer")
		}
		topK = parsed
	}

	results, err := s.pipeline.Search(c.UserContext(), query, s.topK(topK))
	if err != nil {
		return s.fail(c, err)
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	return c.JSON(SearchResponse{Query: query, Results: results})
}

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

// AskResponse is the body of a successful POST /v1/ask.
type AskResponse struct {
	domain.Answer
	Report string `json:"report,omitempty"`
}

// handleAsk records every question in its own report, failed ones included.
func (s *Server) handleAsk(c *fiber.Ctx) error {
	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return badRequest(c, "question is required")
	}
	if req.TopK < 0 {
		return badRequest(c, "top_k must be a positive integer")
	}

	sess := s.pipeline.NewSession()
	a, err := sess.Ask(c.UserContext(), req.Question, s.topK(req.TopK))
	path, closeErr := sess.Close()
	if closeErr != nil {
		s.logger.Warn("ask report not written", "error", closeErr)
	}
	if err != nil {
		return s.fail(c, err)
	}
	resp := AskResponse{Answer: a}
	if path != "" {
		resp.Report = filepath.Base(path)
	}
	return c.JSON(resp)
}

func (s *Server) handleListReports(c *fiber.Ctx) error {
	names, err := s.reports.List()
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"reports": names})
}

func (s *Server) handleGetReport(c *fiber.Ctx) error {
	r, err := s.reports.Load(c.Params("name"))
	if err != nil {
		return s.fail(c, err)
	}
	if c.Query("format") == "markdown" {
		c.Set(fiber.HeaderContentType, "text/markdown; charset=utf-8")
		return c.SendString(r.Markdown())
	}
	return c.JSON(r)
}
