package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/s76354m/AxisRAG/internal/domain"
	"github.com/s76354m/AxisRAG/internal/logger"
	"github.com/s76354m/AxisRAG/internal/report"
	"github.com/s76354m/AxisRAG/internal/service"
)

type fakePipeline struct {
	current   *service.Ingestion
	results   []domain.SearchResult
	err       error
	lastTopK  int
	lastQuery string
	reports   service.ReportWriter
}

func (f *fakePipeline) Ingest(_ context.Context, path string) (*service.Ingestion, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.current = &service.Ingestion{Document: report.DocumentInfo{ID: "abc", Path: path, Pages: 3, Chunks: 7}, Summary: "sum"}
	return f.current, nil
}

func (f *fakePipeline) Search(_ context.Context, query string, topK int) ([]domain.SearchResult, error) {
	f.lastQuery, f.lastTopK = query, topK
	return f.results, f.err
}

func (f *fakePipeline) Ask(_ context.Context, question string, topK int) (domain.Answer, error) {
	f.lastQuery, f.lastTopK = question, topK
	if f.err != nil {
		return domain.Answer{}, f.err
	}
	return domain.Answer{Provider: "anthropic", Model: "claude", Text: "42", Sources: f.results}, nil
}

func (f *fakePipeline) Current() *service.Ingestion { return f.current }

func (f *fakePipeline) NewSession() *service.Session {
	return service.NewSession(f, f.reports, nil)
}

func decode[T any](resp *http.Response) T {
	defer resp.Body.Close()
	var out T
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(body, &out)).To(Succeed(), string(body))
	return out
}

var _ = Describe("Server", func() {
	var (
		pipeline *fakePipeline
		reports  *report.Writer
		server   *Server
	)

	BeforeEach(func() {
		pipeline = &fakePipeline{results: []domain.SearchResult{
			{Chunk: domain.Chunk{ChunkID: "abc:0", Text: "hello"}, Score: 0.7},
		}}
		reports = report.NewWriter(GinkgoT().TempDir(), logger.Nop())
		pipeline.reports = reports
		server = NewServer(Config{ListenAddr: ":0", DefaultTopK: 4}, pipeline, reports, logger.Nop())
	})

	do := func(method, target, body string) *http.Response {
		var r io.Reader
		if body != "" {
			r = strings.NewReader(body)
		}
		req, err := http.NewRequest(method, target, r)
		Expect(err).NotTo(HaveOccurred())
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	It("serves the index page", func() {
		resp := do(http.MethodGet, "/", "")
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("text/html"))
	})

	It("answers ping", func() {
		resp := do(http.MethodGet, "/ping", "")
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(decode[map[string]string](resp)).To(HaveKeyWithValue("status", "ok"))
	})

	Describe("POST /v1/ingest", func() {
		It("ingests the given path", func() {
			resp := do(http.MethodPost, "/v1/ingest", `{"pdf_path":"/tmp/a.pdf"}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			ing := decode[service.Ingestion](resp)
			Expect(ing.Document.Path).To(Equal("/tmp/a.pdf"))

			resp = do(http.MethodGet, "/v1/document", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})

		It("requires pdf_path", func() {
			resp := do(http.MethodPost, "/v1/ingest", `{}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("reports the failing stage", func() {
			pipeline.err = domain.AtStage(domain.StageLoad, fmt.Errorf("%w: not a PDF", domain.ErrDocumentLoad))
			resp := do(http.MethodPost, "/v1/ingest", `{"pdf_path":"/tmp/a.txt"}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))
			body := decode[ErrorResponse](resp)
			Expect(body.Stage).To(Equal("load"))
			Expect(body.Error).To(ContainSubstring("not a PDF"))
		})
	})

	Describe("GET /v1/search", func() {
		It("returns results with the default top_k", func() {
			resp := do(http.MethodGet, "/v1/search?query=hello", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			body := decode[SearchResponse](resp)
			Expect(body.Results).To(HaveLen(1))
			Expect(pipeline.lastTopK).To(Equal(4))
		})

		It("honours top_k", func() {
			do(http.MethodGet, "/v1/search?query=hello&top_k=2", "")
			Expect(pipeline.lastTopK).To(Equal(2))
		})

		It("returns an empty list rather than null", func() {
			pipeline.results = nil
			resp := do(http.MethodGet, "/v1/search?query=hello", "")
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(ContainSubstring(`"results":[]`))
		})

		It("validates its parameters", func() {
			Expect(do(http.MethodGet, "/v1/search", "").StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(do(http.MethodGet, "/v1/search?query=x&top_k=zero", "").StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("maps retrieval failures to 503", func() {
			pipeline.err = domain.AtStage(domain.StageRetrieve, fmt.Errorf("%w: connection refused", domain.ErrRetrieval))
			resp := do(http.MethodGet, "/v1/search?query=x", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
			Expect(decode[ErrorResponse](resp).Stage).To(Equal("retrieve"))
		})
	})

	Describe("POST /v1/ask", func() {
		It("returns the answer", func() {
			resp := do(http.MethodPost, "/v1/ask", `{"question":"meaning?","top_k":3}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			a := decode[AskResponse](resp)
			Expect(a.Text).To(Equal("42"))
			Expect(a.Sources).To(HaveLen(1))
			Expect(pipeline.lastTopK).To(Equal(3))
		})

		It("writes a report for every question", func() {
			first := decode[AskResponse](do(http.MethodPost, "/v1/ask", `{"question":"meaning?"}`))
			second := decode[AskResponse](do(http.MethodPost, "/v1/ask", `{"question":"purpose?"}`))

			names, err := reports.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{first.Report, second.Report}))

			rep, err := reports.Load(second.Report)
			Expect(err).NotTo(HaveOccurred())
			Expect(rep.Entries).To(HaveLen(1))
			Expect(rep.Entries[0].Question).To(Equal("purpose?"))
			Expect(rep.Entries[0].Answers[0].Text).To(Equal("42"))
		})

		It("records failed questions in a report", func() {
			pipeline.err = domain.AtStage(domain.StageGenerate, errors.New("down"))
			do(http.MethodPost, "/v1/ask", `{"question":"meaning?"}`).Body.Close()

			names, err := reports.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(HaveLen(1))
			rep, err := reports.Load(names[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(rep.Errors[0].Stage).To(Equal("generate"))
		})

		It("maps generation failures to 502", func() {
			pipeline.err = domain.AtStage(domain.StageGenerate, &domain.GenerationFailure{Providers: []string{"openai"}, Err: errors.New("down")})
			resp := do(http.MethodPost, "/v1/ask", `{"question":"meaning?"}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadGateway))
			Expect(decode[ErrorResponse](resp).Stage).To(Equal("generate"))
		})

		It("requires a question", func() {
			Expect(do(http.MethodPost, "/v1/ask", `{"question":" "}`).StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("reports", func() {
		It("lists and loads written reports", func() {
			r := report.New()
			r.Summary = "summary text"
			path, err := reports.Write(r)
			Expect(err).NotTo(HaveOccurred())
			name := filepath.Base(path)

			list := decode[map[string][]string](do(http.MethodGet, "/v1/reports", ""))
			Expect(list["reports"]).To(Equal([]string{name}))

			loaded := decode[report.Report](do(http.MethodGet, "/v1/reports/"+name, ""))
			Expect(loaded.SessionID).To(Equal(r.SessionID))

			resp := do(http.MethodGet, "/v1/reports/"+name+"?format=markdown", "")
			defer resp.Body.Close()
			md, _ := io.ReadAll(resp.Body)
			Expect(string(md)).To(ContainSubstring("summary text"))
		})

		It("returns 404 for unknown reports", func() {
			resp := do(http.MethodGet, "/v1/reports/report_20000101T000000.000000000Z.json", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})
})
