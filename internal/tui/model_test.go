package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/s76354m/AxisRAG/internal/domain"
	"github.com/s76354m/AxisRAG/internal/report"
	"github.com/s76354m/AxisRAG/internal/service"
)

type fakePort struct {
	asked    []string
	searched []string
	err      error
}

var sources = []domain.SearchResult{
	{Chunk: domain.Chunk{ChunkID: "d:0", Text: "Refunds need approval. Operators approve them.", FirstPage: 1, LastPage: 1}, Score: 0.9},
	{Chunk: domain.Chunk{ChunkID: "d:1", Text: "The ledger stores invoices.", FirstPage: 2, LastPage: 2}, Score: 0.4},
}

func (f *fakePort) Search(_ context.Context, q string, _ int) ([]domain.SearchResult, error) {
	f.searched = append(f.searched, q)
	return sources, f.err
}

func (f *fakePort) Ask(_ context.Context, q string, _ int) (domain.Answer, error) {
	f.asked = append(f.asked, q)
	if f.err != nil {
		return domain.Answer{Sources: sources}, f.err
	}
	return domain.Answer{Provider: "openai", Model: "gpt-4o", Text: "Operators approve refunds.", Sources: sources}, nil
}

func (f *fakePort) Ingest(context.Context, string) (*service.Ingestion, error) { return nil, nil }

func (f *fakePort) Current() *service.Ingestion {
	return &service.Ingestion{Document: report.DocumentInfo{ID: "d", Path: "manual.pdf", Pages: 2, Chunks: 2}}
}

type memoryReports struct{ written []*report.Report }

func (r *memoryReports) Write(rep *report.Report) (string, error) {
	r.written = append(r.written, rep)
	return "report.json", nil
}

func typeQuery(m Model, q string) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(q)})
	return next.(Model)
}

// press sends Enter and runs the resulting command batch to completion.
func press(m Model) (Model, []tea.Msg) {
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	var msgs []tea.Msg
	if cmd == nil {
		return m, nil
	}
	if batch, ok := cmd().(tea.BatchMsg); ok {
		for _, c := range batch {
			if c == nil {
				continue
			}
			msg := c()
			if _, tick := msg.(spinner.TickMsg); tick {
				continue
			}
			msgs = append(msgs, msg)
		}
	}
	return m, msgs
}

var _ = Describe("Model", func() {
	var (
		port *fakePort
		m    Model
	)

	BeforeEach(func() {
		port = &fakePort{}
		m = New(context.Background(), port, "manual.pdf", "A billing manual.", 2)
		next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
		m = next.(Model)
	})

	It("renders the header and summary once sized", func() {
		view := m.View()
		Expect(view).To(ContainSubstring("AxisRAG"))
		Expect(view).To(ContainSubstring("manual.pdf"))
		Expect(view).To(ContainSubstring("A billing manual."))
	})

	It("asks the service and shows the answer with its sources", func() {
		m = typeQuery(m, "who approves refunds")
		m, msgs := press(m)
		Expect(m.busy).To(BeTrue())
		Expect(msgs).To(HaveLen(1))

		next, _ := m.Update(msgs[0])
		m = next.(Model)
		Expect(port.asked).To(Equal([]string{"who approves refunds"}))
		Expect(m.busy).To(BeFalse())
		Expect(m.answer.Text).To(Equal("Operators approve refunds."))
		Expect(m.status).To(ContainSubstring("openai"))
		Expect(m.renderCurrent()).To(ContainSubstring("Source 1/2"))

		next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m = next.(Model)
		Expect(m.renderCurrent()).To(ContainSubstring("Source 2/2"))
	})

	It("only searches in search mode", func() {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
		m = next.(Model)
		Expect(m.mode).To(Equal(ModeSearch))

		m = typeQuery(m, "ledger")
		m, msgs := press(m)
		next, _ = m.Update(msgs[0])
		m = next.(Model)
		Expect(port.searched).To(Equal([]string{"ledger"}))
		Expect(port.asked).To(BeEmpty())
		Expect(m.answer).To(BeNil())
		Expect(m.status).To(ContainSubstring("2 results"))
	})

	It("shows the failing stage", func() {
		port.err = domain.AtStage(domain.StageGenerate, errors.New("all providers failed"))
		m = typeQuery(m, "q")
		m, msgs := press(m)
		next, _ := m.Update(msgs[0])
		m = next.(Model)
		Expect(m.status).To(Equal("Error (generate): generate stage: all providers failed"))
		Expect(m.results).To(HaveLen(2))
	})

	It("records what was asked when driven through a session", func() {
		reports := &memoryReports{}
		sess := service.NewSession(port, reports, nil)
		m = New(context.Background(), sess, "manual.pdf", "", 2)
		sized, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
		m = sized.(Model)

		m = typeQuery(m, "who approves refunds")
		m, msgs := press(m)
		next, _ := m.Update(msgs[0])
		m = next.(Model)
		Expect(m.answer).NotTo(BeNil())
		Expect(port.asked).To(Equal([]string{"who approves refunds"}))

		path, err := sess.Close()
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("report.json"))
		Expect(reports.written).To(HaveLen(1))
		rep := reports.written[0]
		Expect(rep.Document.ID).To(Equal("d"))
		Expect(rep.Entries).To(HaveLen(1))
		Expect(rep.Entries[0].Question).To(Equal("who approves refunds"))
		Expect(rep.Entries[0].Answers[0].Text).To(Equal("Operators approve refunds."))
	})

	It("ignores empty input", func() {
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		Expect(cmd).To(BeNil())
	})
})

var _ = Describe("highlightBestSentence", func() {
	It("keeps every sentence", func() {
		out := highlightBestSentence("First one. Second approve.", "approve")
		Expect(out).To(ContainSubstring("First one."))
		Expect(out).To(ContainSubstring("Second approve."))
	})
})
