// Package tui is the interactive shell opened after ingestion.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/s76354m/AxisRAG/internal/domain"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error)
	Ask(ctx context.Context, question string, topK int) (domain.Answer, error)
}

// Mode selects what Enter does.
type Mode int

const (
	// ModeAsk retrieves context and generates an answer.
	ModeAsk Mode = iota
	// ModeSearch only retrieves chunks.
	ModeSearch
)

func (m Mode) String() string {
	if m == ModeSearch {
		return "search"
	}
	return "ask"
}

type answerMsg struct {
	query  string
	answer domain.Answer
	err    error
}

type searchMsg struct {
	query   string
	results []domain.SearchResult
	err     error
}

// Model is the Bubble Tea model for the shell.
type Model struct {
	ctx       context.Context
	service   RAGPort
	topK      int
	title     string
	summary   string
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	mode      Mode
	answer    *domain.Answer
	results   []domain.SearchResult
	status    string
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
}

// New creates a shell for the document titled title.
func New(ctx context.Context, service RAGPort, title, summary string, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		service:  service,
		topK:     topK,
		title:    title,
		summary:  summary,
		input:    ti,
		viewport: vp,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		status:   "Loaded. Tab switches between ask and search.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		a, err := m.service.Ask(m.ctx, q, m.topK)
		return answerMsg{query: q, answer: a, err: err}
	}
}

func (m Model) search(q string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.service.Search(m.ctx, q, m.topK)
		return searchMsg{query: q, results: res, err: err}
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil

	case answerMsg:
		m.busy = false
		m.lastQuery = msg.query
		m.cursor = 0
		if msg.err != nil {
			m.status = errorStatus(msg.err)
			m.answer = nil
			m.results = msg.answer.Sources
		} else {
			a := msg.answer
			m.answer = &a
			m.results = a.Sources
			m.status = fmt.Sprintf("Answered by %s (%s)", a.Provider, a.Model)
			if a.Fallback {
				m.status += " after fallback"
			}
		}
		m.refresh()
		return m, nil

	case searchMsg:
		m.busy = false
		m.lastQuery = msg.query
		m.answer = nil
		m.cursor = 0
		if msg.err != nil {
			m.status = errorStatus(msg.err)
			m.results = nil
		} else {
			m.status = fmt.Sprintf("%d results for %q", len(msg.results), msg.query)
			m.results = msg.results
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.input.SetValue("")
			m.status = fmt.Sprintf("Working on %q", q)
			if m.mode == ModeSearch {
				return m, tea.Batch(m.spinner.Tick, m.search(q))
			}
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		case "tab":
			m.mode = (m.mode + 1) % 2
			m.status = "Mode: " + m.mode.String()
			return m, nil
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.refresh()
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.refresh()
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderCurrent())
	m.viewport.GotoTop()
}

func errorStatus(err error) string {
	if stage, ok := domain.StageOf(err); ok {
		return fmt.Sprintf("Error (%s): %v", stage, err)
	}
	return "Error: " + err.Error()
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("AxisRAG  " + m.title + "  [" + m.mode.String() + "]")
	summary := summaryStyle.Width(m.viewport.Width).MaxHeight(1).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	status = statusStyle.Render(status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrent() string {
	var b strings.Builder
	if m.answer != nil {
		b.WriteString(answerStyle.Width(max(20, m.viewport.Width-2)).Render(strings.TrimSpace(m.answer.Text)))
		b.WriteString("\n\n")
	}
	if len(m.results) == 0 {
		if m.answer == nil {
			b.WriteString("No results yet.")
		}
		return b.String()
	}
	r := m.results[m.cursor]
	title := fmt.Sprintf("Source %d/%d  chunk=%s  pages %d-%d  score=%.3f",
		m.cursor+1, len(m.results), r.Chunk.ChunkID, r.Chunk.FirstPage, r.Chunk.LastPage, r.Score)
	b.WriteString(sourceTitleStyle.Render(title))
	b.WriteString("\n\n")
	b.WriteString(highlightBestSentence(r.Chunk.Text, m.lastQuery))
	return b.String()
}

var (
	resultBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	summaryStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	answerStyle      = lipgloss.NewStyle()
	sourceTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	unicodeWordRe    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe       = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
