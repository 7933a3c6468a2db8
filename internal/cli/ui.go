package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/s76354m/AxisRAG/internal/domain"
)

var (
	successMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	failMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	rankStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func mark(err error) string {
	if err != nil {
		return failMark
	}
	return successMark
}

// renderMarkdown renders markdown content for terminal display using glamour.
func renderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}
	return rendered, nil
}

func printAnswer(w io.Writer, a domain.Answer) {
	label := fmt.Sprintf("%s (%s)", a.Provider, a.Model)
	if a.Fallback {
		label += ", fallback"
	}
	fmt.Fprintf(w, "\n%s\n\n", headerStyle.Render(label))
	if a.Error != "" {
		fmt.Fprintf(w, "  %s %s\n", failMark, a.Error)
		return
	}
	text, err := renderMarkdown(a.Text)
	if err != nil {
		text = a.Text
	}
	fmt.Fprintln(w, strings.TrimRight(text, "\n"))
	if sc := a.Scores; sc != nil {
		fmt.Fprintf(w, "  %s\n", dimStyle.Render(fmt.Sprintf("technical depth %.2f  completeness %.2f  code quality %.2f",
			sc.TechnicalDepth, sc.Completeness, sc.CodeQuality)))
	}
}

func printSources(w io.Writer, results []domain.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintf(w, "  %s\n", dimStyle.Render("(no sources)"))
		return
	}
	for i, r := range results {
		preview := strings.Join(strings.Fields(r.Chunk.Text), " ")
		if runes := []rune(preview); len(runes) > 80 {
			preview = string(runes[:77]) + "..."
		}
		fmt.Fprintf(w, "  %s  %s  %s  %s\n",
			rankStyle.Render(fmt.Sprintf("#%d", i+1)),
			scoreStyle.Render(fmt.Sprintf("score: %.4f", r.Score)),
			idStyle.Render(r.Chunk.ChunkID),
			dimStyle.Render(fmt.Sprintf("pages %d-%d", r.Chunk.FirstPage, r.Chunk.LastPage)),
		)
		fmt.Fprintf(w, "      %s\n", preview)
	}
}
