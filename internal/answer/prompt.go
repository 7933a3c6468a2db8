package answer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/s76354m/AxisRAG/internal/domain"
)

const systemInstruction = `You are a technical analyst answering questions about a single document.
Answer using only the numbered context blocks below and cite them as [n].
If the answer cannot be derived from the context, say so explicitly.
Include direct references to the context, implementation considerations, and any limitations or assumptions.`

const noContext = "No context was retrieved for this question.\n\n"

// EstimateTokens approximates the token count of s as one token per four runes.
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

// BuildPrompt renders question and the retrieved results into a prompt that
// fits contextWindow with maxAnswerTokens reserved for the answer. Results are
// expected in rank order; the least similar are dropped until the prompt
// fits. When none fit, the prompt says so only if that note fits too. It
// returns the results that made it into the prompt.
func BuildPrompt(question string, results []domain.SearchResult, contextWindow, maxAnswerTokens int) (domain.Prompt, []domain.SearchResult, error) {
	budget := contextWindow - maxAnswerTokens - EstimateTokens(systemInstruction) - EstimateTokens(renderQuestion(question))
	if contextWindow > 0 && budget < 0 {
		return domain.Prompt{}, nil, domain.NewConfigurationError(
			"context window of %d tokens leaves no room for the question with %d answer tokens reserved", contextWindow, maxAnswerTokens)
	}

	used := results
	if contextWindow > 0 {
		total := 0
		for i, r := range results {
			total += EstimateTokens(renderBlock(i+1, r))
			if total > budget {
				used = results[:i]
				break
			}
		}
	}

	var b strings.Builder
	if len(used) == 0 && (contextWindow <= 0 || EstimateTokens(noContext) <= budget) {
		b.WriteString(noContext)
	}
	for i, r := range used {
		b.WriteString(renderBlock(i+1, r))
	}
	b.WriteString(renderQuestion(question))

	return domain.Prompt{
		System:    systemInstruction,
		User:      b.String(),
		MaxTokens: maxAnswerTokens,
	}, used, nil
}

func renderBlock(n int, r domain.SearchResult) string {
	ch := r.Chunk
	pages := fmt.Sprintf("page %d", ch.FirstPage)
	if ch.LastPage != ch.FirstPage {
		pages = fmt.Sprintf("pages %d-%d", ch.FirstPage, ch.LastPage)
	}
	return fmt.Sprintf("[%d] (%s, score %.3f)\n%s\n\n", n, pages, r.Score, strings.TrimSpace(ch.Text))
}

func renderQuestion(question string) string {
	return "Question: " + strings.TrimSpace(question)
}
