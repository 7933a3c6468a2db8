package answer_test

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/s76354m/AxisRAG/internal/answer"
	"github.com/s76354m/AxisRAG/internal/domain"
)

func result(idx int, score float64, text string) domain.SearchResult {
	return domain.SearchResult{
		Chunk: domain.Chunk{DocumentID: "doc", ChunkID: "doc:" + string(rune('0'+idx)), Index: idx, Text: text, FirstPage: 1, LastPage: 1},
		Score: score,
	}
}

var _ = Describe("EstimateTokens", func() {
	It("rounds up runes divided by four", func() {
		Expect(answer.EstimateTokens("")).To(Equal(0))
		Expect(answer.EstimateTokens("abcd")).To(Equal(1))
		Expect(answer.EstimateTokens("abcde")).To(Equal(2))
		Expect(answer.EstimateTokens("ääää")).To(Equal(1))
	})
})

var _ = Describe("BuildPrompt", func() {
	It("numbers context blocks in rank order and ends with the question", func() {
		prompt, used, err := answer.BuildPrompt("What is the schema?", []domain.SearchResult{
			result(3, 0.9, "tables and columns"),
			result(1, 0.5, "an index"),
		}, 0, 100)
		Expect(err).NotTo(HaveOccurred())
		Expect(used).To(HaveLen(2))
		Expect(prompt.System).NotTo(BeEmpty())
		Expect(prompt.MaxTokens).To(Equal(100))
		Expect(prompt.User).To(ContainSubstring("[1] (page 1, score 0.900)\ntables and columns"))
		Expect(prompt.User).To(ContainSubstring("[2] (page 1, score 0.500)\nan index"))
		Expect(strings.Index(prompt.User, "[1]")).To(BeNumerically("<", strings.Index(prompt.User, "[2]")))
		Expect(prompt.User).To(HaveSuffix("Question: What is the schema?"))
	})

	It("shows page ranges for chunks spanning pages", func() {
		r := result(0, 1, "spans")
		r.Chunk.LastPage = 3
		prompt, _, err := answer.BuildPrompt("q", []domain.SearchResult{r}, 0, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(prompt.User).To(ContainSubstring("pages 1-3"))
	})

	It("drops the least similar chunks first when the window is too small", func() {
		big := strings.Repeat("x", 400)
		results := []domain.SearchResult{
			result(0, 0.9, big),
			result(1, 0.8, big),
			result(2, 0.7, big),
		}
		full, all, err := answer.BuildPrompt("q", results, 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(3))

		// Each block renders to 428 runes, 107 tokens.
		fixed := answer.EstimateTokens(full.System) + answer.EstimateTokens("Question: q")
		window := fixed + 50 + 2*107 + 20
		_, used, err := answer.BuildPrompt("q", results, window, 50)
		Expect(err).NotTo(HaveOccurred())
		Expect(used).To(HaveLen(2))
		Expect(used[0].Score).To(Equal(0.9))
		Expect(used[1].Score).To(Equal(0.8))
	})

	It("keeps the question when no context fits", func() {
		prompt, used, err := answer.BuildPrompt("q", []domain.SearchResult{result(0, 1, strings.Repeat("y", 4000))}, 200, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(used).To(BeEmpty())
		Expect(prompt.User).To(ContainSubstring("No context was retrieved"))
		Expect(prompt.User).To(HaveSuffix("Question: q"))
	})

	It("never exceeds the window when only the question fits", func() {
		unbounded, _, err := answer.BuildPrompt("q", nil, 0, 0)
		Expect(err).NotTo(HaveOccurred())
		window := 50 + answer.EstimateTokens(unbounded.System) + answer.EstimateTokens("Question: q")
		prompt, used, err := answer.BuildPrompt("q", []domain.SearchResult{result(0, 1, strings.Repeat("z", 400))}, window, 50)
		Expect(err).NotTo(HaveOccurred())
		Expect(used).To(BeEmpty())
		Expect(prompt.User).To(Equal("Question: q"))

		total := answer.EstimateTokens(prompt.System) + answer.EstimateTokens(prompt.User) + prompt.MaxTokens
		Expect(total).To(BeNumerically("<=", window))
	})

	It("fails when the answer reservation exceeds the window", func() {
		_, _, err := answer.BuildPrompt("q", nil, 100, 4000)
		Expect(errors.Is(err, domain.ErrConfiguration)).To(BeTrue())
	})
})
