// Package evaluation scores generated answers so providers can be compared.
package evaluation

import (
	"regexp"
	"strings"

	"github.com/s76354m/AxisRAG/internal/domain"
)

var technicalTerms = []string{
	"api", "sql", "oauth", "rest", "schema", "database", "microservice",
	"queue", "azure", "aws", ".net", "c#", "dataverse", "sharepoint",
	"power automate", "powerapps", "kubernetes", "webhook",
}

// vocabulary groups the terms a design answer is expected to use.
var vocabulary = [][]string{
	{"gallery", "form", "button", "screen", "component", "widget", "dropdown", "table"},
	{"create", "patch", "update", "delete", "filter", "lookup", "navigate", "collect"},
	{"sharepoint", "dataverse", "sql", "postgres", "excel", "azure", "s3", "blob"},
	{"class", "interface", "method", "property", "async", "await", "struct", "function"},
}

var (
	commentPattern = regexp.MustCompile(`(//|/\*|\*).*`)
	namingPattern  = regexp.MustCompile(`[A-Z][a-zA-Z0-9]+`)
	errorPattern   = regexp.MustCompile(`(try|catch|finally|error|exception|err != nil)`)
	asyncPattern   = regexp.MustCompile(`(async|await|\.then|promise|go func|chan )`)

	conventions = []*regexp.Regexp{
		namingPattern,
		errorPattern,
		commentPattern,
		asyncPattern,
		regexp.MustCompile(`(interface|service|provider|inject)`),
	}

	snippetPatterns = []*regexp.Regexp{
		regexp.MustCompile("```[\\s\\S]*?```"),
		regexp.MustCompile(`(?m)^    .*$`),
		regexp.MustCompile(`(?s)<code>.*?</code>`),
	}

	architecturePatterns = caseless(
		`(database|schema|table|entity|model)`,
		`(service|manager|provider|controller)`,
		`(view|screen|form|gallery|component)`,
		`(api|endpoint|connection|integration)`,
		`(authentication|authorization|permission|role)`,
	)

	implementationPatterns = caseless(
		`(crud|create|read|update|delete|query)`,
		`(try|catch|error|exception|validation)`,
		`(async|await|promise|callback|goroutine)`,
		`(cache|index|performance|optimi[sz]e)`,
		`(test|mock|assert|verify)`,
	)

	// aspects are covered by at least two matches across their patterns.
	aspects = [][]*regexp.Regexp{
		caseless(`(system|component|module|service|architecture)`, `(layer|tier|structure|pattern|design)`),
		caseless(`(entity|table|schema|relationship|model)`, `(database|dataverse|sharepoint|sql)`),
		caseless(`(api|endpoint|connection|interface)`, `(integration|webhook|callback|event)`),
		caseless(`(authentication|authorization|permission)`, `(role|access|security|identity)`),
		caseless(`(optimization|cache|index|performance)`, `(scale|load|response|latency)`),
	}

	practices = caseless(
		`(try|catch|error|exception)`,
		`(log|trace|debug|info|error)`,
		`(config|setting|environment|variable)`,
		`(validate|check|verify|assert)`,
		`(//|/\*|\*|#)`,
		`(test|mock|assert|verify)`,
		`(import|require|using|reference)`,
	)

	explanations = caseless(
		`this (means|indicates|shows|represents)`,
		`for example`,
		`in other words`,
		`specifically`,
		`note that`,
	)

	examples = []*regexp.Regexp{
		regexp.MustCompile(`(?i)example:`),
		regexp.MustCompile(`(?i)for instance`),
		regexp.MustCompile(`(?i)such as`),
		regexp.MustCompile("```"),
		regexp.MustCompile(`(?m)^    `),
	}
)

func caseless(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile("(?i)" + e)
	}
	return out
}

// Scorer rates answers with keyword and pattern heuristics. The zero value
// is ready to use.
type Scorer struct{}

// New returns a Scorer.
func New() *Scorer { return &Scorer{} }

// Score rates text on every dimension.
func (s *Scorer) Score(text string) domain.Scores {
	return domain.Scores{
		TechnicalDepth: s.TechnicalDepth(text),
		Completeness:   s.Completeness(text),
		CodeQuality:    s.CodeQuality(text),
	}
}

// ScoreAnswers attaches scores to every answer that has text.
func (s *Scorer) ScoreAnswers(answers []domain.Answer) {
	for i := range answers {
		if answers[i].Error != "" || strings.TrimSpace(answers[i].Text) == "" {
			continue
		}
		scores := s.Score(answers[i].Text)
		answers[i].Scores = &scores
	}
}

// TechnicalDepth weighs technical vocabulary, code snippets and
// implementation detail.
func (s *Scorer) TechnicalDepth(text string) float64 {
	score := 0.3*termDensity(text) + 0.4*snippetQuality(text) + 0.3*implementationDetail(text)
	return min(1, score)
}

// Completeness is the share of architecture, data model, integration,
// security and performance that text covers.
func (s *Scorer) Completeness(text string) float64 {
	covered := 0
	for _, patterns := range aspects {
		if countAll(text, patterns) >= 2 {
			covered++
		}
	}
	return float64(covered) / float64(len(aspects))
}

// CodeQuality averages convention adherence, good practice and
// documentation.
func (s *Scorer) CodeQuality(text string) float64 {
	return (patternAdherence(text) + bestPractices(text) + documentation(text)) / 3
}

func termDensity(text string) float64 {
	lower := strings.ToLower(text)
	n := 0
	for _, term := range technicalTerms {
		n += strings.Count(lower, term)
	}
	return saturate(n, 10)
}

func snippetQuality(text string) float64 {
	total, quality := 0, 0.0
	for _, p := range snippetPatterns {
		for _, snippet := range p.FindAllString(text, -1) {
			total++
			quality += snippetScore(snippet)
		}
	}
	if total == 0 {
		return 0
	}
	return min(1, quality/float64(total))
}

func snippetScore(snippet string) float64 {
	checks := []*regexp.Regexp{commentPattern, namingPattern, errorPattern, asyncPattern}
	hits := 0
	for _, p := range checks {
		if p.MatchString(snippet) {
			hits++
		}
	}
	return float64(hits) / float64(len(checks))
}

func implementationDetail(text string) float64 {
	return meanSaturated(text, append(append([]*regexp.Regexp{}, architecturePatterns...), implementationPatterns...), 3)
}

func patternAdherence(text string) float64 {
	lower := strings.ToLower(text)
	sum := 0.0
	for _, group := range vocabulary {
		n := 0
		for _, term := range group {
			n += strings.Count(lower, term)
		}
		sum += saturate(n, 5)
	}
	for _, p := range conventions {
		sum += saturate(len(p.FindAllStringIndex(text, -1)), 3)
	}
	return sum / float64(len(vocabulary)+len(conventions))
}

func bestPractices(text string) float64 {
	return meanSaturated(text, practices, 3)
}

func documentation(text string) float64 {
	lines := strings.Count(text, "\n") + 1
	comments := float64(len(commentPattern.FindAllStringIndex(text, -1))) / float64(lines+1)
	return 0.3*min(1, comments) +
		0.4*saturate(countAll(text, explanations), 5) +
		0.3*saturate(countAll(text, examples), 3)
}

func countAll(text string, patterns []*regexp.Regexp) int {
	n := 0
	for _, p := range patterns {
		n += len(p.FindAllStringIndex(text, -1))
	}
	return n
}

func meanSaturated(text string, patterns []*regexp.Regexp, limit int) float64 {
	sum := 0.0
	for _, p := range patterns {
		sum += saturate(len(p.FindAllStringIndex(text, -1)), limit)
	}
	return sum / float64(len(patterns))
}

// saturate maps n onto [0, 1], reaching 1 at limit.
func saturate(n, limit int) float64 {
	return min(1, float64(n)/float64(limit))
}
