// Package prompt builds provider prompts from questions. It is a pure
// function of the question and options.
package prompt

import (
	"fmt"
	"strings"

	"github.com/everstacklabs/brandscope/internal/question"
)

// Prompt is the two-message prompt sent to a provider.
type Prompt struct {
	System string
	User   string
}

// Options tune prompt construction.
type Options struct {
	// Language overrides the answer language; empty derives it from the market.
	Language string
	// MaxSources caps how many sources the provider is asked to cite.
	MaxSources int
}

// System instructs JSON-only output.
const System = `You are a market research analyst. Answer with a single JSON object and nothing else: no prose, no markdown, no code fences. Use only the fields described in the instructions. When you rely on web pages, list them in a "sources" array with "url", "title", "domain", "sourceType" and, when the page belongs to a competitor, "competitorName".`

var sourceTypes = "Brand, Competitor, News, Review, Social Media, Forum, Video, Encyclopedia, E-commerce, Blog, Academic, Government, Other"

// Build returns the prompt for q.
func Build(q question.Question, opts Options) Prompt {
	if opts.MaxSources <= 0 {
		opts.MaxSources = 10
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Market: %s\n", marketLabel(q.Market))
	if lang := language(q.Market, opts.Language); lang != "" {
		fmt.Fprintf(&b, "Answer language: %s\n", lang)
	}
	if q.Brand != "" {
		fmt.Fprintf(&b, "Brand under study: %s\n", q.Brand)
	}
	if len(q.Entities) > 0 {
		fmt.Fprintf(&b, "Entities of interest: %s\n", strings.Join(q.Entities, ", "))
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n\n", strings.TrimSpace(q.Text))
	b.WriteString(instructions(q))
	fmt.Fprintf(&b, "\nCite at most %d sources. Allowed sourceType values: %s.\n", opts.MaxSources, sourceTypes)

	return Prompt{System: System, User: b.String()}
}

func instructions(q question.Question) string {
	switch q.Type {
	case question.TypeCompetitive:
		return `Return {"ranking": [{"name": string, "rank": integer, "reason": string}], "sources": [...]}.
Rank the most relevant brands starting at 1 with no gaps.`
	case question.TypeVisibility:
		return `Return {"mentioned": boolean, "rank": integer or null, "category": string, "summary": string, "sources": [...]}.
"mentioned" tells whether the brand appears in your answer; "rank" is its position among the brands you would recommend.`
	case question.TypeReputation:
		return `Return {"sentiment": "positive" | "neutral" | "negative" | "mixed", "summary": string, "themes": [string], "sources": [...]}.`
	case question.TypeCategory:
		return `Return {"category": string, "confidence": number between 0 and 1, "alternatives": [string], "sources": [...]}.`
	default:
		return `Return a JSON object answering the question with a "sources" array.`
	}
}

var marketLabels = map[question.Market]string{
	"us": "United States",
	"uk": "United Kingdom",
	"gb": "United Kingdom",
	"fr": "France",
	"de": "Germany",
	"es": "Spain",
	"it": "Italy",
	"ca": "Canada",
	"au": "Australia",
}

var marketLanguages = map[question.Market]string{
	"fr": "French",
	"de": "German",
	"es": "Spanish",
	"it": "Italian",
}

func marketLabel(m question.Market) string {
	if l, ok := marketLabels[question.Market(strings.ToLower(string(m)))]; ok {
		return l
	}
	if m == "" {
		return "Global"
	}
	return strings.ToUpper(string(m))
}

func language(m question.Market, override string) string {
	if override != "" {
		return override
	}
	return marketLanguages[question.Market(strings.ToLower(string(m)))]
}
