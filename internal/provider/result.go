package provider

import (
	"net/url"
	"strings"

	"github.com/everstacklabs/brandscope/internal/answer"
)

// Name identifies a configured provider (e.g., "openai", "gemini").
type Name string

const (
	Gemini       Name = "gemini"
	OpenAI       Name = "openai"
	GoogleAIMode Name = "google_ai_mode"
	Perplexity   Name = "perplexity"
	Claude       Name = "claude"
)

// Status classifies the outcome of one provider call.
type Status string

const (
	StatusOK                 Status = "ok"
	StatusTimeout            Status = "timeout"
	StatusRateLimited        Status = "rate_limited"
	StatusServerError        Status = "server_error"
	StatusAuthError          Status = "auth_error"
	StatusProviderNotFound   Status = "provider_not_found"
	StatusParseError         Status = "parse_error"
	StatusTokenLimitExceeded Status = "token_limit_exceeded"
	StatusUnknownError       Status = "unknown_error"
)

// Statuses lists the full taxonomy, ok first.
var Statuses = []Status{
	StatusOK, StatusTimeout, StatusRateLimited, StatusServerError, StatusAuthError,
	StatusProviderNotFound, StatusParseError, StatusTokenLimitExceeded, StatusUnknownError,
}

// SourceType is the category of a cited source.
type SourceType string

const (
	SourceBrand        SourceType = "Brand"
	SourceCompetitor   SourceType = "Competitor"
	SourceNews         SourceType = "News"
	SourceReview       SourceType = "Review"
	SourceSocial       SourceType = "Social Media"
	SourceForum        SourceType = "Forum"
	SourceVideo        SourceType = "Video"
	SourceEncyclopedia SourceType = "Encyclopedia"
	SourceEcommerce    SourceType = "E-commerce"
	SourceBlog         SourceType = "Blog"
	SourceAcademic     SourceType = "Academic"
	SourceGovernment   SourceType = "Government"
	SourceOther        SourceType = "Other"
)

var sourceTypeAliases = map[string]SourceType{
	"brand":         SourceBrand,
	"official":      SourceBrand,
	"competitor":    SourceCompetitor,
	"news":          SourceNews,
	"media":         SourceNews,
	"review":        SourceReview,
	"reviews":       SourceReview,
	"social media":  SourceSocial,
	"social":        SourceSocial,
	"forum":         SourceForum,
	"community":     SourceForum,
	"video":         SourceVideo,
	"encyclopedia":  SourceEncyclopedia,
	"wiki":          SourceEncyclopedia,
	"e-commerce":    SourceEcommerce,
	"ecommerce":     SourceEcommerce,
	"marketplace":   SourceEcommerce,
	"blog":          SourceBlog,
	"academic":      SourceAcademic,
	"research":      SourceAcademic,
	"government":    SourceGovernment,
	"institutional": SourceGovernment,
}

// ParseSourceType maps a provider-supplied label onto the fixed categories.
// Unknown or empty labels become Other.
func ParseSourceType(s string) SourceType {
	if st, ok := sourceTypeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st
	}
	return SourceOther
}

// Citation is a source referenced by a provider's answer.
type Citation struct {
	URL            string     `json:"url"`
	Title          string     `json:"title,omitempty"`
	Domain         string     `json:"domain"`
	SourceType     SourceType `json:"sourceType"`
	CompetitorName string     `json:"competitorName,omitempty"`
}

// NewCitation builds a Citation, deriving the domain from the URL when the
// provider did not supply one.
func NewCitation(rawURL, title, domain, sourceType, competitor string) Citation {
	rawURL = strings.TrimSpace(rawURL)
	if domain == "" {
		domain = HostOf(rawURL)
	}
	return Citation{
		URL:            rawURL,
		Title:          strings.TrimSpace(title),
		Domain:         strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www."),
		SourceType:     ParseSourceType(sourceType),
		CompetitorName: strings.TrimSpace(competitor),
	}
}

// HostOf returns the lowercase host of rawURL without a leading "www.", or ""
// when rawURL has no host.
func HostOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// Result is the normalized outcome of one (question, provider) call.
type Result struct {
	Provider      Name            `json:"provider"`
	Model         string          `json:"model"`
	Status        Status          `json:"status"`
	LatencyMs     int64           `json:"latencyMs"`
	Answer        answer.Answer   `json:"answer"`
	ParseStrategy answer.Strategy `json:"parseStrategy,omitempty"`
	RawText       string          `json:"rawText,omitempty"`
	Citations     []Citation      `json:"citations"`
	TokensIn      int             `json:"tokensIn"`
	TokensOut     int             `json:"tokensOut"`
	Cost          float64         `json:"cost"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`
	// Cached marks an answer replayed from the response cache.
	Cached bool `json:"cached,omitempty"`
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Status == StatusOK }

// Failed builds a failure result from err, classifying it.
func Failed(cfg Config, err error, latencyMs int64) Result {
	return FailedWith(cfg, Classify(err), err, latencyMs)
}

// FailedWith builds a failure result with an explicit status.
func FailedWith(cfg Config, status Status, err error, latencyMs int64) Result {
	r := Result{
		Provider:  cfg.Name,
		Model:     cfg.Model,
		Status:    status,
		LatencyMs: latencyMs,
	}
	if err != nil {
		r.ErrorMessage = err.Error()
	}
	return r.Normalize()
}

// Normalize enforces the Result invariants: Status is ok iff Answer is set,
// and Cost is non-negative and zero for failures.
func (r Result) Normalize() Result {
	if r.Status == StatusOK && r.Answer == nil {
		r.Status = StatusParseError
		if r.ErrorMessage == "" {
			r.ErrorMessage = "no structured answer"
		}
	}
	if r.Status != StatusOK {
		r.Answer = nil
		r.ParseStrategy = ""
		r.Cost = 0
		r.Citations = nil
	}
	if r.Cost < 0 {
		r.Cost = 0
	}
	if r.Citations == nil {
		r.Citations = []Citation{}
	}
	return r
}
