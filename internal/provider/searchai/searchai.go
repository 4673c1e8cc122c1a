// Package searchai implements the search-AI adapter (Google AI Mode through a
// SERP API). The answer is assembled from text blocks and parsed with the
// same two-stage parser as chat providers.
package searchai

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/everstacklabs/brandscope/internal/answer"
	"github.com/everstacklabs/brandscope/internal/httpclient"
	"github.com/everstacklabs/brandscope/internal/pricing"
	"github.com/everstacklabs/brandscope/internal/prompt"
	"github.com/everstacklabs/brandscope/internal/provider"
	"github.com/everstacklabs/brandscope/internal/question"
)

func init() {
	provider.Register(provider.KindSearch, func(d provider.Deps) provider.Adapter {
		return New(d.HTTP, d.Pricing)
	})
}

// Adapter calls {base_url}/search.
type Adapter struct {
	http    *httpclient.Client
	pricing *pricing.Table
}

// New creates a search-AI adapter.
func New(hc *httpclient.Client, prices *pricing.Table) *Adapter {
	if hc == nil {
		hc = httpclient.New()
	}
	return &Adapter{http: hc, pricing: prices}
}

func (a *Adapter) Kind() provider.Kind { return provider.KindSearch }

type searchRequest struct {
	Query  string `json:"q"`
	Engine string `json:"engine"`
	GL     string `json:"gl,omitempty"`
}

type searchResponse struct {
	TextBlocks []struct {
		Snippet string `json:"snippet"`
	} `json:"text_blocks"`
	References []struct {
		Title  string `json:"title"`
		Link   string `json:"link"`
		Source string `json:"source"`
	} `json:"references"`
	Error string `json:"error"`
}

// Call sends the full user prompt as the query. Search providers report no
// token usage; cost is the flat per-query price.
func (a *Adapter) Call(ctx context.Context, q question.Question, p prompt.Prompt, cfg provider.Config, creds provider.Credentials) provider.Result {
	start := time.Now()
	elapsed := func() int64 { return time.Since(start).Milliseconds() }

	engine := cfg.Engine
	if engine == "" {
		engine = "google_ai_mode"
	}
	req := searchRequest{
		Query:  p.User,
		Engine: engine,
		GL:     countryCode(q.Market),
	}
	headers := map[string]string{"Authorization": "Bearer " + creds.APIKey}

	resp, err := a.http.PostJSON(ctx, cfg.BaseURL+"/search", headers, req)
	if err != nil {
		return provider.Failed(cfg, err, elapsed())
	}

	var body searchResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return provider.FailedWith(cfg, provider.StatusParseError, eris.Wrap(err, "searchai: decode response"), elapsed())
	}
	if body.Error != "" {
		return provider.Failed(cfg, eris.Errorf("searchai: %s", body.Error), elapsed())
	}

	snippets := make([]string, 0, len(body.TextBlocks))
	for _, tb := range body.TextBlocks {
		if s := strings.TrimSpace(tb.Snippet); s != "" {
			snippets = append(snippets, s)
		}
	}
	raw := strings.Join(snippets, "\n")

	ans, strategy, err := answer.Parse(raw)
	if err != nil {
		r := provider.FailedWith(cfg, provider.StatusParseError, err, elapsed())
		r.RawText = raw
		return r
	}

	set := provider.NewCitationSet()
	for _, c := range provider.SourcesFromAnswer(ans) {
		set.Add(c)
	}
	for _, ref := range body.References {
		set.Add(provider.NewCitation(ref.Link, ref.Title, "", "", ""))
	}

	return provider.Result{
		Provider:      cfg.Name,
		Model:         cfg.Model,
		Status:        provider.StatusOK,
		Answer:        ans,
		ParseStrategy: strategy,
		RawText:       raw,
		Citations:     set.List(),
		Cost:          a.pricing.Cost(string(cfg.Name), cfg.Model, 0, 0),
		LatencyMs:     elapsed(),
		Cached:        resp.FromCache,
	}.Normalize()
}

// countryCode turns a market code such as "fr" or "en-US" into a lowercase
// two-letter country code.
func countryCode(m question.Market) string {
	s := strings.ToLower(strings.TrimSpace(string(m)))
	if i := strings.IndexAny(s, "-_"); i >= 0 {
		s = s[i+1:]
	}
	if len(s) != 2 {
		return ""
	}
	return s
}
