// Package chat implements the chat-completion adapter shared by OpenAI,
// Gemini (OpenAI-compatible endpoint) and Perplexity.
package chat

import (
	"context"
	"encoding/json"
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
	provider.Register(provider.KindChat, func(d provider.Deps) provider.Adapter {
		return New(d.HTTP, d.Pricing)
	})
}

// Adapter calls {base_url}/chat/completions.
type Adapter struct {
	http    *httpclient.Client
	pricing *pricing.Table
}

// New creates a chat-completion adapter.
func New(hc *httpclient.Client, prices *pricing.Table) *Adapter {
	if hc == nil {
		hc = httpclient.New()
	}
	return &Adapter{http: hc, pricing: prices}
}

func (a *Adapter) Kind() provider.Kind { return provider.KindChat }

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content     string       `json:"content"`
			Annotations []annotation `json:"annotations"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Citations     []string `json:"citations"`
	SearchResults []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	} `json:"search_results"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

type annotation struct {
	Type        string `json:"type"`
	URLCitation struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"url_citation"`
}

// Call sends the prompt and normalizes the response. It never returns an
// error; failures are classified into the result status.
func (a *Adapter) Call(ctx context.Context, q question.Question, p prompt.Prompt, cfg provider.Config, creds provider.Credentials) provider.Result {
	start := time.Now()
	elapsed := func() int64 { return time.Since(start).Milliseconds() }

	req := provider.NewShaper(cfg).Shape(p)
	headers := map[string]string{"Authorization": "Bearer " + creds.APIKey}

	resp, err := a.http.PostJSON(ctx, cfg.BaseURL+"/chat/completions", headers, req)
	if err != nil {
		return provider.Failed(cfg, err, elapsed())
	}

	var body completionResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return provider.FailedWith(cfg, provider.StatusParseError, eris.Wrap(err, "chat: decode response"), elapsed())
	}
	if body.Error != nil {
		return provider.Failed(cfg, eris.Errorf("chat: %s: %s", body.Error.Type, body.Error.Message), elapsed())
	}
	if len(body.Choices) == 0 {
		return provider.FailedWith(cfg, provider.StatusParseError, eris.New("chat: empty choices"), elapsed())
	}

	choice := body.Choices[0]
	content := choice.Message.Content
	if content == "" && choice.FinishReason == "length" {
		return provider.FailedWith(cfg, provider.StatusTokenLimitExceeded, eris.New("chat: output truncated at token limit"), elapsed())
	}

	ans, strategy, err := answer.Parse(content)
	if err != nil {
		r := provider.FailedWith(cfg, provider.StatusParseError, err, elapsed())
		r.RawText = content
		return r
	}

	set := provider.NewCitationSet()
	for _, c := range provider.SourcesFromAnswer(ans) {
		set.Add(c)
	}
	for _, an := range choice.Message.Annotations {
		if an.Type == "url_citation" {
			set.Add(provider.NewCitation(an.URLCitation.URL, an.URLCitation.Title, "", "", ""))
		}
	}
	for _, u := range body.Citations {
		set.Add(provider.NewCitation(u, "", "", "", ""))
	}
	for _, sr := range body.SearchResults {
		set.Add(provider.NewCitation(sr.URL, sr.Title, "", "", ""))
	}

	tokensIn, tokensOut := body.Usage.PromptTokens, body.Usage.CompletionTokens
	return provider.Result{
		Provider:      cfg.Name,
		Model:         cfg.Model,
		Status:        provider.StatusOK,
		Answer:        ans,
		ParseStrategy: strategy,
		RawText:       content,
		Citations:     set.List(),
		TokensIn:      tokensIn,
		TokensOut:     tokensOut,
		Cost:          a.pricing.Cost(string(cfg.Name), cfg.Model, tokensIn, tokensOut),
		LatencyMs:     elapsed(),
		Cached:        resp.FromCache,
	}.Normalize()
}
