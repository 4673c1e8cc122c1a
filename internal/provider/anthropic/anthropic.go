// Package anthropic implements the Claude adapter on the official SDK.
package anthropic

import (
	"context"
	"errors"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/everstacklabs/brandscope/internal/answer"
	"github.com/everstacklabs/brandscope/internal/httpclient"
	"github.com/everstacklabs/brandscope/internal/pricing"
	"github.com/everstacklabs/brandscope/internal/prompt"
	"github.com/everstacklabs/brandscope/internal/provider"
	"github.com/everstacklabs/brandscope/internal/question"
)

func init() {
	provider.Register(provider.KindAnthropic, func(d provider.Deps) provider.Adapter {
		return New(d.HTTP, d.Pricing)
	})
}

// Adapter calls the Anthropic Messages API.
type Adapter struct {
	http    *httpclient.Client
	pricing *pricing.Table
}

// New creates a Claude adapter.
func New(hc *httpclient.Client, prices *pricing.Table) *Adapter {
	if hc == nil {
		hc = httpclient.New()
	}
	return &Adapter{http: hc, pricing: prices}
}

func (a *Adapter) Kind() provider.Kind { return provider.KindAnthropic }

// Call sends the prompt as a single user message with the system prompt as a
// system block. SDK retries are disabled so the dispatcher sees raw failures.
func (a *Adapter) Call(ctx context.Context, q question.Question, p prompt.Prompt, cfg provider.Config, creds provider.Credentials) provider.Result {
	start := time.Now()
	elapsed := func() int64 { return time.Since(start).Milliseconds() }

	client := sdk.NewClient(
		option.WithAPIKey(creds.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
		option.WithHTTPClient(a.http.HTTPClient()),
	)

	shaper := provider.NewShaper(cfg)
	params := sdk.MessageNewParams{
		Model:     sdk.Model(cfg.Model),
		MaxTokens: int64(shaper.MaxTokens()),
		System:    []sdk.TextBlockParam{{Text: p.System}},
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(p.User))},
	}
	if t := shaper.Temperature(); t != nil {
		params.Temperature = sdk.Float(*t)
	}

	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		return provider.Failed(cfg, toStatusError(err), elapsed())
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	content := strings.Join(parts, "")

	tokensIn, tokensOut := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	if content == "" && string(msg.StopReason) == "max_tokens" {
		return provider.FailedWith(cfg, provider.StatusTokenLimitExceeded, eris.New("anthropic: output truncated at max_tokens"), elapsed())
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
	}.Normalize()
}

// toStatusError maps SDK API errors onto *httpclient.StatusError so the
// shared classifier sees the HTTP status code.
func toStatusError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return &httpclient.StatusError{Code: apiErr.StatusCode, Body: apiErr.Error()}
	}
	return eris.Wrap(err, "anthropic: create message")
}
