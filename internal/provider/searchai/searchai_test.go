package searchai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everstacklabs/brandscope/internal/httpclient"
	"github.com/everstacklabs/brandscope/internal/pricing"
	"github.com/everstacklabs/brandscope/internal/prompt"
	"github.com/everstacklabs/brandscope/internal/provider"
	"github.com/everstacklabs/brandscope/internal/question"
)

func run(t *testing.T, market question.Market, handler http.HandlerFunc) provider.Result {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := provider.Config{Name: provider.GoogleAIMode, Kind: provider.KindSearch, Model: "google_ai_mode", BaseURL: srv.URL, APIKey: "serp"}
	require.NoError(t, cfg.Resolve())

	q := question.Question{ID: "q1", Type: question.TypeCategory, Text: "What does Acme sell?", Market: market}
	return New(httpclient.New(), pricing.Default()).Call(context.Background(), q, prompt.Build(q, prompt.Options{}), cfg, cfg.Credentials())
}

func TestCallSuccess(t *testing.T) {
	var got searchRequest
	r := run(t, "fr", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{
			"text_blocks": [{"snippet": "{\"category\": \"footwear\","}, {"snippet": "\"confidence\": 0.9}"}],
			"references": [
				{"title": "Acme", "link": "https://acme.com/about", "source": "Acme"},
				{"title": "Wiki", "link": "https://en.wikipedia.org/wiki/Acme", "source": "Wikipedia"}
			]
		}`))
	})

	require.Equal(t, provider.StatusOK, r.Status, r.ErrorMessage)
	assert.Equal(t, "footwear", r.Answer.String("category"))
	require.Len(t, r.Citations, 2)
	assert.Equal(t, "en.wikipedia.org", r.Citations[1].Domain)
	assert.InDelta(t, 0.015, r.Cost, 1e-9)
	assert.Zero(t, r.TokensIn)

	assert.Equal(t, "google_ai_mode", got.Engine)
	assert.Equal(t, "fr", got.GL)
	assert.Contains(t, got.Query, "What does Acme sell?")
}

func TestCallErrors(t *testing.T) {
	r := run(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	assert.Equal(t, provider.StatusProviderNotFound, r.Status)

	r = run(t, "", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text_blocks": [{"snippet": "Acme sells shoes."}]}`))
	})
	assert.Equal(t, provider.StatusParseError, r.Status)
	assert.Equal(t, "Acme sells shoes.", r.RawText)
	assert.Zero(t, r.Cost)
}

func TestCountryCode(t *testing.T) {
	assert.Equal(t, "us", countryCode("en-US"))
	assert.Equal(t, "fr", countryCode("FR"))
	assert.Equal(t, "", countryCode("global"))
}
