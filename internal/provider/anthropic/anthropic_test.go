package anthropic

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

func message(text string) map[string]any {
	return map[string]any{
		"id":          "msg_01",
		"type":        "message",
		"role":        "assistant",
		"model":       "claude-sonnet-4-5",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 100, "output_tokens": 50},
	}
}

func run(t *testing.T, handler http.HandlerFunc) provider.Result {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := provider.Config{Name: provider.Claude, Kind: provider.KindAnthropic, Model: "claude-sonnet-4-5", BaseURL: srv.URL, APIKey: "sk-ant"}
	require.NoError(t, cfg.Resolve())

	q := question.Question{ID: "q1", Type: question.TypeReputation, Text: "How is Acme perceived?"}
	return New(httpclient.New(), pricing.Default()).Call(context.Background(), q, prompt.Build(q, prompt.Options{}), cfg, cfg.Credentials())
}

func TestCallSuccess(t *testing.T) {
	var got map[string]any
	r := run(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(message(`{"sentiment": "positive", "summary": "Well liked", "sources": ["https://trustpilot.com/review/acme"]}`))
	})

	require.Equal(t, provider.StatusOK, r.Status, r.ErrorMessage)
	assert.Equal(t, "positive", r.Answer.String("sentiment"))
	assert.Equal(t, 100, r.TokensIn)
	assert.Equal(t, 50, r.TokensOut)
	assert.InDelta(t, 0.00105, r.Cost, 1e-9)
	require.Len(t, r.Citations, 1)
	assert.Equal(t, "trustpilot.com", r.Citations[0].Domain)

	assert.Equal(t, "claude-sonnet-4-5", got["model"])
	assert.Contains(t, got, "temperature")
	assert.Contains(t, got, "system")
}

func TestCallChattyAnswer(t *testing.T) {
	r := run(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(message("Here you go:\n{\"sentiment\": \"neutral\"}"))
	})

	require.True(t, r.OK())
	assert.Equal(t, "neutral", r.Answer.String("sentiment"))
}

func TestCallErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   provider.Status
	}{
		{"not found", http.StatusNotFound, provider.StatusProviderNotFound},
		{"overloaded", 529, provider.StatusServerError},
		{"rate limited", http.StatusTooManyRequests, provider.StatusRateLimited},
		{"forbidden", http.StatusForbidden, provider.StatusAuthError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := run(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"nope"}}`))
			})

			assert.Equal(t, tt.want, r.Status)
			assert.Nil(t, r.Answer)
			assert.Zero(t, r.Cost)
		})
	}
}

func TestCallParseError(t *testing.T) {
	r := run(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(message("I'd rather not."))
	})

	assert.Equal(t, provider.StatusParseError, r.Status)
	assert.Equal(t, "I'd rather not.", r.RawText)
}
