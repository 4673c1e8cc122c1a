package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everstacklabs/brandscope/internal/answer"
	"github.com/everstacklabs/brandscope/internal/httpclient"
	"github.com/everstacklabs/brandscope/internal/prompt"
	"github.com/everstacklabs/brandscope/internal/question"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, StatusOK},
		{"deadline", context.DeadlineExceeded, StatusTimeout},
		{"wrapped deadline", eris.Wrap(context.DeadlineExceeded, "httpclient: POST"), StatusTimeout},
		{"connection refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, StatusTimeout},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), StatusTimeout},
		{"dns", &net.DNSError{Err: "no such host", Name: "api.invalid"}, StatusTimeout},
		{"429", &httpclient.StatusError{Code: 429}, StatusRateLimited},
		{"500", &httpclient.StatusError{Code: 500}, StatusServerError},
		{"503", &httpclient.StatusError{Code: 503}, StatusServerError},
		{"401", &httpclient.StatusError{Code: 401}, StatusAuthError},
		{"403", &httpclient.StatusError{Code: 403}, StatusAuthError},
		{"404", &httpclient.StatusError{Code: 404}, StatusProviderNotFound},
		{"400 with token message", &httpclient.StatusError{Code: 400, Body: "max_tokens is too large"}, StatusTokenLimitExceeded},
		{"length finish", errors.New("response truncated: finish_reason=length"), StatusTokenLimitExceeded},
		{"other", errors.New("boom"), StatusUnknownError},
		{"400 plain", &httpclient.StatusError{Code: 400, Body: "bad request"}, StatusUnknownError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassifyPriority(t *testing.T) {
	// 429 wins over a token message in the body.
	err := &httpclient.StatusError{Code: 429, Body: "too many tokens per minute"}
	assert.Equal(t, StatusRateLimited, Classify(err))

	// A timeout wins over everything else.
	err2 := fmt.Errorf("token budget: %w", context.DeadlineExceeded)
	assert.Equal(t, StatusTimeout, Classify(err2))

	// A response with a status code means the connection worked, whatever the
	// body says about connections.
	tests := []struct {
		err  error
		want Status
	}{
		{&httpclient.StatusError{Code: 404, Body: "model not found (connection reset by router)"}, StatusProviderNotFound},
		{&httpclient.StatusError{Code: 500, Body: "upstream: dial tcp 10.0.0.1:443: connection refused"}, StatusServerError},
		{&httpclient.StatusError{Code: 429, Body: "quota check failed: i/o timeout"}, StatusRateLimited},
		{fmt.Errorf("chat: %w", &httpclient.StatusError{Code: 404, Body: "context deadline exceeded"}), StatusProviderNotFound},
		{&httpclient.StatusError{Code: 400, Body: "connection refused"}, StatusUnknownError},
		{fmt.Errorf("post: connection refused"), StatusTimeout},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), tt.err.Error())
	}
}

func TestDetectCapabilities(t *testing.T) {
	tests := []struct {
		kind  Kind
		model string
		want  Capabilities
	}{
		{KindChat, "gpt-4o-mini", Capabilities{Temperature: true, ResponseFormat: true}},
		{KindChat, "gpt-5-mini", Capabilities{CompletionTokenField: true, ResponseFormat: true}},
		{KindChat, "o3-mini", Capabilities{CompletionTokenField: true, ResponseFormat: true}},
		{KindChat, "sonar-pro", Capabilities{Temperature: true}},
		{KindChat, "gemini-2.0-flash", Capabilities{Temperature: true, ResponseFormat: true}},
		{KindAnthropic, "claude-sonnet-4-5", Capabilities{Temperature: true}},
		{KindSearch, "google_ai_mode", Capabilities{}},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectCapabilities(tt.kind, tt.model))
		})
	}
}

func TestConfigResolve(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := Config{Name: "openai", Model: "gpt-5"}
	require.NoError(t, cfg.Resolve())

	assert.Equal(t, KindChat, cfg.Kind)
	assert.Equal(t, "https://api.openai.com/v1", cfg.BaseURL)
	assert.Equal(t, 2000, cfg.MaxTokens)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.True(t, cfg.HasCredentials())
	assert.True(t, cfg.Caps.CompletionTokenField)
	assert.False(t, cfg.Caps.Temperature)
}

func TestConfigResolveOverride(t *testing.T) {
	cfg := Config{
		Name:     "custom",
		Model:    "gpt-5",
		BaseURL:  "http://localhost:8080/v1/",
		APIKey:   "inline",
		Override: &Capabilities{Temperature: true},
	}
	require.NoError(t, cfg.Resolve())

	assert.Equal(t, "http://localhost:8080/v1", cfg.BaseURL)
	assert.Equal(t, Capabilities{Temperature: true}, cfg.Caps)
	assert.Equal(t, Credentials{APIKey: "inline"}, cfg.Credentials())
}

func TestConfigResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"no name", Config{Model: "x"}, "name is required"},
		{"no model", Config{Name: "a"}, "model is required"},
		{"bad kind", Config{Name: "a", Model: "x", Kind: "grpc"}, "unknown kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Resolve()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestShape(t *testing.T) {
	p := prompt.Prompt{System: "sys", User: "usr"}

	t.Run("classic", func(t *testing.T) {
		cfg := Config{Model: "gpt-4o", MaxTokens: 500, Temperature: 0.2, Caps: Capabilities{Temperature: true, ResponseFormat: true}}
		req := NewShaper(cfg).Shape(p)

		require.NotNil(t, req.MaxTokens)
		assert.Equal(t, 500, *req.MaxTokens)
		assert.Nil(t, req.MaxCompletionTokens)
		require.NotNil(t, req.Temperature)
		assert.InDelta(t, 0.2, *req.Temperature, 1e-9)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "usr", req.Messages[1].Content)
	})

	t.Run("reasoning", func(t *testing.T) {
		cfg := Config{Model: "o3", MaxTokens: 800, Temperature: 0.7, Caps: Capabilities{CompletionTokenField: true}}
		req := NewShaper(cfg).Shape(p)

		assert.Nil(t, req.MaxTokens)
		require.NotNil(t, req.MaxCompletionTokens)
		assert.Equal(t, 800, *req.MaxCompletionTokens)
		assert.Nil(t, req.Temperature)
		assert.Nil(t, req.ResponseFormat)
	})
}

func TestNormalize(t *testing.T) {
	t.Run("ok without answer becomes parse error", func(t *testing.T) {
		r := Result{Status: StatusOK, Cost: 1}.Normalize()
		assert.Equal(t, StatusParseError, r.Status)
		assert.Zero(t, r.Cost)
		assert.NotEmpty(t, r.ErrorMessage)
	})

	t.Run("failure clears answer and cost", func(t *testing.T) {
		r := Result{
			Status:    StatusTimeout,
			Answer:    answer.Answer{"rank": 1.0},
			Cost:      0.5,
			Citations: []Citation{{URL: "https://a.com"}},
		}.Normalize()
		assert.Nil(t, r.Answer)
		assert.Zero(t, r.Cost)
		assert.Empty(t, r.Citations)
		assert.NotNil(t, r.Citations)
	})

	t.Run("negative cost", func(t *testing.T) {
		r := Result{Status: StatusOK, Answer: answer.Answer{}, Cost: -1}.Normalize()
		assert.Equal(t, StatusOK, r.Status)
		assert.Zero(t, r.Cost)
	})
}

func TestFailed(t *testing.T) {
	cfg := Config{Name: OpenAI, Model: "gpt-4o"}
	r := Failed(cfg, &httpclient.StatusError{Code: 404, Body: "model not found"}, 12)

	assert.Equal(t, StatusProviderNotFound, r.Status)
	assert.Equal(t, OpenAI, r.Provider)
	assert.Equal(t, int64(12), r.LatencyMs)
	assert.Contains(t, r.ErrorMessage, "404")
	assert.False(t, r.OK())
}

func TestNewCitation(t *testing.T) {
	c := NewCitation(" https://WWW.Example.com/a?b=1 ", " Title ", "", "reviews", "")
	assert.Equal(t, "https://WWW.Example.com/a?b=1", c.URL)
	assert.Equal(t, "example.com", c.Domain)
	assert.Equal(t, "Title", c.Title)
	assert.Equal(t, SourceReview, c.SourceType)

	c = NewCitation("", "", "WWW.Foo.org", "nonsense", "Foo")
	assert.Equal(t, "foo.org", c.Domain)
	assert.Equal(t, SourceOther, c.SourceType)
	assert.Equal(t, "Foo", c.CompetitorName)
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "b.com", HostOf("b.com/path"))
	assert.Equal(t, "a.com", HostOf("https://www.a.com:8443/x"))
	assert.Equal(t, "", HostOf(""))
}

type stubAdapter struct{}

func (stubAdapter) Kind() Kind { return "stub" }
func (stubAdapter) Call(context.Context, question.Question, prompt.Prompt, Config, Credentials) Result {
	return Result{}
}

func TestRegistry(t *testing.T) {
	Register("stub", func(Deps) Adapter { return stubAdapter{} })

	a, err := New("stub", Deps{})
	require.NoError(t, err)
	assert.Equal(t, Kind("stub"), a.Kind())
	assert.Contains(t, Kinds(), Kind("stub"))

	_, err = New("missing", Deps{})
	assert.Error(t, err)
}
