package provider

import "github.com/everstacklabs/brandscope/internal/prompt"

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat requests JSON-mode output.
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatRequest is a chat-completion request body. Exactly one of MaxTokens and
// MaxCompletionTokens is set.
type ChatRequest struct {
	Model               string          `json:"model"`
	Messages            []Message       `json:"messages"`
	MaxTokens           *int            `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int            `json:"max_completion_tokens,omitempty"`
	Temperature         *float64        `json:"temperature,omitempty"`
	ResponseFormat      *ResponseFormat `json:"response_format,omitempty"`
}

// RequestShaper builds request bodies according to a provider's resolved
// Capabilities.
type RequestShaper struct {
	model       string
	maxTokens   int
	temperature float64
	caps        Capabilities
}

// NewShaper returns the shaper for cfg. cfg must have been resolved.
func NewShaper(cfg Config) RequestShaper {
	return RequestShaper{
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		caps:        cfg.Caps,
	}
}

// Shape builds the chat request for p.
func (s RequestShaper) Shape(p prompt.Prompt) ChatRequest {
	req := ChatRequest{
		Model: s.model,
		Messages: []Message{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
	}

	limit := s.maxTokens
	if s.caps.CompletionTokenField {
		req.MaxCompletionTokens = &limit
	} else {
		req.MaxTokens = &limit
	}

	if s.caps.Temperature {
		t := s.temperature
		req.Temperature = &t
	}

	if s.caps.ResponseFormat {
		req.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	return req
}

// Temperature returns the temperature to send, or nil when unsupported.
func (s RequestShaper) Temperature() *float64 {
	if !s.caps.Temperature {
		return nil
	}
	t := s.temperature
	return &t
}

// MaxTokens returns the configured token limit.
func (s RequestShaper) MaxTokens() int { return s.maxTokens }
