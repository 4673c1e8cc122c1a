package provider

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Kind selects the adapter implementation for a provider.
type Kind string

const (
	KindChat      Kind = "chat"
	KindAnthropic Kind = "anthropic"
	KindSearch    Kind = "search"
)

// Capabilities describes the request shape a provider model accepts. It is
// resolved once per Config by Resolve.
type Capabilities struct {
	// CompletionTokenField selects max_completion_tokens over max_tokens.
	CompletionTokenField bool `mapstructure:"completion_token_field" yaml:"completion_token_field" json:"completionTokenField"`
	Temperature          bool `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
	ResponseFormat       bool `mapstructure:"response_format" yaml:"response_format" json:"responseFormat"`
}

// Config is one provider entry of a batch run.
type Config struct {
	Name        Name          `mapstructure:"name" yaml:"name" json:"name"`
	Kind        Kind          `mapstructure:"kind" yaml:"kind" json:"kind"`
	Model       string        `mapstructure:"model" yaml:"model" json:"model"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url" json:"baseUrl"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key" json:"-"`
	APIKeyEnv   string        `mapstructure:"api_key_env" yaml:"api_key_env" json:"apiKeyEnv,omitempty"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens" json:"maxTokens"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
	Engine      string        `mapstructure:"engine" yaml:"engine" json:"engine,omitempty"`
	Override    *Capabilities `mapstructure:"capabilities" yaml:"capabilities" json:"-"`

	// Caps is filled by Resolve.
	Caps Capabilities `mapstructure:"-" yaml:"-" json:"capabilities"`
}

// Credentials carries the secret used to authenticate a call.
type Credentials struct {
	APIKey string
}

// Credentials returns the resolved credentials for the provider.
func (c Config) Credentials() Credentials {
	return Credentials{APIKey: c.APIKey}
}

var defaultBaseURLs = map[Kind]string{
	KindChat:      "https://api.openai.com/v1",
	KindAnthropic: "https://api.anthropic.com",
	KindSearch:    "https://serpapi.com",
}

var defaultNamedBaseURLs = map[Name]string{
	Gemini:     "https://generativelanguage.googleapis.com/v1beta/openai",
	Perplexity: "https://api.perplexity.ai",
}

var defaultKeyEnvs = map[Name]string{
	OpenAI:       "OPENAI_API_KEY",
	Gemini:       "GEMINI_API_KEY",
	Perplexity:   "PERPLEXITY_API_KEY",
	Claude:       "ANTHROPIC_API_KEY",
	GoogleAIMode: "SERPAPI_API_KEY",
}

// Resolve validates the entry, fills defaults, reads the API key from the
// environment when not set inline, and fixes the request capabilities.
func (c *Config) Resolve() error {
	c.Name = Name(strings.TrimSpace(string(c.Name)))
	if c.Name == "" {
		return eris.New("provider: name is required")
	}
	if c.Kind == "" {
		c.Kind = KindChat
	}
	if _, ok := defaultBaseURLs[c.Kind]; !ok {
		return eris.Errorf("provider: %s: unknown kind %q", c.Name, c.Kind)
	}
	if c.Model == "" {
		return eris.Errorf("provider: %s: model is required", c.Name)
	}
	if c.BaseURL == "" && c.Kind == KindChat {
		c.BaseURL = defaultNamedBaseURLs[c.Name]
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURLs[c.Kind]
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.MaxTokens <= 0 {
		c.MaxTokens = 2000
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = defaultKeyEnvs[c.Name]
	}
	if c.APIKey == "" && c.APIKeyEnv != "" {
		c.APIKey = os.Getenv(c.APIKeyEnv)
	}
	if c.Override != nil {
		c.Caps = *c.Override
	} else {
		c.Caps = DetectCapabilities(c.Kind, c.Model)
	}
	return nil
}

// HasCredentials reports whether an API key is available.
func (c Config) HasCredentials() bool {
	return c.APIKey != ""
}

// DetectCapabilities infers request capabilities from the model identifier.
// It is only consulted at configuration-load time; adapters read Caps.
func DetectCapabilities(kind Kind, model string) Capabilities {
	m := strings.ToLower(model)
	switch kind {
	case KindSearch:
		return Capabilities{}
	case KindAnthropic:
		return Capabilities{Temperature: true}
	}

	reasoning := false
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(m, prefix) {
			reasoning = true
			break
		}
	}
	return Capabilities{
		CompletionTokenField: reasoning,
		Temperature:          !reasoning,
		ResponseFormat:       !strings.HasPrefix(m, "sonar"),
	}
}
