// Package config loads the batch run configuration and sets up logging.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/everstacklabs/brandscope/internal/provider"
	"github.com/everstacklabs/brandscope/internal/question"
)

// Config holds all configuration for a brandscope run.
type Config struct {
	Providers      []provider.Config `mapstructure:"providers"`
	QuestionTypes  []string          `mapstructure:"question_types"`
	QuestionsFile  string            `mapstructure:"questions_file"`
	OutputDir      string            `mapstructure:"output_dir"`
	WarmupRuns     int               `mapstructure:"warmup_runs"`
	TestRuns       int               `mapstructure:"test_runs"`
	PerCallTimeout time.Duration     `mapstructure:"per_call_timeout"`
	InterCallDelay time.Duration     `mapstructure:"inter_call_delay"`
	QuestionDelay  time.Duration     `mapstructure:"question_delay"`
	PricingFile    string            `mapstructure:"pricing_file"`
	Prompt         PromptConfig      `mapstructure:"prompt"`
	Validation     ValidationConfig  `mapstructure:"validation"`
	Sources        SourcesConfig     `mapstructure:"sources"`
	Cache          CacheConfig       `mapstructure:"cache"`
	HTTP           HTTPConfig        `mapstructure:"http"`
	Store          StoreConfig       `mapstructure:"store"`
	GitHub         GitHubConfig      `mapstructure:"github"`
	Server         ServerConfig      `mapstructure:"server"`
	Log            LogConfig         `mapstructure:"log"`
}

// PromptConfig tunes prompt construction.
type PromptConfig struct {
	Language   string `mapstructure:"language"`
	MaxSources int    `mapstructure:"max_sources"`
}

// ValidationConfig configures the quality validator.
type ValidationConfig struct {
	PassThreshold float64 `mapstructure:"pass_threshold"`
}

// SourcesConfig configures citation post-processing.
type SourcesConfig struct {
	Resolve            bool          `mapstructure:"resolve"`
	ResolveConcurrency int           `mapstructure:"resolve_concurrency"`
	ResolveTimeout     time.Duration `mapstructure:"resolve_timeout"`
}

// CacheConfig configures the provider response replay cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Dir     string        `mapstructure:"dir"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// HTTPConfig configures the shared provider HTTP client. MaxRPS of zero
// leaves requests unthrottled beyond the per-provider spacing.
type HTTPConfig struct {
	MaxRPS float64 `mapstructure:"max_rps"`
}

// StoreConfig configures the SQLite run store.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// GitHubConfig holds report publishing settings.
type GitHubConfig struct {
	Token       string `mapstructure:"token"`
	Owner       string `mapstructure:"owner"`
	Repo        string `mapstructure:"repo"`
	BaseBranch  string `mapstructure:"base_branch"`
	ReportsPath string `mapstructure:"reports_path"`
	RepoDir     string `mapstructure:"repo_dir"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultProviders is the provider set used when the config file names none.
var DefaultProviders = []map[string]any{
	{"name": "openai", "kind": "chat", "model": "gpt-4o-mini"},
	{"name": "gemini", "kind": "chat", "model": "gemini-2.0-flash"},
	{"name": "perplexity", "kind": "chat", "model": "sonar"},
	{"name": "claude", "kind": "anthropic", "model": "claude-haiku-4-5"},
	{"name": "google_ai_mode", "kind": "search", "model": "google_ai_mode"},
}

// Load reads configuration from defaults, an optional YAML file, a .env file
// and the environment, then validates it.
func Load(cfgFile string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("brandscope")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/brandscope")
	}

	v.SetEnvPrefix("BRANDSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("github.token", "GITHUB_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !eris.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("providers", DefaultProviders)
	v.SetDefault("question_types", []string{})
	v.SetDefault("questions_file", "questions.yaml")
	v.SetDefault("output_dir", "results")
	v.SetDefault("warmup_runs", 1)
	v.SetDefault("test_runs", 1)
	v.SetDefault("per_call_timeout", "60s")
	v.SetDefault("inter_call_delay", "500ms")
	v.SetDefault("question_delay", "0s")
	v.SetDefault("prompt.max_sources", 10)
	v.SetDefault("validation.pass_threshold", 1.0)
	v.SetDefault("sources.resolve", false)
	v.SetDefault("sources.resolve_concurrency", 4)
	v.SetDefault("sources.resolve_timeout", "10s")
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.dir", defaultCacheDir())
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("http.max_rps", 0)
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", "brandscope.db")
	v.SetDefault("github.base_branch", "main")
	v.SetDefault("github.reports_path", "reports")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate resolves every provider entry and checks run parameters.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return eris.New("config: at least one provider is required")
	}
	seen := make(map[provider.Name]bool, len(c.Providers))
	for i := range c.Providers {
		if err := c.Providers[i].Resolve(); err != nil {
			return eris.Wrap(err, "config: providers")
		}
		name := c.Providers[i].Name
		if seen[name] {
			return eris.Errorf("config: duplicate provider %q", name)
		}
		seen[name] = true
	}
	if _, err := c.AnalysisTypes(); err != nil {
		return err
	}
	if c.WarmupRuns < 0 {
		return eris.New("config: warmup_runs must not be negative")
	}
	if c.TestRuns < 1 {
		return eris.New("config: test_runs must be at least 1")
	}
	if c.PerCallTimeout <= 0 {
		return eris.New("config: per_call_timeout must be positive")
	}
	if c.InterCallDelay < 0 || c.QuestionDelay < 0 {
		return eris.New("config: delays must not be negative")
	}
	if c.HTTP.MaxRPS < 0 {
		return eris.New("config: http.max_rps must not be negative")
	}
	return nil
}

// AnalysisTypes parses QuestionTypes. An empty list selects every type.
func (c *Config) AnalysisTypes() ([]question.AnalysisType, error) {
	out := make([]question.AnalysisType, 0, len(c.QuestionTypes))
	for _, s := range c.QuestionTypes {
		t, err := question.ParseType(s)
		if err != nil {
			return nil, eris.Wrap(err, "config: question_types")
		}
		out = append(out, t)
	}
	return out, nil
}

// Quick disables warm-up and limits the batch to a single test run.
func (c *Config) Quick() {
	c.WarmupRuns = 0
	c.TestRuns = 1
}

// Restrict keeps only the provider whose name or model matches id.
func (c *Config) Restrict(id string) error {
	id = strings.TrimSpace(id)
	for _, p := range c.Providers {
		if string(p.Name) == id || strings.EqualFold(p.Model, id) {
			c.Providers = []provider.Config{p}
			return nil
		}
	}
	return eris.Errorf("config: no provider matches %q", id)
}

// MissingCredentials lists providers without an API key.
func (c *Config) MissingCredentials() []provider.Name {
	var missing []provider.Name
	for _, p := range c.Providers {
		if !p.HasCredentials() {
			missing = append(missing, p.Name)
		}
	}
	return missing
}

// InitLogger builds the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}

// loadEnvFile loads the first .env found in the working directory or the
// user config directory. Existing environment variables win.
func loadEnvFile() {
	paths := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "brandscope", ".env"))
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			zap.L().Debug("config: loaded env file", zap.String("path", path))
			return
		}
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "/tmp/brandscope-cache"
	}
	return filepath.Join(dir, "brandscope")
}
