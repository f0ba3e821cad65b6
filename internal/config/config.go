// Package config handles configuration loading for investreport.
// It supports YAML config files, a .env file and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for all investreport environment variables.
const EnvPrefix = "INVESTREPORT"

// ErrMissingCredential is returned when the selected LLM provider has no API key.
var ErrMissingCredential = errors.New("API key not found")

// Config represents the complete application configuration.
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"     yaml:"llm"`
	Market  MarketConfig  `mapstructure:"market"  yaml:"market"`
	Search  SearchConfig  `mapstructure:"search"  yaml:"search"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Primary           string  `mapstructure:"primary"             yaml:"primary"` // provider used for bare model names
	Model             string  `mapstructure:"model"               yaml:"model"`   // "provider/model", e.g. "openai/gpt-4o"
	OpenAIKey         string  `mapstructure:"openai_key"          yaml:"openai_key"`
	OpenAIBaseURL     string  `mapstructure:"openai_base_url"     yaml:"openai_base_url"`
	AnthropicKey      string  `mapstructure:"anthropic_key"       yaml:"anthropic_key"`
	GeminiKey         string  `mapstructure:"gemini_key"          yaml:"gemini_key"`
	OllamaURL         string  `mapstructure:"ollama_url"          yaml:"ollama_url"`
	Temperature       float64 `mapstructure:"temperature"         yaml:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"          yaml:"max_tokens"`
	TimeoutSec        int     `mapstructure:"timeout"             yaml:"timeout"`
	MaxToolIterations int     `mapstructure:"max_tool_iterations" yaml:"max_tool_iterations"`
}

// MarketConfig holds the market data provider settings.
type MarketConfig struct {
	BaseURL    string `mapstructure:"base_url"   yaml:"base_url"`
	CookieURL  string `mapstructure:"cookie_url" yaml:"cookie_url"`
	TimeoutSec int    `mapstructure:"timeout"    yaml:"timeout"`
}

// SearchConfig holds web research settings for the analyst agent.
type SearchConfig struct {
	Enabled       bool    `mapstructure:"enabled"         yaml:"enabled"`
	BaseURL       string  `mapstructure:"base_url"        yaml:"base_url"`
	NewsURL       string  `mapstructure:"news_url"        yaml:"news_url"`
	MaxResults    int     `mapstructure:"max_results"     yaml:"max_results"`
	TimeoutSec    int     `mapstructure:"timeout"         yaml:"timeout"`
	RatePerSecond float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst         int     `mapstructure:"burst"           yaml:"burst"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "console" or "json"
}

// Timeout returns the LLM request timeout.
func (c LLMConfig) Timeout() time.Duration { return seconds(c.TimeoutSec) }

// Timeout returns the market data request timeout.
func (c MarketConfig) Timeout() time.Duration { return seconds(c.TimeoutSec) }

// Timeout returns the web research request timeout.
func (c SearchConfig) Timeout() time.Duration { return seconds(c.TimeoutSec) }

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.investreport/config.yaml (home directory)
//  3. /etc/investreport/config.yaml (system)
//
// Environment variables override config file values.
// Format: INVESTREPORT_<SECTION>_<KEY>, e.g., INVESTREPORT_LLM_OPENAI_KEY
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".investreport"))
	v.AddConfigPath("/etc/investreport")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment. Variables already set in the environment are left alone.
// Missing files are ignored; malformed ones are reported.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Validate checks that the credential for the given provider is present.
// An empty provider means the configured primary.
func (c *Config) Validate(provider string) error {
	if provider == "" {
		provider = c.LLM.Primary
	}
	switch provider {
	case ProviderOpenAI:
		if c.LLM.OpenAIKey == "" {
			return fmt.Errorf("%w: set OPENAI_API_KEY", ErrMissingCredential)
		}
	case ProviderAnthropic:
		if c.LLM.AnthropicKey == "" {
			return fmt.Errorf("%w: set ANTHROPIC_API_KEY", ErrMissingCredential)
		}
	case ProviderGemini:
		if c.LLM.GeminiKey == "" {
			return fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingCredential)
		}
	case ProviderOllama:
		if c.LLM.OllamaURL == "" {
			return fmt.Errorf("ollama URL not configured: set %s_LLM_OLLAMA_URL", EnvPrefix)
		}
	default:
		return fmt.Errorf("unknown LLM provider %q", provider)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.primary", ProviderOpenAI)
	v.SetDefault("llm.model", "openai/gpt-4o")
	v.SetDefault("llm.openai_key", "")
	v.SetDefault("llm.openai_base_url", "")
	v.SetDefault("llm.anthropic_key", "")
	v.SetDefault("llm.gemini_key", "")
	v.SetDefault("llm.ollama_url", "http://localhost:11434")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout", 120)
	v.SetDefault("llm.max_tool_iterations", 6)

	// Market data defaults
	v.SetDefault("market.base_url", "https://query2.finance.yahoo.com")
	v.SetDefault("market.cookie_url", "https://fc.yahoo.com")
	v.SetDefault("market.timeout", 20)

	// Web research defaults
	v.SetDefault("search.enabled", true)
	v.SetDefault("search.base_url", "https://html.duckduckgo.com/html/")
	v.SetDefault("search.news_url", "https://feeds.finance.yahoo.com/rss/2.0/headline")
	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.timeout", 15)
	v.SetDefault("search.rate_per_second", 1.0)
	v.SetDefault("search.burst", 2)

	// Logging defaults
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
}

// overrideFromEnv reads the well-known provider variables. The prefixed
// INVESTREPORT_LLM_*_KEY variables, already applied by viper, take precedence.
func overrideFromEnv(cfg *Config) {
	if cfg.LLM.OpenAIKey == "" {
		cfg.LLM.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.LLM.OpenAIBaseURL == "" {
		cfg.LLM.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if cfg.LLM.AnthropicKey == "" {
		cfg.LLM.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.LLM.GeminiKey == "" {
		cfg.LLM.GeminiKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" && os.Getenv(EnvPrefix+"_LLM_OLLAMA_URL") == "" {
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		cfg.LLM.OllamaURL = host
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
