package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Provider names accepted in model identifiers and llm.primary.
const (
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of an API key.
type KeyStatus struct {
	Name     string       `json:"name"      yaml:"name"`
	Provider string       `json:"provider"  yaml:"provider"`
	Source   APIKeySource `json:"source"    yaml:"source"`
	IsSet    bool         `json:"is_set"    yaml:"is_set"`
	Masked   string       `json:"masked,omitempty" yaml:"masked,omitempty"` // e.g., "sk-...abc"
}

// CheckAPIKeys returns the status of all LLM provider keys.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	return []KeyStatus{
		checkKey("OpenAI API Key", ProviderOpenAI, cfg.LLM.OpenAIKey, EnvPrefix+"_LLM_OPENAI_KEY", "OPENAI_API_KEY"),
		checkKey("Anthropic API Key", ProviderAnthropic, cfg.LLM.AnthropicKey, EnvPrefix+"_LLM_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"),
		checkKey("Gemini API Key", ProviderGemini, cfg.LLM.GeminiKey, EnvPrefix+"_LLM_GEMINI_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"),
	}
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, provider, value string, envVars ...string) KeyStatus {
	status := KeyStatus{
		Name:     name,
		Provider: provider,
		IsSet:    value != "",
		Source:   KeySourceNone,
	}
	if value == "" {
		return status
	}

	status.Source = KeySourceConfig
	for _, e := range envVars {
		if os.Getenv(e) == value {
			status.Source = KeySourceEnv
			break
		}
	}
	status.Masked = maskKey(value)
	return status
}

// maskKey masks an API key for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}

// Redacted returns a copy of cfg with every secret masked.
func (c *Config) Redacted() Config {
	out := *c
	out.LLM.OpenAIKey = maskKey(c.LLM.OpenAIKey)
	out.LLM.AnthropicKey = maskKey(c.LLM.AnthropicKey)
	out.LLM.GeminiKey = maskKey(c.LLM.GeminiKey)
	return out
}

// YAML renders the effective configuration with secrets masked.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.Redacted())
}
