package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/seenimoa/investreport/internal/config"
)

// DefaultModelID is used when neither the flag nor the config names a model.
const DefaultModelID = "openai/gpt-4o"

// ModelSpec identifies a model on a provider.
type ModelSpec struct {
	Provider string
	Model    string
}

// String returns the "provider/model" form.
func (s ModelSpec) String() string {
	return s.Provider + "/" + s.Model
}

// ParseModelID splits "provider/model". A bare model name, or one whose
// prefix is not a known provider (e.g. "library/llama3"), runs on
// defaultProvider.
func ParseModelID(id, defaultProvider string) (ModelSpec, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ModelSpec{}, fmt.Errorf("%w: empty model id", ErrInvalidModel)
	}
	if prefix, model, ok := strings.Cut(id, "/"); ok && isKnownProvider(strings.ToLower(prefix)) {
		if strings.TrimSpace(model) == "" {
			return ModelSpec{}, fmt.Errorf("%w: %q names no model", ErrInvalidModel, id)
		}
		return ModelSpec{Provider: strings.ToLower(prefix), Model: strings.TrimSpace(model)}, nil
	}
	provider := strings.ToLower(strings.TrimSpace(defaultProvider))
	if provider == "" {
		provider = ProviderOpenAI
	}
	if !isKnownProvider(provider) {
		return ModelSpec{}, fmt.Errorf("%w: unknown provider %q", ErrInvalidModel, defaultProvider)
	}
	return ModelSpec{Provider: provider, Model: id}, nil
}

func isKnownProvider(name string) bool {
	switch name {
	case ProviderOpenAI, ProviderOllama, ProviderAnthropic, ProviderGemini:
		return true
	}
	return false
}

// Credentials carries the already-validated keys and endpoints for every
// backend. NewProvider never reads the environment.
type Credentials struct {
	OpenAIKey     string
	OpenAIBaseURL string
	AnthropicKey  string
	GeminiKey     string
	OllamaURL     string
}

// CredentialsFromConfig copies the credentials out of a loaded configuration.
func CredentialsFromConfig(cfg *config.Config) Credentials {
	return Credentials{
		OpenAIKey:     cfg.LLM.OpenAIKey,
		OpenAIBaseURL: cfg.LLM.OpenAIBaseURL,
		AnthropicKey:  cfg.LLM.AnthropicKey,
		GeminiKey:     cfg.LLM.GeminiKey,
		OllamaURL:     cfg.LLM.OllamaURL,
	}
}

// ProviderConfigFromConfig maps the llm config section onto a ProviderConfig
// for the given model.
func ProviderConfigFromConfig(cfg *config.Config, model string) ProviderConfig {
	return ProviderConfig{
		Model:       model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout(),
	}
}

// NewProvider builds the backend named by spec.
func NewProvider(ctx context.Context, spec ModelSpec, creds Credentials, pc ProviderConfig, logger *zap.Logger) (LLMProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pc.Model = spec.Model
	logger = logger.With(zap.String("provider", spec.Provider), zap.String("model", spec.Model))

	switch spec.Provider {
	case ProviderOpenAI:
		opts := []OpenAIOption{WithOpenAIConfig(pc), WithOpenAILogger(logger)}
		if creds.OpenAIBaseURL != "" {
			opts = append(opts, WithOpenAIBaseURL(creds.OpenAIBaseURL))
		}
		return NewOpenAIProvider(creds.OpenAIKey, opts...)
	case ProviderOllama:
		return NewOllamaProvider(creds.OllamaURL, WithOpenAIConfig(pc), WithOpenAILogger(logger)), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(creds.AnthropicKey, WithAnthropicConfig(pc), WithAnthropicLogger(logger))
	case ProviderGemini:
		return NewGeminiProvider(ctx, creds.GeminiKey, WithGeminiConfig(pc), WithGeminiLogger(logger))
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidModel, spec.Provider)
	}
}

// NewProviderFromConfig resolves modelID (falling back to llm.model, then
// DefaultModelID) and builds its backend from cfg.
func NewProviderFromConfig(ctx context.Context, cfg *config.Config, modelID string, logger *zap.Logger) (LLMProvider, ModelSpec, error) {
	spec, err := ResolveModel(cfg, modelID)
	if err != nil {
		return nil, ModelSpec{}, err
	}
	p, err := NewProvider(ctx, spec, CredentialsFromConfig(cfg), ProviderConfigFromConfig(cfg, spec.Model), logger)
	if err != nil {
		return nil, spec, err
	}
	return p, spec, nil
}

// ResolveModel picks the model id from the flag, the config, or the default.
func ResolveModel(cfg *config.Config, modelID string) (ModelSpec, error) {
	id := strings.TrimSpace(modelID)
	if id == "" {
		id = cfg.LLM.Model
	}
	if id == "" {
		id = DefaultModelID
	}
	return ParseModelID(id, cfg.LLM.Primary)
}
