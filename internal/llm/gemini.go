package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider implements LLMProvider on the Gemini API.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// GeminiOption configures the Gemini provider.
type GeminiOption func(*geminiOptions)

type geminiOptions struct {
	baseURL    string
	httpClient *http.Client
	cfg        ProviderConfig
	logger     *zap.Logger
}

// WithGeminiBaseURL sets a custom base URL.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(o *geminiOptions) { o.baseURL = strings.TrimRight(url, "/") }
}

// WithGeminiHTTPClient sets a custom HTTP client.
func WithGeminiHTTPClient(client *http.Client) GeminiOption {
	return func(o *geminiOptions) { o.httpClient = client }
}

// WithGeminiConfig sets model, sampling and timeout settings.
func WithGeminiConfig(cfg ProviderConfig) GeminiOption {
	return func(o *geminiOptions) { o.cfg = cfg }
}

// WithGeminiLogger sets the logger.
func WithGeminiLogger(l *zap.Logger) GeminiOption {
	return func(o *geminiOptions) { o.logger = l }
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	cfg := DefaultProviderConfig()
	cfg.Model = defaultGeminiModel
	o := &geminiOptions{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.cfg.Timeout}
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	}
	if o.baseURL != "" {
		cc.HTTPOptions.BaseURL = o.baseURL + "/"
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &GeminiProvider{
		client:      client,
		model:       o.cfg.Model,
		temperature: o.cfg.Temperature,
		maxTokens:   o.cfg.MaxTokens,
		logger:      o.logger,
	}, nil
}

func (p *GeminiProvider) Name() string  { return ProviderGemini }
func (p *GeminiProvider) Model() string { return p.model }

// Chat sends a GenerateContent request.
func (p *GeminiProvider) Chat(ctx context.Context, messages []Message, tools []Tool, opts *ChatOptions) (*Response, error) {
	model, temperature, maxTokens := p.model, p.temperature, p.maxTokens
	if opts != nil {
		if opts.Model != "" {
			model = opts.Model
		}
		if opts.Temperature > 0 {
			temperature = opts.Temperature
		}
		if opts.MaxTokens > 0 {
			maxTokens = opts.MaxTokens
		}
	}

	system, rest := splitSystem(messages)
	contents, err := toGeminiContents(rest)
	if err != nil {
		return nil, err
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Name,
				Description:          t.Description,
				ParametersJsonSchema: t.Parameters.Map(),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	start := time.Now()
	result, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, classifyStatus(ProviderGemini, apiErr.Code, err)
		}
		var apiErrPtr *genai.APIError
		if errors.As(err, &apiErrPtr) {
			return nil, classifyStatus(ProviderGemini, apiErrPtr.Code, err)
		}
		return nil, classifyStatus(ProviderGemini, 0, err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return nil, ErrEmptyResponse
	}

	candidate := result.Candidates[0]
	resp := &Response{
		Model:        model,
		Provider:     ProviderGemini,
		Latency:      time.Since(start),
		FinishReason: mapGeminiFinishReason(string(candidate.FinishReason)),
	}
	if result.UsageMetadata != nil {
		resp.Usage = Usage{
			PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(result.UsageMetadata.TotalTokenCount),
		}
	}
	var text strings.Builder
	for i, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("gemini: encode function args: %w", err)
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", i)
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: id, Name: part.FunctionCall.Name, Arguments: args})
			continue
		}
		if !part.Thought {
			text.WriteString(part.Text)
		}
	}
	resp.Content = text.String()
	if resp.HasToolCalls() {
		resp.FinishReason = FinishToolCalls
	}
	if resp.Content == "" && !resp.HasToolCalls() {
		return nil, ErrEmptyResponse
	}

	p.logger.Debug("chat completion",
		zap.String("provider", ProviderGemini),
		zap.String("model", resp.Model),
		zap.Int("tokens", resp.Usage.TotalTokens),
		zap.Duration("latency", resp.Latency))
	return resp, nil
}

// toGeminiContents converts the conversation. Consecutive tool results are
// grouped into one user turn of function responses.
func toGeminiContents(messages []Message) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(messages))
	var pending []*genai.Part
	flush := func() {
		if len(pending) > 0 {
			out = append(out, &genai.Content{Role: genai.RoleUser, Parts: pending})
			pending = nil
		}
	}
	for _, m := range messages {
		switch m.Role {
		case RoleTool:
			pending = append(pending, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       m.ToolCallID,
				Name:     m.Name,
				Response: map[string]any{"output": m.Content},
			}})
		case RoleUser:
			flush()
			out = append(out, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{genai.NewPartFromText(m.Content)}})
		case RoleAssistant:
			flush()
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, tc := range m.ToolCalls {
				args, err := decodeArgs(tc.Arguments)
				if err != nil {
					return nil, err
				}
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args}})
			}
			if len(parts) > 0 {
				out = append(out, &genai.Content{Role: genai.RoleModel, Parts: parts})
			}
		}
	}
	flush()
	return out, nil
}

func mapGeminiFinishReason(reason string) FinishReason {
	switch reason {
	case "MAX_TOKENS":
		return FinishLength
	case "", "STOP":
		return FinishStop
	default:
		return FinishError
	}
}
