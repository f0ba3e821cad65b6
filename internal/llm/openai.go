package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
	"go.uber.org/zap"
)

// OpenAIProvider implements LLMProvider on the OpenAI Chat Completions API.
// It also serves any OpenAI-compatible endpoint, Ollama included.
type OpenAIProvider struct {
	name        string
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// OpenAIOption configures the OpenAI provider.
type OpenAIOption func(*openAIOptions)

type openAIOptions struct {
	baseURL    string
	httpClient *http.Client
	cfg        ProviderConfig
	logger     *zap.Logger
}

// WithOpenAIBaseURL sets a custom base URL (e.g., for proxies or compatible servers).
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(o *openAIOptions) { o.baseURL = strings.TrimRight(url, "/") }
}

// WithOpenAIHTTPClient sets a custom HTTP client.
func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(o *openAIOptions) { o.httpClient = client }
}

// WithOpenAIConfig sets model, sampling and timeout settings.
func WithOpenAIConfig(cfg ProviderConfig) OpenAIOption {
	return func(o *openAIOptions) { o.cfg = cfg }
}

// WithOpenAILogger sets the logger.
func WithOpenAILogger(l *zap.Logger) OpenAIOption {
	return func(o *openAIOptions) { o.logger = l }
}

// NewOpenAIProvider creates an OpenAI provider.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return newOpenAICompatible(ProviderOpenAI, apiKey, opts...), nil
}

func newOpenAICompatible(name, apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	o := &openAIOptions{cfg: DefaultProviderConfig(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.cfg.Timeout}
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(o.httpClient),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL+"/"))
	}

	return &OpenAIProvider{
		name:        name,
		client:      openai.NewClient(reqOpts...),
		model:       o.cfg.Model,
		temperature: o.cfg.Temperature,
		maxTokens:   o.cfg.MaxTokens,
		logger:      o.logger,
	}
}

func (p *OpenAIProvider) Name() string  { return p.name }
func (p *OpenAIProvider) Model() string { return p.model }

// Chat sends a chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, tools []Tool, opts *ChatOptions) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: toOpenAIMessages(messages),
	}
	temperature, maxTokens := p.temperature, p.maxTokens
	if opts != nil {
		if opts.Model != "" {
			params.Model = openai.ChatModel(opts.Model)
		}
		if opts.Temperature > 0 {
			temperature = opts.Temperature
		}
		if opts.MaxTokens > 0 {
			maxTokens = opts.MaxTokens
		}
	}
	params.Temperature = param.NewOpt(temperature)
	if maxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(maxTokens))
	}
	for _, t := range tools {
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: param.NewOpt(t.Description),
			Parameters:  openai.FunctionParameters(t.Parameters.Map()),
		}))
	}

	start := time.Now()
	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, classifyStatus(p.name, apiErr.StatusCode, err)
		}
		return nil, classifyStatus(p.name, 0, err)
	}
	if len(completion.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := completion.Choices[0]
	resp := &Response{
		Content:      choice.Message.Content,
		FinishReason: mapOpenAIFinish(choice.FinishReason),
		Model:        completion.Model,
		Provider:     p.name,
		Latency:      time.Since(start),
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	if resp.Model == "" {
		resp.Model = string(params.Model)
	}
	for _, tc := range choice.Message.ToolCalls {
		args := tc.Function.Arguments
		if args == "" {
			args = "{}"
		}
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(args),
		})
	}
	if resp.Content == "" && !resp.HasToolCalls() {
		return nil, ErrEmptyResponse
	}

	p.logger.Debug("chat completion",
		zap.String("provider", p.name),
		zap.String("model", resp.Model),
		zap.Int("tokens", resp.Usage.TotalTokens),
		zap.Duration("latency", resp.Latency))
	return resp, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			assistant := &openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				assistant.Content.OfString = param.NewOpt(m.Content)
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: string(tc.Arguments),
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		}
	}
	return out
}

func mapOpenAIFinish(reason string) FinishReason {
	switch reason {
	case "tool_calls", "function_call":
		return FinishToolCalls
	case "length":
		return FinishLength
	default:
		return FinishStop
	}
}

// NewOllamaProvider creates a provider for a local Ollama server through its
// OpenAI-compatible endpoint. baseURL is the server root, e.g. "http://localhost:11434".
func NewOllamaProvider(baseURL string, opts ...OpenAIOption) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	opts = append([]OpenAIOption{WithOpenAIBaseURL(strings.TrimRight(baseURL, "/") + "/v1")}, opts...)
	return newOpenAICompatible(ProviderOllama, ProviderOllama, opts...)
}
