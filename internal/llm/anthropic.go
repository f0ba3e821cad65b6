package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicProvider implements LLMProvider on Anthropic's Messages API.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// AnthropicOption configures the Anthropic provider.
type AnthropicOption func(*anthropicOptions)

type anthropicOptions struct {
	baseURL    string
	httpClient *http.Client
	cfg        ProviderConfig
	logger     *zap.Logger
}

// WithAnthropicBaseURL sets a custom base URL.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(o *anthropicOptions) { o.baseURL = strings.TrimRight(url, "/") }
}

// WithAnthropicHTTPClient sets a custom HTTP client.
func WithAnthropicHTTPClient(client *http.Client) AnthropicOption {
	return func(o *anthropicOptions) { o.httpClient = client }
}

// WithAnthropicConfig sets model, sampling and timeout settings.
func WithAnthropicConfig(cfg ProviderConfig) AnthropicOption {
	return func(o *anthropicOptions) { o.cfg = cfg }
}

// WithAnthropicLogger sets the logger.
func WithAnthropicLogger(l *zap.Logger) AnthropicOption {
	return func(o *anthropicOptions) { o.logger = l }
}

// NewAnthropicProvider creates an Anthropic provider.
func NewAnthropicProvider(apiKey string, opts ...AnthropicOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	cfg := DefaultProviderConfig()
	cfg.Model = defaultAnthropicModel
	o := &anthropicOptions{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.cfg.Timeout}
	}
	if o.cfg.MaxTokens <= 0 {
		o.cfg.MaxTokens = 2048
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(o.httpClient),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL+"/"))
	}

	return &AnthropicProvider{
		client:      anthropic.NewClient(reqOpts...),
		model:       o.cfg.Model,
		temperature: o.cfg.Temperature,
		maxTokens:   o.cfg.MaxTokens,
		logger:      o.logger,
	}, nil
}

func (p *AnthropicProvider) Name() string  { return ProviderAnthropic }
func (p *AnthropicProvider) Model() string { return p.model }

// Chat sends a Messages API request.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message, tools []Tool, opts *ChatOptions) (*Response, error) {
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
	converted, err := toAnthropicMessages(rest)
	if err != nil {
		return nil, err
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Messages:    converted,
		Temperature: anthropic.Float(temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, t := range tools {
		schema := t.Parameters.Map()
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schema["properties"],
					Required:   requiredOf(t.Parameters),
				},
			},
		})
	}

	start := time.Now()
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, classifyStatus(ProviderAnthropic, apiErr.StatusCode, err)
		}
		return nil, classifyStatus(ProviderAnthropic, 0, err)
	}

	resp := &Response{
		Model:    string(msg.Model),
		Provider: ProviderAnthropic,
		Latency:  time.Since(start),
		Usage: Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		FinishReason: mapAnthropicStopReason(string(msg.StopReason)),
	}
	if resp.Model == "" {
		resp.Model = model
	}
	var text strings.Builder
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			input := block.Input
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: block.ID, Name: block.Name, Arguments: input})
		}
	}
	resp.Content = text.String()
	if resp.Content == "" && !resp.HasToolCalls() {
		return nil, ErrEmptyResponse
	}

	p.logger.Debug("chat completion",
		zap.String("provider", ProviderAnthropic),
		zap.String("model", resp.Model),
		zap.Int("tokens", resp.Usage.TotalTokens),
		zap.Duration("latency", resp.Latency))
	return resp, nil
}

// toAnthropicMessages converts the conversation. Consecutive tool results are
// grouped into one user turn, as the API requires.
func toAnthropicMessages(messages []Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(messages))
	var pending []anthropic.ContentBlockParamUnion
	flush := func() {
		if len(pending) > 0 {
			out = append(out, anthropic.NewUserMessage(pending...))
			pending = nil
		}
	}
	for _, m := range messages {
		switch m.Role {
		case RoleTool:
			pending = append(pending, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
		case RoleUser:
			flush()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				args, err := decodeArgs(tc.Arguments)
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		}
	}
	flush()
	return out, nil
}

func requiredOf(s *JSONSchema) []string {
	if s == nil {
		return nil
	}
	return s.Required
}

func mapAnthropicStopReason(reason string) FinishReason {
	switch reason {
	case "tool_use":
		return FinishToolCalls
	case "max_tokens":
		return FinishLength
	default:
		return FinishStop
	}
}
