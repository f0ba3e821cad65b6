package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"
	"go.uber.org/zap"
)

// Tool represents a function/tool that can be called by the LLM.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  *JSONSchema `json:"parameters"`
	Handler     ToolHandler `json:"-"` // excluded from JSON serialization
}

// ToolHandler is a function that executes a tool call and returns a string result.
type ToolHandler func(ctx context.Context, args json.RawMessage) (string, error)

// JSONSchema represents a JSON Schema definition for tool parameters.
type JSONSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Enum        []string               `json:"enum,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty"` // for array type
	Default     any                    `json:"default,omitempty"`
	Minimum     *float64               `json:"minimum,omitempty"`
	Maximum     *float64               `json:"maximum,omitempty"`
}

// SchemaFor reflects the argument struct v into a tool parameter schema.
// Field docs come from `jsonschema:"description=..."` tags.
func SchemaFor(v any) (*JSONSchema, error) {
	r := &jsonschema.Reflector{ExpandedStruct: true, DoNotReference: true}
	data, err := json.Marshal(r.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("llm: marshal schema: %w", err)
	}
	var s JSONSchema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("llm: decode schema: %w", err)
	}
	return &s, nil
}

// Map returns the schema as a generic map, the form every SDK accepts.
// A nil schema maps to an empty object schema.
func (s *JSONSchema) Map() map[string]any {
	if s == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	data, _ := json.Marshal(s)
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	if s.Type == "object" && m["properties"] == nil {
		m["properties"] = map[string]any{}
	}
	return m
}

// ToolRegistry manages available tools and executes tool calls.
type ToolRegistry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *zap.Logger
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools:  make(map[string]Tool),
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger used for tool execution.
func (r *ToolRegistry) SetLogger(l *zap.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = l
}

// Register adds a tool to the registry. Overwrites if already exists.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
}

// Get retrieves a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools sorted by name.
func (r *ToolRegistry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute runs a tool call and returns the string result.
func (r *ToolRegistry) Execute(ctx context.Context, call ToolCall) (string, error) {
	tool, ok := r.Get(call.Name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, call.Name)
	}
	if tool.Handler == nil {
		return "", fmt.Errorf("llm: tool %q has no handler", call.Name)
	}
	return tool.Handler(ctx, call.Arguments)
}

// ExecuteAll runs all tool calls concurrently and returns results in order.
func (r *ToolRegistry) ExecuteAll(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c ToolCall) {
			defer wg.Done()
			output, err := r.Execute(ctx, c)
			if err != nil {
				r.logger.Warn("tool call failed", zap.String("tool", c.Name), zap.Error(err))
			} else {
				r.logger.Debug("tool call", zap.String("tool", c.Name), zap.Int("bytes", len(output)))
			}
			results[idx] = ToolResult{
				ToolCallID: c.ID,
				Name:       c.Name,
				Content:    output,
				Err:        err,
			}
		}(i, call)
	}
	wg.Wait()
	return results
}

// ToolResult represents the result of executing a tool.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	Err        error  `json:"error,omitempty"`
}

// ToMessage converts a ToolResult to a Message for feeding back to the LLM.
func (tr ToolResult) ToMessage() Message {
	content := tr.Content
	if tr.Err != nil {
		content = fmt.Sprintf("Error executing tool %s: %v", tr.Name, tr.Err)
	}
	return ToolResultMessage(tr.ToolCallID, tr.Name, content)
}

// RunToolLoop executes the LLM tool-calling loop:
// 1. Send messages to LLM
// 2. If LLM returns tool calls, execute them
// 3. Append tool results to messages
// 4. Repeat until LLM returns a text response or maxIterations is reached
//
// The returned response carries the usage summed over every round.
func RunToolLoop(ctx context.Context, provider LLMProvider, registry *ToolRegistry,
	messages []Message, tools []Tool, opts *ChatOptions, maxIterations int) (*Response, []Message, error) {

	if maxIterations <= 0 {
		maxIterations = 10
	}

	// Work with a copy of messages to avoid mutating the caller's slice
	msgs := make([]Message, len(messages))
	copy(msgs, messages)

	var total Usage
	for i := 0; i < maxIterations; i++ {
		resp, err := provider.Chat(ctx, msgs, tools, opts)
		if err != nil {
			return nil, msgs, err
		}
		total.Add(resp.Usage)

		// If no tool calls, we're done
		if !resp.HasToolCalls() {
			resp.Usage = total
			return resp, msgs, nil
		}

		// Append the assistant message with tool calls
		msgs = append(msgs, AssistantToolCallMessage(resp.Content, resp.ToolCalls))

		// Execute all tool calls
		results := registry.ExecuteAll(ctx, resp.ToolCalls)

		// Append tool results as messages
		for _, result := range results {
			msgs = append(msgs, result.ToMessage())
		}
	}

	return nil, msgs, fmt.Errorf("llm: tool loop exceeded %d iterations", maxIterations)
}
