package llm

import "context"

// Message roles used across the agent transcript.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON object
}

// Message is one entry in a chat transcript. Tool results are sent back
// with RoleTool and the ToolCallID they answer.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolDefinition describes a callable function exposed to the model.
// Parameters is a JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type GenerationParams struct {
	Temperature *float32         `json:"temperature"`
	TopP        *float32         `json:"top_p"`
	MaxTokens   *int             `json:"max_tokens"`
	Stop        []string         `json:"stop"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
}

// ChatClient defines the standard interface for any LLM backend.
type ChatClient interface {
	// Chat sends the full transcript and returns the assistant reply,
	// which may carry tool calls instead of (or alongside) content.
	Chat(ctx context.Context, messages []Message, params GenerationParams) (Message, error)

	// Generate runs a single system+user exchange and returns the text.
	// Used for the SQL generation and repair prompts.
	Generate(ctx context.Context, system, prompt string, params GenerationParams) (string, error)
}
