package llm

import "encoding/json"

// Message is one chat message. For a tool-role message, Tools holds the
// single call it answers; for an assistant message, the calls it made.
type Message struct {
	Role    string     `json:"role"`
	Content string     `json:"content"`
	Tools   []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCallID returns the call a tool-role message answers.
func (m Message) ToolCallID() string {
	if m.Role != "tool" || len(m.Tools) == 0 {
		return ""
	}
	return m.Tools[0].ID
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall contains the function name and arguments for a tool call.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Tool describes a tool that can be provided to the model.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function describes a callable function including its parameters schema.
type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Response represents a complete response from an LLM provider.
type Response struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

// FirstCall returns the first requested tool call, if any.
func (r *Response) FirstCall() (ToolCall, bool) {
	if r == nil || len(r.ToolCalls) == 0 {
		return ToolCall{}, false
	}
	return r.ToolCalls[0], true
}

// Usage tracks token consumption for a request/response pair.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

