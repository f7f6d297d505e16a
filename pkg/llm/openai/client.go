// Package openai talks to OpenAI-compatible chat completion endpoints.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/butler/pkg/llm"
)

const defaultTimeout = 60 * time.Second

// APIError is a non-200 answer from the completions endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client implements llm.Provider.
type Client struct {
	config     *llm.Config
	httpClient *http.Client
}

// New creates a client for config. A zero Timeout means one minute.
func New(config *llm.Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []llm.Tool    `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float32      `json:"temperature,omitempty"`
}

// wireMessage is a chat message as the API spells it, in both directions.
type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []llm.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message wireMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *Client) newChatRequest(messages []llm.Message, tools []llm.Tool) chatRequest {
	req := chatRequest{
		Model:     c.config.Model,
		Messages:  make([]wireMessage, len(messages)),
		Tools:     tools,
		MaxTokens: c.config.MaxTokens,
	}
	for i, msg := range messages {
		wm := wireMessage{Role: msg.Role, Content: msg.Content}
		if id := msg.ToolCallID(); id != "" {
			wm.ToolCallID = id
		} else if msg.Role != "tool" && len(msg.Tools) > 0 {
			wm.ToolCalls = toWire(msg.Tools)
		}
		req.Messages[i] = wm
	}
	if c.config.Temperature != 0 {
		temp := c.config.Temperature
		req.Temperature = &temp
	}
	return req
}

// Complete sends one chat completion request and returns the first choice.
func (c *Client) Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error) {
	body, err := json.Marshal(c.newChatRequest(messages, tools))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return parseResponse(respBody)
}

func parseResponse(data []byte) (*llm.Response, error) {
	var chat chatResponse
	if err := json.Unmarshal(data, &chat); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}

	msg := chat.Choices[0].Message
	calls, err := fromWire(msg.ToolCalls)
	if err != nil {
		return nil, fmt.Errorf("parsing tool calls: %w", err)
	}
	return &llm.Response{
		Content:   msg.Content,
		ToolCalls: calls,
		Usage: llm.Usage{
			InputTokens:  chat.Usage.PromptTokens,
			OutputTokens: chat.Usage.CompletionTokens,
			TotalTokens:  chat.Usage.TotalTokens,
		},
	}, nil
}

// The API carries function arguments as a JSON-encoded string. Inside the
// module they are always a raw JSON object.
func toWire(calls []llm.ToolCall) []llm.ToolCall {
	out := make([]llm.ToolCall, len(calls))
	for i, tc := range calls {
		args := tc.Function.Arguments
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		quoted, _ := json.Marshal(string(args))
		tc.Function.Arguments = quoted
		out[i] = tc
	}
	return out
}

func fromWire(calls []llm.ToolCall) ([]llm.ToolCall, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	out := make([]llm.ToolCall, len(calls))
	for i, tc := range calls {
		args := bytes.TrimSpace(tc.Function.Arguments)
		if len(args) > 0 && args[0] == '"' {
			var s string
			if err := json.Unmarshal(args, &s); err != nil {
				return nil, fmt.Errorf("%s arguments: %w", tc.Function.Name, err)
			}
			args = bytes.TrimSpace([]byte(s))
		}
		if len(args) == 0 {
			args = []byte(`{}`)
		}
		if !json.Valid(args) {
			return nil, fmt.Errorf("%s arguments are not valid JSON", tc.Function.Name)
		}
		tc.Function.Arguments = json.RawMessage(args)
		out[i] = tc
	}
	return out, nil
}
