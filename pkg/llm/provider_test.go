package llm

import (
	"context"
	"testing"
	"time"
)

// MockProvider is a test double that satisfies the Provider interface.
type MockProvider struct {
	CompleteFunc func(ctx context.Context, messages []Message, tools []Tool) (*Response, error)
}

func (m *MockProvider) Complete(ctx context.Context, messages []Message, tools []Tool) (*Response, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, messages, tools)
	}
	return &Response{Content: "mock response"}, nil
}

func TestFirstCall(t *testing.T) {
	var provider Provider = &MockProvider{
		CompleteFunc: func(context.Context, []Message, []Tool) (*Response, error) {
			return &Response{ToolCalls: []ToolCall{
				{ID: "a", Function: FunctionCall{Name: "detect_spam"}},
				{ID: "b", Function: FunctionCall{Name: "summarize_emails"}},
			}}, nil
		},
	}
	resp, err := provider.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := resp.FirstCall()
	if !ok || tc.ID != "a" {
		t.Errorf("FirstCall() = %+v, %v", tc, ok)
	}

	if _, ok := (&Response{Content: "text"}).FirstCall(); ok {
		t.Error("text response should have no call")
	}
	var nilResp *Response
	if _, ok := nilResp.FirstCall(); ok {
		t.Error("nil response should have no call")
	}
}

func TestToolCallID(t *testing.T) {
	tests := []struct {
		msg  Message
		want string
	}{
		{Message{Role: "tool", Tools: []ToolCall{{ID: "call_1"}}}, "call_1"},
		{Message{Role: "assistant", Tools: []ToolCall{{ID: "call_1"}}}, ""},
		{Message{Role: "tool"}, ""},
	}
	for _, tt := range tests {
		if got := tt.msg.ToolCallID(); got != tt.want {
			t.Errorf("%+v.ToolCallID() = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"complete", Config{BaseURL: "https://api.openai.com/v1", Model: "gpt-4o"}, false},
		{"no base url", Config{Model: "gpt-4o"}, true},
		{"no model", Config{BaseURL: "http://localhost"}, true},
		{"negative max tokens", Config{BaseURL: "http://localhost", Model: "m", MaxTokens: -1}, true},
		{"negative timeout", Config{BaseURL: "http://localhost", Model: "m", Timeout: -time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
