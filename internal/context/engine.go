// internal/context/engine.go
package context

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/butler/internal/dialog"
	"github.com/user/butler/internal/state"
	"github.com/user/butler/internal/types"
	"github.com/user/butler/pkg/llm"
)

// Counter counts prompt tokens.
type Counter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with the model's BPE encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter selects the tokenizer for model, falling back to
// cl100k_base for models tiktoken does not know.
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Engine assembles token-budgeted prompts for the LLM.
type Engine struct {
	counter   Counter
	maxTokens int
	reserve   int
	tmpl      *template.Template
	now       func() time.Time
}

// New creates a context engine with the specified token budget.
// maxTokens is the model's context window size; reserve is kept free for
// the model's response.
func New(model string, maxTokens, reserve int) (*Engine, error) {
	counter, err := NewTiktokenCounter(model)
	if err != nil {
		return nil, err
	}
	return NewWithCounter(counter, maxTokens, reserve), nil
}

// NewWithCounter creates a context engine using counter for budgeting.
func NewWithCounter(counter Counter, maxTokens, reserve int) *Engine {
	return &Engine{
		counter:   counter,
		maxTokens: maxTokens,
		reserve:   reserve,
		tmpl:      template.Must(template.New("system").Parse(DefaultPrompt)),
		now:       time.Now,
	}
}

// PendingIntent is an intent with partially collected slots.
type PendingIntent struct {
	Intent dialog.IntentKind
	Phase  dialog.Phase
	Filled string
}

// PromptData feeds the system prompt template.
type PromptData struct {
	Time       string
	SessionID  string
	Tools      string
	Intents    string
	Pending    []PendingIntent
	Categories []string
}

func (e *Engine) systemPrompt(sess *state.Session, toolNames []string) (string, error) {
	data := PromptData{
		Time:      e.now().Format(time.RFC3339),
		SessionID: string(sess.ID),
		Tools:     strings.Join(toolNames, ", "),
	}

	var intents []string
	for _, kind := range dialog.Intents() {
		intents = append(intents, string(kind))
	}
	data.Intents = strings.Join(intents, ", ")

	snap := sess.Snapshot()
	for _, kind := range slices.Sorted(maps.Keys(snap.Slots)) {
		slot := snap.Slots[kind]
		var filled []string
		for _, name := range slices.Sorted(maps.Keys(slot.Values)) {
			filled = append(filled, fmt.Sprintf("%s=%v", name, slot.Values[name]))
		}
		data.Pending = append(data.Pending, PendingIntent{Intent: kind, Phase: slot.Phase, Filled: strings.Join(filled, ", ")})
	}
	for _, id := range slices.Sorted(maps.Keys(snap.Categories)) {
		data.Categories = append(data.Categories, id+": "+snap.Categories[id])
	}

	var b strings.Builder
	if err := e.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return b.String(), nil
}

// BuildPrompt assembles a token-budgeted prompt from the session's journal.
// The newest events are kept when the budget runs out.
func (e *Engine) BuildPrompt(
	_ context.Context,
	sess *state.Session,
	events []*types.Event,
	toolNames []string,
) ([]llm.Message, error) {
	sysPrompt, err := e.systemPrompt(sess, toolNames)
	if err != nil {
		return nil, err
	}

	inputBudget := e.maxTokens - e.reserve
	remaining := inputBudget - e.counter.Count(sysPrompt)
	// 90% for events, 10% safety margin
	eventBudget := int(float64(remaining) * 0.9)

	var kept []llm.Message
	usedTokens := 0
	for i := len(events) - 1; i >= 0; i-- {
		msg, ok := eventToMessage(events[i])
		if !ok {
			continue
		}

		msgTokens := e.counter.Count(msg.Content)
		for _, tc := range msg.Tools {
			msgTokens += e.counter.Count(tc.Function.Name)
			msgTokens += e.counter.Count(string(tc.Function.Arguments))
		}
		if usedTokens+msgTokens > eventBudget {
			break
		}
		kept = append(kept, msg)
		usedTokens += msgTokens
	}
	slices.Reverse(kept)

	// A tool result without its call is rejected by chat APIs.
	for len(kept) > 0 && kept[0].Role == "tool" {
		kept = kept[1:]
	}

	messages := make([]llm.Message, 0, 1+len(kept))
	messages = append(messages, llm.Message{Role: "system", Content: sysPrompt})
	messages = append(messages, kept...)
	return messages, nil
}

type eventPayload struct {
	Text      string          `json:"text"`
	Tool      string          `json:"tool"`
	CallID    string          `json:"call_id"`
	Arguments json.RawMessage `json:"arguments"`
	Result    string          `json:"result"`
}

func eventToMessage(event *types.Event) (llm.Message, bool) {
	var payload eventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return llm.Message{}, false
	}

	switch event.Type {
	case types.EventUserMessage:
		return llm.Message{Role: "user", Content: payload.Text}, true

	case types.EventAssistantMessage, types.EventAction:
		return llm.Message{Role: "assistant", Content: payload.Text}, true

	case types.EventToolCall:
		return llm.Message{
			Role: "assistant",
			Tools: []llm.ToolCall{{
				ID:   payload.CallID,
				Type: "function",
				Function: llm.FunctionCall{
					Name:      payload.Tool,
					Arguments: payload.Arguments,
				},
			}},
		}, true

	case types.EventToolResult:
		return llm.Message{
			Role:    "tool",
			Content: payload.Result,
			Tools:   []llm.ToolCall{{ID: payload.CallID}},
		}, true
	}
	return llm.Message{}, false
}
