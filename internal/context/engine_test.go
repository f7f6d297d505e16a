package context

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/user/butler/internal/dialog"
	"github.com/user/butler/internal/state"
	"github.com/user/butler/internal/types"
)

// wordCounter approximates tokens as whitespace-separated words.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func event(seq int64, typ string, payload any) *types.Event {
	raw, _ := json.Marshal(payload)
	return &types.Event{ID: types.NewEventID(), SessionID: "s1", Seq: seq, Type: typ, Source: "test", At: time.Now(), Payload: raw}
}

func testSession() *state.Session {
	return state.NewSession("s1", "test:1", time.Now())
}

func TestBuildPromptBasic(t *testing.T) {
	e := NewWithCounter(wordCounter{}, 128000, 4096)

	events := []*types.Event{
		event(1, types.EventUserMessage, map[string]string{"text": "hello"}),
		event(2, types.EventAssistantMessage, map[string]string{"text": "hi there"}),
	}

	messages, err := e.BuildPrompt(context.Background(), testSession(), events, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[0].Role != "system" {
		t.Errorf("expected system message first, got %q", messages[0].Role)
	}
	if messages[1].Role != "user" || messages[1].Content != "hello" {
		t.Errorf("unexpected user message %+v", messages[1])
	}
	if messages[2].Role != "assistant" {
		t.Errorf("expected assistant message, got %q", messages[2].Role)
	}
}

func TestBuildPromptToolCallEvents(t *testing.T) {
	e := NewWithCounter(wordCounter{}, 128000, 4096)

	events := []*types.Event{
		event(1, types.EventUserMessage, map[string]string{"text": "any spam?"}),
		event(2, types.EventToolCall, map[string]any{
			"tool": "detect_spam", "call_id": "tc1",
			"arguments": map[string][]string{"email_ids": {"email_002"}},
		}),
		event(3, types.EventToolResult, map[string]any{
			"tool": "detect_spam", "call_id": "tc1", "result": `{"status":"success"}`,
		}),
		event(4, types.EventAction, map[string]string{"text": `{"action":"LIST_TASKS"}`}),
	}

	messages, err := e.BuildPrompt(context.Background(), testSession(), events, []string{"detect_spam"})
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(messages))
	}
	call := messages[2]
	if call.Role != "assistant" || len(call.Tools) != 1 || call.Tools[0].Function.Name != "detect_spam" {
		t.Errorf("unexpected tool call message %+v", call)
	}
	result := messages[3]
	if result.Role != "tool" || result.Tools[0].ID != "tc1" {
		t.Errorf("unexpected tool result message %+v", result)
	}
	if messages[4].Content != `{"action":"LIST_TASKS"}` {
		t.Errorf("action should replay as assistant text, got %+v", messages[4])
	}
}

func TestBuildPromptKeepsNewestWithinBudget(t *testing.T) {
	// Budget leaves room for the system prompt plus a few words.
	sizer := NewWithCounter(wordCounter{}, 100000, 0)
	sys, err := sizer.systemPrompt(testSession(), nil)
	if err != nil {
		t.Fatal(err)
	}
	sysWords := wordCounter{}.Count(sys)

	e := NewWithCounter(wordCounter{}, sysWords+10, 0)
	events := []*types.Event{
		event(1, types.EventUserMessage, map[string]string{"text": "one two three four five six seven eight"}),
		event(2, types.EventAssistantMessage, map[string]string{"text": "short reply"}),
		event(3, types.EventUserMessage, map[string]string{"text": "latest question"}),
	}

	messages, err := e.BuildPrompt(context.Background(), testSession(), events, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected system + 2 newest, got %d messages", len(messages))
	}
	if messages[2].Content != "latest question" {
		t.Errorf("newest event must be kept, got %q", messages[2].Content)
	}
}

func TestBuildPromptDropsOrphanToolResult(t *testing.T) {
	e := NewWithCounter(wordCounter{}, 128000, 0)
	events := []*types.Event{
		event(1, types.EventToolResult, map[string]any{"call_id": "tc0", "result": "stale"}),
		event(2, types.EventUserMessage, map[string]string{"text": "hi"}),
	}
	messages, err := e.BuildPrompt(context.Background(), testSession(), events, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 2 || messages[1].Role != "user" {
		t.Errorf("orphan tool result should be dropped: %+v", messages)
	}
}

func TestSystemPromptShowsPendingSlots(t *testing.T) {
	e := NewWithCounter(wordCounter{}, 128000, 0)
	sess := testSession()
	if _, err := dialog.NewController().Advance(sess, dialog.IntentComposeSend, dialog.Update{
		Slots: map[string]any{"recipient": "jane.doe@x.com"},
	}); err != nil {
		t.Fatal(err)
	}
	sess.Categorize("email_001", "urgent")

	sys, err := e.systemPrompt(sess, []string{"detect_spam", "read_emails"})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"compose_send (collecting): recipient=jane.doe@x.com",
		"email_001: urgent",
		"Available tools: detect_spam, read_emails",
	} {
		if !strings.Contains(sys, want) {
			t.Errorf("system prompt missing %q:\n%s", want, sys)
		}
	}
}
