package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	ctxengine "github.com/user/butler/internal/context"
	"github.com/user/butler/internal/dialog"
	"github.com/user/butler/internal/metrics"
	"github.com/user/butler/internal/types"
	"github.com/user/butler/pkg/llm"
)

// ProposeIntentTool is the pseudo-tool the model calls to advance an intent.
const ProposeIntentTool = "propose_intent"

const historyWindow = 100

var proposeIntentSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "intent": {"type": "string", "description": "One of the supported intents"},
    "slots": {"type": "object", "description": "Slot values extracted from the conversation"},
    "clear": {"type": "array", "items": {"type": "string"}, "description": "Slots the user asked to empty"},
    "approve": {"type": "boolean", "description": "The user confirmed the last preview"},
    "accept_defaults": {"type": "boolean", "description": "The user accepted suggested defaults"},
    "reset": {"type": "boolean", "description": "Discard everything collected for this intent"}
  },
  "required": ["intent"]
}`)

type intentArgs struct {
	Intent         dialog.IntentKind `json:"intent"`
	Slots          map[string]any    `json:"slots"`
	Clear          []string          `json:"clear"`
	Approve        bool              `json:"approve"`
	AcceptDefaults bool              `json:"accept_defaults"`
	Reset          bool              `json:"reset"`
}

// LLMEngine asks a chat model for the next proposal.
type LLMEngine struct {
	provider llm.Provider
	prompt   *ctxengine.Engine
	registry *Registry
	journal  types.EventStore
}

// NewLLMEngine creates an engine that reads conversation history from
// journal. With a nil journal only the current turn is shown to the model.
func NewLLMEngine(provider llm.Provider, prompt *ctxengine.Engine, registry *Registry, journal types.EventStore) *LLMEngine {
	return &LLMEngine{provider: provider, prompt: prompt, registry: registry, journal: journal}
}

func (e *LLMEngine) tools() []llm.Tool {
	tools := e.registry.AsLLMTools()
	return append(tools, llm.Tool{
		Type: "function",
		Function: llm.Function{
			Name:        ProposeIntentTool,
			Description: "Advance a user request that ends in an action for the host (send, reply, schedule, list...).",
			Parameters:  proposeIntentSchema,
		},
	})
}

func (e *LLMEngine) history(ctx context.Context, req Request) ([]*types.Event, error) {
	if e.journal != nil {
		return e.journal.Tail(ctx, req.Session.ID, historyWindow)
	}

	mk := func(kind string, payload any) *types.Event {
		data, _ := json.Marshal(payload)
		return &types.Event{SessionID: req.Session.ID, TurnID: req.Turn.ID, Type: kind, At: time.Now(), Payload: data}
	}
	events := []*types.Event{mk(types.EventUserMessage, map[string]string{"text": req.Turn.Text})}
	for _, o := range req.Observations {
		events = append(events,
			mk(types.EventToolCall, map[string]any{"tool": o.Tool, "call_id": o.CallID, "arguments": o.Args}),
			mk(types.EventToolResult, map[string]any{"tool": o.Tool, "call_id": o.CallID, "result": o.Result}),
		)
	}
	return events, nil
}

// Propose implements Engine.
func (e *LLMEngine) Propose(ctx context.Context, req Request) (Proposal, error) {
	events, err := e.history(ctx, req)
	if err != nil {
		return Proposal{}, fmt.Errorf("load history: %w", err)
	}

	names := append(e.registry.Names(), ProposeIntentTool)
	messages, err := e.prompt.BuildPrompt(ctx, req.Session, events, names)
	if err != nil {
		return Proposal{}, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := e.provider.Complete(ctx, messages, e.tools())
	if err != nil {
		return Proposal{}, fmt.Errorf("LLM call: %w", err)
	}
	metrics.AddLLMTokens(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	tc, ok := resp.FirstCall()
	if !ok {
		return Proposal{Say: resp.Content}, nil
	}
	if len(resp.ToolCalls) > 1 {
		slog.Debug("model returned several tool calls, using the first", "count", len(resp.ToolCalls))
	}
	if tc.Function.Name != ProposeIntentTool {
		return Proposal{Tool: tc.Function.Name, Args: tc.Function.Arguments, CallID: tc.ID}, nil
	}

	var args intentArgs
	if err := json.Unmarshal(tc.Function.Arguments, &args); err != nil {
		return Proposal{}, fmt.Errorf("decode %s arguments: %w", ProposeIntentTool, err)
	}
	return Proposal{
		Say:            resp.Content,
		Intent:         args.Intent,
		Slots:          args.Slots,
		Clear:          args.Clear,
		Approve:        args.Approve,
		AcceptDefaults: args.AcceptDefaults,
		Reset:          args.Reset,
	}, nil
}
