package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/butler/internal/action"
	"github.com/user/butler/internal/dialog"
	"github.com/user/butler/internal/metrics"
	"github.com/user/butler/internal/state"
	"github.com/user/butler/internal/types"
)

// Engine proposes the next step of a turn. Implementations may call a model
// or replay scripted proposals; the runtime validates whatever comes back.
type Engine interface {
	Propose(ctx context.Context, req Request) (Proposal, error)
}

// Runtime runs turns: it loops the engine through tool calls, hands intent
// proposals to the dialog controller and emits actions once ready.
type Runtime struct {
	engine     Engine
	registry   *Registry
	journal    types.EventStore
	controller *dialog.Controller
	emitter    *action.Emitter
	maxRounds  int
	now        func() time.Time
}

// New creates a Runtime. journal may be nil, in which case nothing is
// recorded.
func New(engine Engine, registry *Registry, journal types.EventStore, maxRounds int) *Runtime {
	if maxRounds <= 0 {
		maxRounds = 10
	}
	return &Runtime{
		engine:     engine,
		registry:   registry,
		journal:    journal,
		controller: dialog.NewController(),
		emitter:    action.NewEmitter(),
		maxRounds:  maxRounds,
		now:        time.Now,
	}
}

// Registry returns the tools the runtime dispatches to.
func (rt *Runtime) Registry() *Registry { return rt.registry }

// ProcessTurn runs a direct turn with a fresh id.
func (rt *Runtime) ProcessTurn(ctx context.Context, sess *state.Session, text string) (Reply, error) {
	return rt.Process(ctx, sess, Turn{ID: types.NewTurnID(), Source: "direct", Text: text})
}

// Process executes one turn against sess. The reply carries either text or
// exactly one emitted action.
func (rt *Runtime) Process(ctx context.Context, sess *state.Session, turn Turn) (Reply, error) {
	if turn.ID == "" {
		turn.ID = types.NewTurnID()
	}
	if err := rt.record(ctx, sess, turn, types.EventUserMessage, turn.Source, map[string]string{"text": turn.Text}); err != nil {
		return Reply{}, fmt.Errorf("record user message: %w", err)
	}

	var observations []Observation
	for round := 0; round < rt.maxRounds; round++ {
		p, err := rt.engine.Propose(ctx, Request{Session: sess, Turn: turn, Observations: observations})
		if err != nil {
			return Reply{}, fmt.Errorf("propose: %w", err)
		}
		if err := p.validate(); err != nil {
			return Reply{}, err
		}

		if p.Tool == "" {
			reply := rt.apply(ctx, sess, turn.ID, p)
			rt.recordReply(ctx, sess, turn, reply)
			return reply, nil
		}

		result := rt.callTool(ctx, sess, turn, p)
		observations = append(observations, Observation{CallID: p.CallID, Tool: p.Tool, Args: p.Args, Result: result})
	}

	rt.note(ctx, sess, turn, types.EventError, map[string]string{
		"error": fmt.Sprintf("max tool rounds (%d) exceeded", rt.maxRounds),
	})
	return Reply{}, fmt.Errorf("max tool rounds (%d) exceeded", rt.maxRounds)
}

// Apply runs a single proposal without consulting the engine.
func (rt *Runtime) Apply(ctx context.Context, sess *state.Session, p Proposal) (Reply, error) {
	if err := p.validate(); err != nil {
		return Reply{}, err
	}
	turn := Turn{ID: types.NewTurnID(), Source: "direct"}
	if p.Tool != "" {
		if p.CallID == "" {
			p.CallID = string(turn.ID)
		}
		result := rt.callTool(ctx, sess, turn, p)
		return Reply{TurnID: turn.ID, Text: result}, nil
	}
	reply := rt.apply(ctx, sess, turn.ID, p)
	rt.recordReply(ctx, sess, turn, reply)
	return reply, nil
}

// callTool dispatches p and journals the call with its result.
func (rt *Runtime) callTool(ctx context.Context, sess *state.Session, turn Turn, p Proposal) string {
	result := rt.dispatch(ctx, sess, p)
	rt.note(ctx, sess, turn, types.EventToolCall, map[string]any{
		"tool":      p.Tool,
		"call_id":   p.CallID,
		"arguments": p.Args,
	})
	rt.note(ctx, sess, turn, types.EventToolResult, map[string]any{
		"tool":    p.Tool,
		"call_id": p.CallID,
		"result":  result,
	})
	for _, rec := range sess.TakeAppended() {
		rt.note(ctx, sess, turn, types.EventHistory, rec)
	}
	return result
}

func (rt *Runtime) dispatch(ctx context.Context, sess *state.Session, p Proposal) string {
	result, err := rt.registry.Dispatch(ctx, sess, p.Tool, p.Args)
	if err != nil {
		slog.Warn("tool dispatch failed", "tool", p.Tool, "error", err)
		metrics.IncToolCall(p.Tool, "error")
		return fmt.Sprintf("error: %v", err)
	}
	metrics.IncToolCall(p.Tool, resultStatus(result))
	return result
}

func resultStatus(result string) string {
	var head struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(result), &head); err != nil || head.Status == "" {
		return "unknown"
	}
	return head.Status
}

func (rt *Runtime) apply(ctx context.Context, sess *state.Session, turnID types.TurnID, p Proposal) Reply {
	if p.Intent == "" {
		return Reply{TurnID: turnID, Text: p.Say}
	}

	out, err := rt.controller.Advance(sess, p.Intent, p.update())
	var slotErr *dialog.SlotError
	switch {
	case errors.Is(err, dialog.ErrUnknownIntent):
		metrics.IncDialogOutcome(string(p.Intent), "unknown_intent")
		return Reply{TurnID: turnID, Text: "I can't help with that yet."}
	case errors.As(err, &slotErr):
		metrics.IncDialogOutcome(string(p.Intent), "invalid")
		return Reply{TurnID: turnID, Text: fmt.Sprintf("That %s doesn't look right (%s). Could you give it again?", slotErr.Slot, slotErr.Reason)}
	case err != nil:
		slog.Error("advance intent", "intent", p.Intent, "error", err)
		return Reply{TurnID: turnID, Text: "Something went wrong on my side."}
	}
	metrics.IncDialogOutcome(string(out.Intent), string(out.Status))

	switch out.Status {
	case dialog.StatusNeedsSlot:
		text := out.Prompt
		if out.Default != "" {
			text += fmt.Sprintf(" (default: %s)", out.Default)
		}
		return Reply{TurnID: turnID, Text: text, Outcome: &out}
	case dialog.StatusNeedsApproval:
		return Reply{TurnID: turnID, Text: dialog.Preview(sess.Slots(out.Intent)), Outcome: &out}
	}

	em, err := rt.emitter.Emit(sess, out.Intent)
	if err != nil {
		metrics.IncSchemaViolation()
		return Reply{TurnID: turnID, Text: "I couldn't put that request together. Let's try again."}
	}
	sess.RecordEmission(em)
	metrics.IncActionEmitted(string(em.Kind))
	return Reply{TurnID: turnID, Emission: &em, Outcome: &out}
}

func (rt *Runtime) recordReply(ctx context.Context, sess *state.Session, turn Turn, reply Reply) {
	if reply.Emission != nil {
		rt.note(ctx, sess, turn, types.EventAction, map[string]any{
			"text":        reply.Emission.Text(),
			"emission_id": reply.Emission.ID,
			"action":      reply.Emission.Kind,
		})
		return
	}
	rt.note(ctx, sess, turn, types.EventAssistantMessage, map[string]string{"text": reply.Text})
}

// note records an event after the turn is underway; failures are logged
// and do not fail the turn.
func (rt *Runtime) note(ctx context.Context, sess *state.Session, turn Turn, kind string, payload any) {
	if err := rt.record(ctx, sess, turn, kind, "runtime", payload); err != nil {
		slog.Warn("journal append failed", "session", sess.ID, "type", kind, "error", err)
	}
}

func (rt *Runtime) record(ctx context.Context, sess *state.Session, turn Turn, kind, source string, payload any) error {
	if rt.journal == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return rt.journal.Append(ctx, &types.Event{
		ID:        types.NewEventID(),
		SessionID: sess.ID,
		TurnID:    turn.ID,
		Type:      kind,
		Source:    source,
		At:        rt.now(),
		Payload:   data,
	})
}
