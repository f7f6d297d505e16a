package gateway

import (
	"context"
	"time"

	"github.com/user/butler/internal/runtime"
	"github.com/user/butler/internal/state"
	"github.com/user/butler/internal/types"
)

// RunStatus represents the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run tracks one turn against a session. A Run carries either an inbound
// message for the engine or a synthetic proposal applied directly.
type Run struct {
	ID         types.TurnID
	SessionID  types.SessionID
	Message    *types.InboundMessage
	Proposal   *runtime.Proposal
	Status     RunStatus
	CreatedAt  time.Time
	StartedAt  *time.Time
	EndedAt    *time.Time
	Err        error
	Ctx        context.Context
	OnComplete func(reply runtime.Reply, err error)

	inspect func(*state.Session)
}

// NewRun creates a Run in the Queued state for the given session and message.
func NewRun(sessionID types.SessionID, msg *types.InboundMessage) *Run {
	return &Run{
		ID:        types.NewTurnID(),
		SessionID: sessionID,
		Message:   msg,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
	}
}

// Turn returns the runtime turn for the run's message.
func (r *Run) Turn() runtime.Turn {
	t := runtime.Turn{ID: r.ID}
	if r.Message != nil {
		t.Source = r.Message.Source
		t.Text = r.Message.Text
	}
	return t
}

func (r *Run) start() {
	now := time.Now()
	r.StartedAt = &now
	r.Status = RunStatusRunning
}

func (r *Run) finish(reply runtime.Reply, err error) {
	now := time.Now()
	r.EndedAt = &now
	r.Err = err
	if err != nil {
		r.Status = RunStatusFailed
	} else {
		r.Status = RunStatusComplete
	}
	if r.OnComplete != nil {
		r.OnComplete(reply, err)
	}
}

func (r *Run) elapsed() time.Duration {
	if r.StartedAt == nil || r.EndedAt == nil {
		return 0
	}
	return r.EndedAt.Sub(*r.StartedAt)
}
