package runtime

import (
	"encoding/json"
	"errors"

	"github.com/user/butler/internal/action"
	"github.com/user/butler/internal/dialog"
	"github.com/user/butler/internal/state"
	"github.com/user/butler/internal/types"
)

// Proposal is what the reasoning engine wants to happen next: say
// something, call a tool, or advance an intent. Exactly one applies.
type Proposal struct {
	Say string `json:"say,omitempty"`

	Tool   string          `json:"tool,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
	CallID string          `json:"call_id,omitempty"`

	Intent         dialog.IntentKind `json:"intent,omitempty"`
	Slots          map[string]any    `json:"slots,omitempty"`
	Clear          []string          `json:"clear,omitempty"`
	Approve        bool              `json:"approve,omitempty"`
	AcceptDefaults bool              `json:"accept_defaults,omitempty"`
	Reset          bool              `json:"reset,omitempty"`
}

var errAmbiguousProposal = errors.New("proposal names both a tool and an intent")

func (p Proposal) validate() error {
	if p.Tool != "" && p.Intent != "" {
		return errAmbiguousProposal
	}
	return nil
}

func (p Proposal) update() dialog.Update {
	return dialog.Update{
		Slots:          p.Slots,
		Clear:          p.Clear,
		Approve:        p.Approve,
		AcceptDefaults: p.AcceptDefaults,
		Reset:          p.Reset,
	}
}

// Reply is what a turn produces: text for the user, or exactly one action
// for the host. Never both.
type Reply struct {
	TurnID   types.TurnID     `json:"turn_id"`
	Text     string           `json:"text,omitempty"`
	Emission *action.Emission `json:"emission,omitempty"`
	Outcome  *dialog.Outcome  `json:"outcome,omitempty"`
}

// Body is the single text surfaced for the reply. For an emission it is the
// action record and nothing else.
func (r Reply) Body() string {
	if r.Emission != nil {
		return r.Emission.Text()
	}
	return r.Text
}

// Turn is one inbound user utterance.
type Turn struct {
	ID     types.TurnID
	Source string
	Text   string
}

// Observation is a tool result the engine has not yet reacted to.
type Observation struct {
	CallID string
	Tool   string
	Args   json.RawMessage
	Result string
}

// Request is the engine's view of the turn in progress.
type Request struct {
	Session      *state.Session
	Turn         Turn
	Observations []Observation
}
