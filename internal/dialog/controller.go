package dialog

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
)

// Update is one proposal applied to an intent's slot set.
type Update struct {
	// Slots carries proposed values. Nil values are ignored; they never
	// clear a filled slot.
	Slots map[string]any

	// Clear explicitly empties the named slots.
	Clear []string

	// Approve confirms the values shown in the last NeedsApproval.
	Approve bool

	// AcceptDefaults substitutes defaults for missing slots that have one.
	AcceptDefaults bool

	// Reset discards the set before applying anything else.
	Reset bool
}

// Status is the controller's verdict after an update.
type Status string

const (
	StatusNeedsSlot     Status = "needs_slot"
	StatusNeedsApproval Status = "needs_approval"
	StatusReady         Status = "ready"
)

// Outcome tells the caller what to do next for an intent.
type Outcome struct {
	Intent  IntentKind `json:"intent"`
	Status  Status     `json:"status"`
	Slot    string     `json:"slot,omitempty"`    // set for StatusNeedsSlot
	Prompt  string     `json:"prompt,omitempty"`  // follow-up question for Slot
	Default string     `json:"default,omitempty"` // suggested value for Slot, if any
}

// Controller drives slot sets through collecting, approval and readiness.
type Controller struct{}

// NewController returns a Controller.
func NewController() *Controller { return &Controller{} }

// Advance merges u into the kind's slot set and reports the next step.
// A rejected update leaves the set exactly as it was.
func (c *Controller) Advance(store SlotStore, kind IntentKind, u Update) (Outcome, error) {
	schema, ok := Lookup(kind)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownIntent, kind)
	}

	staged, err := stage(schema, u)
	if err != nil {
		slog.Warn("slot update rejected", "intent", kind, "error", err)
		return Outcome{}, err
	}

	set := store.Slots(kind)
	if u.Reset {
		set.Reset()
	}
	before := set.phase

	changed := false
	for _, name := range slices.Sorted(maps.Keys(staged)) {
		v := staged[name]
		if cur, ok := set.values[name]; ok && sameValue(cur, v) {
			// Re-sending a substituted default makes it the user's choice.
			delete(set.defaulted, name)
			continue
		}
		set.values[name] = v
		delete(set.defaulted, name)
		changed = true
	}
	for _, name := range u.Clear {
		if _, ok := set.values[name]; ok {
			delete(set.values, name)
			delete(set.defaulted, name)
			changed = true
		}
	}
	if changed {
		set.approved = false
	}

	out := c.evaluate(schema, set, u, changed, before)
	set.phase = phaseOf(out.Status)
	slog.Debug("slot set advanced", "intent", kind, "status", out.Status, "slot", out.Slot, "filled", set.Filled())
	return out, nil
}

func (c *Controller) evaluate(schema *Schema, set *SlotSet, u Update, changed bool, before Phase) Outcome {
	required := schema.Required()

	for _, spec := range required {
		if _, ok := set.values[spec.Name]; ok {
			continue
		}
		if spec.hasDefault() && !spec.Ask {
			set.values[spec.Name] = spec.Default
			set.defaulted[spec.Name] = true
			continue
		}
		if spec.hasDefault() && othersFilled(required, set, spec.Name) {
			// Approving the suggestion fills the default; the preview still
			// has to be approved on its own.
			acceptByApproval := u.Approve && set.asked[spec.Name] && !changed
			if u.AcceptDefaults || acceptByApproval {
				set.values[spec.Name] = spec.Default
				set.defaulted[spec.Name] = true
				continue
			}
			set.asked[spec.Name] = true
		}
		return Outcome{
			Intent:  schema.Intent,
			Status:  StatusNeedsSlot,
			Slot:    spec.Name,
			Prompt:  spec.Prompt,
			Default: spec.Default,
		}
	}

	if !schema.NeedsApproval || set.approved {
		return Outcome{Intent: schema.Intent, Status: StatusReady}
	}
	if u.Approve && !changed && before == PhasePendingApproval {
		set.approved = true
		return Outcome{Intent: schema.Intent, Status: StatusReady}
	}
	return Outcome{Intent: schema.Intent, Status: StatusNeedsApproval}
}

// othersFilled reports whether every required slot except name is either
// filled or silently defaultable.
func othersFilled(required []SlotSpec, set *SlotSet, name string) bool {
	for _, spec := range required {
		if spec.Name == name {
			continue
		}
		if _, ok := set.values[spec.Name]; ok {
			continue
		}
		if spec.hasDefault() && !spec.Ask {
			continue
		}
		return false
	}
	return true
}

// stage validates every part of u before anything is applied.
func stage(schema *Schema, u Update) (map[string]any, error) {
	staged := make(map[string]any, len(u.Slots))
	for _, name := range slices.Sorted(maps.Keys(u.Slots)) {
		spec, ok := schema.Slot(name)
		if !ok {
			return nil, &SlotError{Intent: schema.Intent, Slot: name, Reason: "not a slot of this intent"}
		}
		v, err := normalize(spec, u.Slots[name])
		if err != nil {
			return nil, &SlotError{Intent: schema.Intent, Slot: name, Reason: err.Error()}
		}
		if v != nil {
			staged[name] = v
		}
	}
	for _, name := range u.Clear {
		if _, ok := schema.Slot(name); !ok {
			return nil, &SlotError{Intent: schema.Intent, Slot: name, Reason: "not a slot of this intent"}
		}
	}
	return staged, nil
}

func phaseOf(s Status) Phase {
	switch s {
	case StatusReady:
		return PhaseReady
	case StatusNeedsApproval:
		return PhasePendingApproval
	}
	return PhaseCollecting
}
