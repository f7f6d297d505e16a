package dialog

import (
	"maps"
	"slices"
)

// Phase is where a slot set sits in its lifecycle.
type Phase string

const (
	PhaseCollecting      Phase = "collecting"
	PhasePendingApproval Phase = "pending_approval"
	PhaseReady           Phase = "ready"
)

// SlotSet holds the values gathered so far for one intent. Only the
// Controller mutates it.
type SlotSet struct {
	intent    IntentKind
	values    map[string]any
	defaulted map[string]bool
	asked     map[string]bool
	approved  bool
	phase     Phase
}

// NewSlotSet returns an empty slot set for kind.
func NewSlotSet(kind IntentKind) *SlotSet {
	s := &SlotSet{intent: kind}
	s.Reset()
	return s
}

// Intent returns the intent the set belongs to.
func (s *SlotSet) Intent() IntentKind { return s.intent }

// Phase returns the phase computed by the last Advance.
func (s *SlotSet) Phase() Phase { return s.phase }

// Approved reports whether the user confirmed the current values.
func (s *SlotSet) Approved() bool { return s.approved }

// Value returns the normalized value of a filled slot.
func (s *SlotSet) Value(name string) (any, bool) {
	v, ok := s.values[name]
	return cloneValue(v), ok
}

// String returns a string-typed slot, or "" when unset.
func (s *SlotSet) String(name string) string {
	v, _ := s.values[name].(string)
	return v
}

// Defaulted reports whether name holds a substituted default rather than a
// value the user gave.
func (s *SlotSet) Defaulted(name string) bool { return s.defaulted[name] }

// Values returns a copy of every filled slot.
func (s *SlotSet) Values() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = cloneValue(v)
	}
	return out
}

// Filled returns the names of filled slots, sorted.
func (s *SlotSet) Filled() []string {
	return slices.Sorted(maps.Keys(s.values))
}

// Empty reports whether no slot has been filled.
func (s *SlotSet) Empty() bool { return len(s.values) == 0 }

// Reset discards all values and approval.
func (s *SlotSet) Reset() {
	s.values = make(map[string]any)
	s.defaulted = make(map[string]bool)
	s.asked = make(map[string]bool)
	s.approved = false
	s.phase = PhaseCollecting
}

// SlotStore owns the slot sets of one conversation.
type SlotStore interface {
	// Slots returns the set for kind, creating it when absent.
	Slots(kind IntentKind) *SlotSet
	// ResetSlots empties the set for kind.
	ResetSlots(kind IntentKind)
}

// MemoryStore is a SlotStore backed by a plain map.
type MemoryStore map[IntentKind]*SlotSet

func (m MemoryStore) Slots(kind IntentKind) *SlotSet {
	set, ok := m[kind]
	if !ok {
		set = NewSlotSet(kind)
		m[kind] = set
	}
	return set
}

func (m MemoryStore) ResetSlots(kind IntentKind) {
	if set, ok := m[kind]; ok {
		set.Reset()
	}
}
