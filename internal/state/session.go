// internal/state/session.go
package state

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/user/butler/internal/action"
	"github.com/user/butler/internal/dialog"
	"github.com/user/butler/internal/types"
)

// HistoryKind groups history records by the operation that produced them.
type HistoryKind string

const (
	HistoryReading         HistoryKind = "reading"
	HistorySummary         HistoryKind = "summary"
	HistoryDraft           HistoryKind = "draft"
	HistoryCategorization  HistoryKind = "categorization"
	HistorySpam            HistoryKind = "spam"
	HistoryAttachment      HistoryKind = "attachment"
	HistoryUnanswered      HistoryKind = "unanswered"
	HistoryExtractedEvents HistoryKind = "extracted_events"
)

// HistoryRecord is one audit entry: which operation ran, with what
// parameters, and how many items it produced.
type HistoryRecord struct {
	Seq    int             `json:"seq"`
	Kind   HistoryKind     `json:"kind"`
	At     time.Time       `json:"at"`
	Params json.RawMessage `json:"params,omitempty"`
	Count  int             `json:"count"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// NewRecord encodes params and detail into a HistoryRecord.
func NewRecord(at time.Time, params any, count int, detail any) (HistoryRecord, error) {
	rec := HistoryRecord{At: at.UTC(), Count: count}
	var err error
	if params != nil {
		if rec.Params, err = json.Marshal(params); err != nil {
			return HistoryRecord{}, fmt.Errorf("marshal history params: %w", err)
		}
	}
	if detail != nil {
		if rec.Detail, err = json.Marshal(detail); err != nil {
			return HistoryRecord{}, fmt.Errorf("marshal history detail: %w", err)
		}
	}
	return rec, nil
}

func (r HistoryRecord) clone() HistoryRecord {
	r.Params = slices.Clone(r.Params)
	r.Detail = slices.Clone(r.Detail)
	return r
}

// Session is the state of one conversation. It is not safe for concurrent
// use; callers serialize turns per session.
type Session struct {
	ID        types.SessionID
	Key       types.SessionKey
	CreatedAt time.Time

	slots      dialog.MemoryStore
	history    map[HistoryKind][]HistoryRecord
	categories map[string]string
	emissions  []action.Emission
	unjournal  []HistoryRecord
}

// NewSession returns an empty session.
func NewSession(id types.SessionID, key types.SessionKey, createdAt time.Time) *Session {
	return &Session{
		ID:         id,
		Key:        key,
		CreatedAt:  createdAt,
		slots:      dialog.MemoryStore{},
		history:    make(map[HistoryKind][]HistoryRecord),
		categories: make(map[string]string),
	}
}

// Slots returns the slot set for kind, creating it on first mention.
func (s *Session) Slots(kind dialog.IntentKind) *dialog.SlotSet {
	return s.slots.Slots(kind)
}

// ResetSlots empties the slot set for kind.
func (s *Session) ResetSlots(kind dialog.IntentKind) {
	s.slots.ResetSlots(kind)
}

// Append adds rec to the kind's history and returns it as stored.
// Histories are append-only.
func (s *Session) Append(kind HistoryKind, rec HistoryRecord) HistoryRecord {
	rec = rec.clone()
	rec.Kind = kind
	rec.Seq = len(s.history[kind]) + 1
	s.history[kind] = append(s.history[kind], rec)
	s.unjournal = append(s.unjournal, rec.clone())
	return rec.clone()
}

// TakeAppended returns the records appended since the last call, so they
// can be written to the journal.
func (s *Session) TakeAppended() []HistoryRecord {
	recs := s.unjournal
	s.unjournal = nil
	return recs
}

// History returns the kind's records in append order.
func (s *Session) History(kind HistoryKind) []HistoryRecord {
	recs := s.history[kind]
	out := make([]HistoryRecord, len(recs))
	for i, r := range recs {
		out[i] = r.clone()
	}
	return out
}

// HistoryLen returns the number of records of kind.
func (s *Session) HistoryLen(kind HistoryKind) int { return len(s.history[kind]) }

// Categorize assigns a category to an email id, replacing any earlier one.
func (s *Session) Categorize(emailID, category string) {
	s.categories[emailID] = category
}

// Categories returns a copy of the email id to category map.
func (s *Session) Categories() map[string]string {
	return maps.Clone(s.categories)
}

// RecordEmission remembers an emitted action.
func (s *Session) RecordEmission(em action.Emission) {
	s.emissions = append(s.emissions, em)
}

// Emissions returns every action emitted in this session, oldest first.
func (s *Session) Emissions() []action.Emission {
	return slices.Clone(s.emissions)
}

// SlotSnapshot is the externally visible state of one slot set.
type SlotSnapshot struct {
	Phase    dialog.Phase   `json:"phase"`
	Approved bool           `json:"approved"`
	Values   map[string]any `json:"values"`
}

// Snapshot is a read-only copy of a session for inspection.
type Snapshot struct {
	ID         types.SessionID                    `json:"id"`
	Key        types.SessionKey                   `json:"key"`
	CreatedAt  time.Time                          `json:"created_at"`
	Slots      map[dialog.IntentKind]SlotSnapshot `json:"slots"`
	History    map[HistoryKind][]HistoryRecord    `json:"history"`
	Categories map[string]string                  `json:"categories"`
	Emissions  []action.Emission                  `json:"emissions"`
}

// Snapshot copies the session's current state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:         s.ID,
		Key:        s.Key,
		CreatedAt:  s.CreatedAt,
		Slots:      make(map[dialog.IntentKind]SlotSnapshot, len(s.slots)),
		History:    make(map[HistoryKind][]HistoryRecord, len(s.history)),
		Categories: s.Categories(),
		Emissions:  s.Emissions(),
	}
	for kind, set := range s.slots {
		if set.Empty() && set.Phase() == dialog.PhaseCollecting {
			continue
		}
		snap.Slots[kind] = SlotSnapshot{Phase: set.Phase(), Approved: set.Approved(), Values: set.Values()}
	}
	for kind := range s.history {
		snap.History[kind] = s.History(kind)
	}
	return snap
}
