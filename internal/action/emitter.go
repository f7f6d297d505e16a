package action

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/user/butler/internal/dialog"
	"github.com/user/butler/internal/types"
)

// Emission is one emitted action as the host receives it.
type Emission struct {
	ID      types.EmissionID  `json:"id"`
	Intent  dialog.IntentKind `json:"intent"`
	Kind    Kind              `json:"kind"`
	Payload json.RawMessage   `json:"payload"`
	At      time.Time         `json:"at"`
}

// Text is the exact text surfaced to the host: the record and nothing else.
func (e Emission) Text() string { return string(e.Payload) }

// Emitter turns ready slot sets into action records.
type Emitter struct {
	now func() time.Time
}

// NewEmitter returns an Emitter stamping emissions with the wall clock.
func NewEmitter() *Emitter {
	return &Emitter{now: time.Now}
}

// Emit builds, validates and encodes the action for kind, then resets the
// intent's slot set. It refuses any set the controller has not marked ready.
func (e *Emitter) Emit(store dialog.SlotStore, kind dialog.IntentKind) (Emission, error) {
	set := store.Slots(kind)
	if set.Phase() != dialog.PhaseReady {
		return Emission{}, e.violation(&SchemaViolation{Intent: kind, Reason: "slot set is " + string(set.Phase())})
	}

	rec, err := FromSlots(set)
	if err != nil {
		return Emission{}, e.violation(err)
	}
	payload, err := Marshal(rec)
	if err != nil {
		return Emission{}, err
	}

	store.ResetSlots(kind)
	em := Emission{
		ID:      types.NewEmissionID(),
		Intent:  kind,
		Kind:    rec.Kind(),
		Payload: payload,
		At:      e.now().UTC(),
	}
	slog.Info("action emitted", "intent", kind, "action", rec.Kind(), "emission_id", em.ID)
	return em, nil
}

func (e *Emitter) violation(err error) error {
	slog.Error("refusing to emit action", "error", err)
	return err
}

// FromSlots maps a slot set onto its action record and validates it.
func FromSlots(set *dialog.SlotSet) (Record, error) {
	kind := set.Intent()
	var rec Record
	switch kind {
	case dialog.IntentReadEmails:
		rec = ReadEmails{Platform: set.String("platform"), Filter: set.String("filter")}
	case dialog.IntentComposeSend:
		rec = SendEmail{
			Recipient: set.String("recipient"),
			Subject:   set.String("subject"),
			Content:   set.String("body"),
			Tone:      set.String("tone"),
		}
	case dialog.IntentReplyEmail:
		rec = ReplyEmail{
			ThreadID:  set.String("threadId"),
			MessageID: set.String("messageId"),
			Content:   set.String("body"),
		}
	case dialog.IntentCreateEvent:
		ev := CreateEvent{
			Title:       set.String("title"),
			Start:       set.String("start"),
			End:         set.String("end"),
			Description: set.String("description"),
		}
		if v, ok := set.Value("attendees"); ok {
			ev.Attendees, _ = v.([]string)
		}
		rec = ev
	case dialog.IntentDeleteEvent:
		rec = DeleteEvent{EventID: set.String("eventId")}
	case dialog.IntentListEvents:
		rec = ListEvents{TimeMin: set.String("timeMin"), TimeMax: set.String("timeMax"), Query: set.String("q")}
	case dialog.IntentListDriveFiles:
		rec = ListDriveFiles{PageSize: intSlot(set, "pageSize")}
	case dialog.IntentListTasks:
		// Completed tasks stay hidden unless asked for.
		v, _ := set.Value("showCompleted")
		show, _ := v.(bool)
		rec = ListTasks{MaxResults: intSlot(set, "maxResults"), ShowCompleted: &show}
	case dialog.IntentCreateTask:
		rec = CreateTask{Title: set.String("title"), Due: set.String("due"), Notes: set.String("notes")}
	case dialog.IntentCompleteTask:
		rec = CompleteTask{TaskID: set.String("taskId")}
	case dialog.IntentDeleteTask:
		rec = DeleteTask{TaskID: set.String("taskId")}
	default:
		return nil, &SchemaViolation{Intent: kind, Reason: "no action for intent"}
	}

	if err := rec.validate(); err != nil {
		sv := &SchemaViolation{Intent: kind, Reason: err.Error()}
		var fe *fieldError
		if errors.As(err, &fe) {
			sv.Field, sv.Reason = fe.field, fe.reason
		}
		return nil, sv
	}
	return rec, nil
}

func intSlot(set *dialog.SlotSet, name string) int {
	v, _ := set.Value(name)
	n, _ := v.(int)
	return n
}
