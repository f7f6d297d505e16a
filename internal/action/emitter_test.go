package action

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/user/butler/internal/dialog"
)

func fixedEmitter() *Emitter {
	return &Emitter{now: func() time.Time { return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC) }}
}

func ready(t *testing.T, store dialog.SlotStore, kind dialog.IntentKind, slots map[string]any) {
	t.Helper()
	c := dialog.NewController()
	out, err := c.Advance(store, kind, dialog.Update{Slots: slots})
	if err != nil {
		t.Fatal(err)
	}
	if out.Status == dialog.StatusNeedsApproval {
		out, err = c.Advance(store, kind, dialog.Update{Approve: true})
		if err != nil {
			t.Fatal(err)
		}
	}
	if out.Status != dialog.StatusReady {
		t.Fatalf("%s not ready: %+v", kind, out)
	}
}

func TestEmitSendEmailScenario(t *testing.T) {
	store := dialog.MemoryStore{}
	c := dialog.NewController()

	out, err := c.Advance(store, dialog.IntentComposeSend, dialog.Update{Slots: map[string]any{
		"recipient": "jane.doe@x.com", "subject": "Status", "body": "On track",
	}})
	if err != nil || out.Slot != "tone" {
		t.Fatalf("expected tone question, got %+v %v", out, err)
	}
	if _, err := c.Advance(store, dialog.IntentComposeSend, dialog.Update{Slots: map[string]any{"tone": "casual"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Advance(store, dialog.IntentComposeSend, dialog.Update{Approve: true}); err != nil {
		t.Fatal(err)
	}

	em, err := fixedEmitter().Emit(store, dialog.IntentComposeSend)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"action":"SEND_EMAIL","recipient":"jane.doe@x.com","subject":"Status","content":"On track","tone":"casual"}`
	if em.Text() != want {
		t.Errorf("emission =\n%s\nwant\n%s", em.Text(), want)
	}
	if em.Kind != KindSendEmail || em.ID == "" {
		t.Errorf("unexpected emission metadata: %+v", em)
	}
}

func TestEmitResetsSlotSet(t *testing.T) {
	store := dialog.MemoryStore{}
	ready(t, store, dialog.IntentComposeSend, map[string]any{
		"recipient": "a@b.com", "subject": "Hi", "body": "Hello", "tone": "casual",
	})
	if _, err := fixedEmitter().Emit(store, dialog.IntentComposeSend); err != nil {
		t.Fatal(err)
	}

	set := store.Slots(dialog.IntentComposeSend)
	if !set.Empty() || set.Phase() != dialog.PhaseCollecting || set.Approved() {
		t.Fatalf("slot set not reset: %v phase=%s", set.Values(), set.Phase())
	}

	out, err := dialog.NewController().Advance(store, dialog.IntentComposeSend, dialog.Update{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Slot != "recipient" {
		t.Errorf("expected new flow to start at recipient, got %+v", out)
	}
}

func TestEmitRefusesUnreadySet(t *testing.T) {
	store := dialog.MemoryStore{}
	c := dialog.NewController()
	if _, err := c.Advance(store, dialog.IntentComposeSend, dialog.Update{Slots: map[string]any{
		"recipient": "a@b.com", "subject": "Hi", "body": "Hello", "tone": "casual",
	}}); err != nil {
		t.Fatal(err)
	}

	_, err := fixedEmitter().Emit(store, dialog.IntentComposeSend)
	if !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("expected schema violation before approval, got %v", err)
	}
	if store.Slots(dialog.IntentComposeSend).Empty() {
		t.Error("refused emission must not reset the slot set")
	}
}

func TestEmitTwiceEmitsOnce(t *testing.T) {
	store := dialog.MemoryStore{}
	ready(t, store, dialog.IntentDeleteTask, map[string]any{"taskId": "t-1"})

	e := fixedEmitter()
	if _, err := e.Emit(store, dialog.IntentDeleteTask); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Emit(store, dialog.IntentDeleteTask); !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("second emit should be refused, got %v", err)
	}
}

func TestEmitPayloads(t *testing.T) {
	tests := []struct {
		name  string
		kind  dialog.IntentKind
		slots map[string]any
		want  string
	}{
		{
			name: "read emails defaults",
			kind: dialog.IntentReadEmails,
			want: `{"action":"READ_EMAILS","platform":"gmail","filter":"most_recent"}`,
		},
		{
			name:  "reply without message id",
			kind:  dialog.IntentReplyEmail,
			slots: map[string]any{"threadId": "th-9", "body": "Thanks!"},
			want:  `{"action":"REPLY_EMAIL","threadId":"th-9","content":"Thanks!"}`,
		},
		{
			name: "create event with attendees",
			kind: dialog.IntentCreateEvent,
			slots: map[string]any{
				"title": "Sync", "start": "2024-01-16T10:00:00Z", "end": "2024-01-16T11:00:00Z",
				"attendees": []any{"a@b.com"},
			},
			want: `{"action":"CREATE_EVENT","title":"Sync","start":"2024-01-16T10:00:00Z","end":"2024-01-16T11:00:00Z","attendees":["a@b.com"]}`,
		},
		{
			name: "list events empty",
			kind: dialog.IntentListEvents,
			want: `{"action":"LIST_EVENTS"}`,
		},
		{
			name: "list tasks no slots",
			kind: dialog.IntentListTasks,
			want: `{"action":"LIST_TASKS","showCompleted":false}`,
		},
		{
			name:  "list tasks shows completed",
			kind:  dialog.IntentListTasks,
			slots: map[string]any{"showCompleted": true, "maxResults": 5},
			want:  `{"action":"LIST_TASKS","maxResults":5,"showCompleted":true}`,
		},
		{
			name:  "list tasks hides completed",
			kind:  dialog.IntentListTasks,
			slots: map[string]any{"showCompleted": false},
			want:  `{"action":"LIST_TASKS","showCompleted":false}`,
		},
		{
			name:  "list drive files",
			kind:  dialog.IntentListDriveFiles,
			slots: map[string]any{"pageSize": 10},
			want:  `{"action":"LIST_DRIVE_FILES","pageSize":10}`,
		},
		{
			name:  "create task keeps html characters",
			kind:  dialog.IntentCreateTask,
			slots: map[string]any{"title": "Q&A <prep>"},
			want:  `{"action":"CREATE_TASK","title":"Q&A <prep>"}`,
		},
		{
			name:  "complete task",
			kind:  dialog.IntentCompleteTask,
			slots: map[string]any{"taskId": "t-2"},
			want:  `{"action":"COMPLETE_TASK","taskId":"t-2"}`,
		},
		{
			name:  "delete event",
			kind:  dialog.IntentDeleteEvent,
			slots: map[string]any{"eventId": "ev-1"},
			want:  `{"action":"DELETE_EVENT","eventId":"ev-1"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := dialog.MemoryStore{}
			ready(t, store, tt.kind, tt.slots)
			em, err := fixedEmitter().Emit(store, tt.kind)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, em.Text()); diff != "" {
				t.Errorf("payload (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateRejectsBadRecords(t *testing.T) {
	tests := []struct {
		name  string
		rec   Record
		field string
	}{
		{"bad recipient", SendEmail{Recipient: "jane", Subject: "s", Content: "c", Tone: "casual"}, "recipient"},
		{"bad tone", SendEmail{Recipient: "a@b.com", Subject: "s", Content: "c", Tone: "loud"}, "tone"},
		{"bad start", CreateEvent{Title: "t", Start: "soon", End: "2024-01-16T11:00:00Z"}, "start"},
		{"bad attendee", CreateEvent{Title: "t", Start: "2024-01-16T10:00:00Z", End: "2024-01-16T11:00:00Z", Attendees: []string{"x"}}, "attendees"},
		{"missing task", CompleteTask{}, "taskId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.rec)
			var fe *fieldError
			if !errors.As(err, &fe) {
				t.Fatalf("expected field error, got %v", err)
			}
			if fe.field != tt.field {
				t.Errorf("field = %q, want %q", fe.field, tt.field)
			}
		})
	}
}
