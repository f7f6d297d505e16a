// Package action defines the closed set of host-executable action records
// and the emitter that turns a ready slot set into exactly one of them.
package action

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind is the "action" tag the host dispatches on.
type Kind string

const (
	KindReadEmails     Kind = "READ_EMAILS"
	KindSendEmail      Kind = "SEND_EMAIL"
	KindReplyEmail     Kind = "REPLY_EMAIL"
	KindCreateEvent    Kind = "CREATE_EVENT"
	KindDeleteEvent    Kind = "DELETE_EVENT"
	KindListEvents     Kind = "LIST_EVENTS"
	KindListDriveFiles Kind = "LIST_DRIVE_FILES"
	KindListTasks      Kind = "LIST_TASKS"
	KindCreateTask     Kind = "CREATE_TASK"
	KindCompleteTask   Kind = "COMPLETE_TASK"
	KindDeleteTask     Kind = "DELETE_TASK"
)

// Record is one action. Implementations are immutable value types and
// carry only the fields their action allows.
type Record interface {
	Kind() Kind
	validate() error
}

type ReadEmails struct {
	Platform string `json:"platform"`
	Filter   string `json:"filter"`
}

type SendEmail struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Content   string `json:"content"`
	Tone      string `json:"tone"`
}

type ReplyEmail struct {
	ThreadID  string `json:"threadId"`
	MessageID string `json:"messageId,omitempty"`
	Content   string `json:"content"`
}

type CreateEvent struct {
	Title       string   `json:"title"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Attendees   []string `json:"attendees,omitempty"`
	Description string   `json:"description,omitempty"`
}

type DeleteEvent struct {
	EventID string `json:"eventId"`
}

type ListEvents struct {
	TimeMin string `json:"timeMin,omitempty"`
	TimeMax string `json:"timeMax,omitempty"`
	Query   string `json:"q,omitempty"`
}

type ListDriveFiles struct {
	PageSize int `json:"pageSize,omitempty"`
}

type ListTasks struct {
	MaxResults    int   `json:"maxResults,omitempty"`
	ShowCompleted *bool `json:"showCompleted,omitempty"`
}

type CreateTask struct {
	Title string `json:"title"`
	Due   string `json:"due,omitempty"`
	Notes string `json:"notes,omitempty"`
}

type CompleteTask struct {
	TaskID string `json:"taskId"`
}

type DeleteTask struct {
	TaskID string `json:"taskId"`
}

func (ReadEmails) Kind() Kind     { return KindReadEmails }
func (SendEmail) Kind() Kind      { return KindSendEmail }
func (ReplyEmail) Kind() Kind     { return KindReplyEmail }
func (CreateEvent) Kind() Kind    { return KindCreateEvent }
func (DeleteEvent) Kind() Kind    { return KindDeleteEvent }
func (ListEvents) Kind() Kind     { return KindListEvents }
func (ListDriveFiles) Kind() Kind { return KindListDriveFiles }
func (ListTasks) Kind() Kind      { return KindListTasks }
func (CreateTask) Kind() Kind     { return KindCreateTask }
func (CompleteTask) Kind() Kind   { return KindCompleteTask }
func (DeleteTask) Kind() Kind     { return KindDeleteTask }

// Marshal encodes r as a single JSON object whose first key is "action".
func Marshal(r Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.Kind(), err)
	}
	fields := bytes.TrimSpace(buf.Bytes())

	out := make([]byte, 0, len(fields)+len(r.Kind())+16)
	out = append(out, `{"action":`...)
	out = append(out, fmt.Sprintf("%q", r.Kind())...)
	if len(fields) > 2 {
		out = append(out, ',')
		out = append(out, fields[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}
