// Package mail holds the read-only mail domain: messages, attachments,
// meetings mentioned in messages, and the summaries derived from them.
package mail

import (
	"slices"
	"time"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Attachment is a file carried by a message.
type Attachment struct {
	Name string `json:"name"`
	Size string `json:"size"`
	Type string `json:"type"`
}

// CalendarEvent is a meeting referenced by a message. Its fields mirror
// the CREATE_EVENT action so an extracted event can seed that intent.
type CalendarEvent struct {
	EmailID     string    `json:"email_id"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendees   []string  `json:"attendees,omitempty"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Email is a message as the host reports it.
type Email struct {
	ID               string          `json:"id"`
	ThreadID         string          `json:"thread_id"`
	Sender           string          `json:"sender"`
	SenderName       string          `json:"sender_name"`
	Subject          string          `json:"subject"`
	ReceivedAt       time.Time       `json:"date"`
	Body             string          `json:"content"`
	HTML             bool            `json:"html,omitempty"`
	Priority         Priority        `json:"priority"`
	Category         string          `json:"category"`
	Attachments      []Attachment    `json:"attachments"`
	RequiresResponse bool            `json:"requires_response"`
	Deadline         *time.Time      `json:"deadline,omitempty"`
	Unread           bool            `json:"unread"`
	Events           []CalendarEvent `json:"-"`
}

// AttachmentNames lists attachment names in message order.
func (e Email) AttachmentNames() []string {
	names := make([]string, 0, len(e.Attachments))
	for _, a := range e.Attachments {
		names = append(names, a.Name)
	}
	return names
}

// Mailbox is an immutable, id-indexed set of messages.
type Mailbox struct {
	emails []Email
	byID   map[string]int
}

// NewMailbox indexes emails. Later duplicates of an id are ignored.
func NewMailbox(emails ...Email) *Mailbox {
	m := &Mailbox{byID: make(map[string]int, len(emails))}
	for _, e := range emails {
		if _, dup := m.byID[e.ID]; dup {
			continue
		}
		m.byID[e.ID] = len(m.emails)
		m.emails = append(m.emails, e)
	}
	return m
}

// Get returns the message with the given id.
func (m *Mailbox) Get(id string) (Email, bool) {
	i, ok := m.byID[id]
	if !ok {
		return Email{}, false
	}
	return m.emails[i], true
}

// All returns every message, newest first.
func (m *Mailbox) All() []Email {
	out := slices.Clone(m.emails)
	slices.SortStableFunc(out, func(a, b Email) int {
		return b.ReceivedAt.Compare(a.ReceivedAt)
	})
	return out
}

// Len reports the number of messages.
func (m *Mailbox) Len() int {
	return len(m.emails)
}
