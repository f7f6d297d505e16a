package tools

import (
	"github.com/user/butler/internal/mail"
)

// Status is the outcome of a dispatcher operation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ErrorCode classifies an error result.
type ErrorCode string

const (
	CodeInvalidParameters ErrorCode = "invalid_parameters"
	CodeUnknownReference  ErrorCode = "unknown_reference"
)

// Header is embedded by every result variant.
type Header struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

func (h Header) header() Header { return h }

// Result is one of the closed result variants below.
type Result interface {
	header() Header
}

// Summary returns the human-readable message of r.
func Summary(r Result) string { return r.header().Message }

// Failed reports whether r is an error result.
func Failed(r Result) bool { return r.header().Status == StatusError }

func ok(msg string) Header { return Header{Status: StatusSuccess, Message: msg} }

// ErrorResult is returned instead of a payload when an operation cannot run.
type ErrorResult struct {
	Header
	Code ErrorCode `json:"code"`
}

func invalid(msg string) *ErrorResult {
	return &ErrorResult{Header: Header{Status: StatusError, Message: msg}, Code: CodeInvalidParameters}
}

func unknown(msg string) *ErrorResult {
	return &ErrorResult{Header: Header{Status: StatusError, Message: msg}, Code: CodeUnknownReference}
}

type ReadResult struct {
	Header
	Platform string       `json:"platform"`
	Filter   string       `json:"filter_type"`
	Emails   []mail.Email `json:"emails"`
	Count    int          `json:"count"`
}

type SummaryResult struct {
	Header
	Summaries []mail.EmailSummary `json:"summaries"`
	Count     int                 `json:"count"`
	Missing   []string            `json:"missing,omitempty"`
}

type DraftResult struct {
	Header
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Tone      string `json:"tone"`
	Draft     string `json:"draft"`
}

type CategorizeResult struct {
	Header
	Categorized map[string]string `json:"categorized_emails"`
	Skipped     []string          `json:"skipped,omitempty"`
}

type EventsResult struct {
	Header
	Events  []mail.CalendarEvent `json:"events"`
	Count   int                  `json:"count"`
	Missing []string             `json:"missing,omitempty"`
}

// SpamVerdict is the spam decision for one message.
type SpamVerdict struct {
	EmailID    string  `json:"email_id"`
	IsSpam     bool    `json:"is_spam"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

type SpamResult struct {
	Header
	Verdicts  []SpamVerdict `json:"spam_results"`
	SpamCount int           `json:"spam_count"`
}

type AttachmentsDescribed struct {
	Header
	EmailID     string            `json:"email_id"`
	Attachments []mail.Attachment `json:"attachments"`
	Description string            `json:"description"`
}

type AttachmentRenamed struct {
	Header
	EmailID string `json:"email_id"`
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

type AttachmentsOrganized struct {
	Header
	EmailID     string   `json:"email_id"`
	Folder      string   `json:"folder"`
	Attachments []string `json:"attachments"`
}

// Unanswered is a message still waiting on a reply.
type Unanswered struct {
	EmailID           string        `json:"email_id"`
	Sender            string        `json:"sender"`
	Subject           string        `json:"subject"`
	Date              string        `json:"date"`
	DaysSinceReceived int           `json:"days_since_received"`
	Priority          mail.Priority `json:"priority"`
	Deadline          string        `json:"deadline,omitempty"`
}

type UnansweredResult struct {
	Header
	Emails      []Unanswered `json:"unanswered_emails"`
	Count       int          `json:"count"`
	UrgentCount int          `json:"urgent_count"`
}
