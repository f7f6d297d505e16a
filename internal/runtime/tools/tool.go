package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/user/butler/internal/state"
)

// Tool exposes one Service operation to the dispatcher.
type Tool struct {
	name        string
	description string
	parameters  json.RawMessage
	run         func(sess *state.Session, args json.RawMessage) (Result, error)
}

func (t *Tool) Name() string                { return t.name }
func (t *Tool) Description() string         { return t.description }
func (t *Tool) Parameters() json.RawMessage { return t.parameters }

// Execute decodes args, runs the operation and returns its JSON result.
// Undecodable args yield an invalid_parameters result and no history record.
func (t *Tool) Execute(_ context.Context, sess *state.Session, args json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage(`{}`)
	}
	res, err := t.run(sess, args)
	if err != nil {
		res = invalid(fmt.Sprintf("Could not read %s arguments: %v", t.name, err))
	}
	return Encode(res)
}

// Encode renders a result as the dispatcher's JSON text.
func Encode(r Result) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(bytes.TrimSpace(buf.Bytes())), nil
}

func decode[T any](args json.RawMessage) (T, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	err := dec.Decode(&v)
	return v, err
}

// TrackUnansweredTool is the tool reminders run on their schedule.
const TrackUnansweredTool = "track_unanswered_emails"

type idsArgs struct {
	EmailIDs []string `json:"email_ids"`
}

// Tools returns the dispatcher tools backed by s.
func (s *Service) Tools() []*Tool {
	return []*Tool{
		{
			name:        "read_emails",
			description: "Read messages from the user's mailbox, optionally filtered",
			parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"platform": {"type": "string", "enum": ["gmail", "outlook"]},
					"filter_type": {"type": "string", "enum": ["all", "unread", "urgent", "promotional", "most_recent"]}
				},
				"required": ["platform"]
			}`),
			run: func(sess *state.Session, raw json.RawMessage) (Result, error) {
				a, err := decode[struct {
					Platform string `json:"platform"`
					Filter   string `json:"filter_type"`
				}](raw)
				if err != nil {
					return nil, err
				}
				return s.ReadEmails(sess, a.Platform, a.Filter), nil
			},
		},
		{
			name:        "summarize_emails",
			description: "Summarize messages with extracted keywords, required actions and deadlines",
			parameters:  idsSchema,
			run: func(sess *state.Session, raw json.RawMessage) (Result, error) {
				a, err := decode[idsArgs](raw)
				if err != nil {
					return nil, err
				}
				return s.SummarizeEmails(sess, a.EmailIDs), nil
			},
		},
		{
			name:        "draft_email",
			description: "Draft a message body in a given tone without sending it",
			parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"recipient": {"type": "string"},
					"subject": {"type": "string"},
					"content": {"type": "string"},
					"tone": {"type": "string", "enum": ["professional", "casual", "persuasive", "empathetic"]}
				},
				"required": ["recipient", "subject", "content"]
			}`),
			run: func(sess *state.Session, raw json.RawMessage) (Result, error) {
				a, err := decode[struct {
					Recipient string `json:"recipient"`
					Subject   string `json:"subject"`
					Content   string `json:"content"`
					Tone      string `json:"tone"`
				}](raw)
				if err != nil {
					return nil, err
				}
				return s.DraftEmail(sess, a.Recipient, a.Subject, a.Content, a.Tone), nil
			},
		},
		{
			name:        "categorize_emails",
			description: "Assign categories to messages by position",
			parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"email_ids": {"type": "array", "items": {"type": "string"}},
					"categories": {"type": "array", "items": {"type": "string"}}
				},
				"required": ["email_ids", "categories"]
			}`),
			run: func(sess *state.Session, raw json.RawMessage) (Result, error) {
				a, err := decode[struct {
					EmailIDs   []string `json:"email_ids"`
					Categories []string `json:"categories"`
				}](raw)
				if err != nil {
					return nil, err
				}
				return s.CategorizeEmails(sess, a.EmailIDs, a.Categories), nil
			},
		},
		{
			name:        "extract_calendar_events",
			description: "Find meetings mentioned in messages",
			parameters:  idsSchema,
			run: func(sess *state.Session, raw json.RawMessage) (Result, error) {
				a, err := decode[idsArgs](raw)
				if err != nil {
					return nil, err
				}
				return s.ExtractCalendarEvents(sess, a.EmailIDs), nil
			},
		},
		{
			name:        "detect_spam",
			description: "Flag suspicious or promotional messages",
			parameters:  idsSchema,
			run: func(sess *state.Session, raw json.RawMessage) (Result, error) {
				a, err := decode[idsArgs](raw)
				if err != nil {
					return nil, err
				}
				return s.DetectSpam(sess, a.EmailIDs), nil
			},
		},
		{
			name:        "manage_attachments",
			description: "Describe, rename or organize a message's attachments",
			parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"email_id": {"type": "string"},
					"action": {"type": "string", "enum": ["describe", "rename", "organize"]},
					"attachment": {"type": "string"},
					"new_name": {"type": "string"},
					"folder": {"type": "string"}
				},
				"required": ["email_id", "action"]
			}`),
			run: func(sess *state.Session, raw json.RawMessage) (Result, error) {
				a, err := decode[AttachmentRequest](raw)
				if err != nil {
					return nil, err
				}
				return s.ManageAttachments(sess, a), nil
			},
		},
		{
			name:        TrackUnansweredTool,
			description: "List messages that still need a reply",
			parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
			run: func(sess *state.Session, _ json.RawMessage) (Result, error) {
				return s.TrackUnanswered(sess), nil
			},
		},
	}
}

var idsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"email_ids": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["email_ids"]
}`)
