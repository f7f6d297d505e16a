// Package tools implements the dispatcher operations over the mailbox.
// Every operation appends exactly one history record to the session per
// invocation, including invocations that end in an error result.
package tools

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/user/butler/internal/dialog"
	"github.com/user/butler/internal/extract"
	"github.com/user/butler/internal/mail"
	"github.com/user/butler/internal/state"
)

// Service runs dispatcher operations against one mailbox.
type Service struct {
	mailbox   *mail.Mailbox
	extractor extract.Extractor
	now       func() time.Time
}

// NewService returns a Service over mb using x for summaries.
func NewService(mb *mail.Mailbox, x extract.Extractor) *Service {
	return &Service{mailbox: mb, extractor: x, now: time.Now}
}

func (s *Service) record(sess *state.Session, kind state.HistoryKind, params any, count int, detail any) {
	rec, err := state.NewRecord(s.now(), params, count, detail)
	if err != nil {
		// Params are plain values; keep the audit entry even if encoding fails.
		slog.Error("encode history record", "kind", kind, "error", err)
		rec = state.HistoryRecord{At: s.now().UTC(), Count: count}
	}
	sess.Append(kind, rec)
}

// Read filters.
const (
	FilterAll         = "all"
	FilterUnread      = "unread"
	FilterUrgent      = "urgent"
	FilterPromotional = "promotional"
	FilterMostRecent  = "most_recent"
)

var (
	platforms = []string{"gmail", "outlook"}
	filters   = []string{FilterAll, FilterUnread, FilterUrgent, FilterPromotional, FilterMostRecent}
)

// ReadEmails lists messages matching filter, newest first.
func (s *Service) ReadEmails(sess *state.Session, platform, filter string) Result {
	platform = strings.ToLower(strings.TrimSpace(platform))
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		filter = FilterAll
	}
	params := map[string]string{"platform": platform, "filter": filter}

	if !slices.Contains(platforms, platform) {
		s.record(sess, state.HistoryReading, params, 0, nil)
		return invalid(fmt.Sprintf("Unsupported platform %q; use gmail or outlook", platform))
	}
	if !slices.Contains(filters, filter) {
		s.record(sess, state.HistoryReading, params, 0, nil)
		return invalid(fmt.Sprintf("Unknown filter %q; use one of %s", filter, strings.Join(filters, ", ")))
	}

	var out []mail.Email
	for _, e := range s.mailbox.All() {
		switch filter {
		case FilterUnread:
			if !e.Unread {
				continue
			}
		case FilterUrgent:
			if e.Priority != mail.PriorityHigh {
				continue
			}
		case FilterPromotional:
			if e.Category != "promotional" {
				continue
			}
		}
		out = append(out, e)
	}
	if filter == FilterMostRecent && len(out) > 1 {
		out = out[:1]
	}
	if out == nil {
		out = []mail.Email{}
	}

	s.record(sess, state.HistoryReading, params, len(out), nil)
	return &ReadResult{
		Header:   ok(fmt.Sprintf("Successfully read %d emails from %s", len(out), platform)),
		Platform: platform,
		Filter:   filter,
		Emails:   out,
		Count:    len(out),
	}
}

// SummarizeEmails summarizes the known ids in request order. Unknown ids
// are left out and listed as missing.
func (s *Service) SummarizeEmails(sess *state.Session, ids []string) Result {
	params := map[string][]string{"email_ids": ids}
	if len(ids) == 0 {
		s.record(sess, state.HistorySummary, params, 0, nil)
		return invalid("Tell me which emails to summarize")
	}

	summaries := []mail.EmailSummary{}
	var missing []string
	for _, id := range ids {
		e, found := s.mailbox.Get(id)
		if !found {
			missing = append(missing, id)
			continue
		}
		sum, err := mail.Summarize(e, s.extractor)
		if err != nil {
			slog.Warn("summarize email", "email_id", id, "error", err)
			missing = append(missing, id)
			continue
		}
		summaries = append(summaries, sum)
	}

	s.record(sess, state.HistorySummary, params, len(summaries), map[string][]string{"missing": missing})
	return &SummaryResult{
		Header:    ok(fmt.Sprintf("Successfully summarized %d emails", len(summaries))),
		Summaries: summaries,
		Count:     len(summaries),
		Missing:   missing,
	}
}

// Draft templates per tone.
var templates = map[string]struct{ greeting, lead, tail, closing string }{
	"professional": {greeting: "Dear %s,", closing: "Best regards,"},
	"casual":       {greeting: "Hi %s!", closing: "Cheers,"},
	"persuasive": {
		greeting: "Dear %s,",
		lead:     "I hope this email finds you well. I'm reaching out because ",
		tail:     "I believe this opportunity would be mutually beneficial, and I'd love to discuss it further with you.\n\nLooking forward to hearing from you.",
		closing:  "Best regards,",
	},
	"empathetic": {
		greeting: "Dear %s,",
		lead:     "I understand that ",
		tail:     "Please know that I'm here to support you through this process, and I'm committed to finding the best solution for everyone involved.",
		closing:  "Warm regards,",
	},
}

// DraftEmail writes a message body for recipient in the requested tone.
// An empty tone means professional.
func (s *Service) DraftEmail(sess *state.Session, recipient, subject, content, tone string) Result {
	tone = strings.ToLower(strings.TrimSpace(tone))
	if tone == "" {
		tone = "professional"
	}
	params := map[string]string{"recipient": recipient, "subject": subject, "tone": tone}

	tpl, known := templates[tone]
	switch {
	case !dialog.IsAddress(recipient):
		s.record(sess, state.HistoryDraft, params, 0, nil)
		return invalid(fmt.Sprintf("%q is not an email address", recipient))
	case strings.TrimSpace(content) == "":
		s.record(sess, state.HistoryDraft, params, 0, nil)
		return invalid("What should the email say?")
	case !known:
		s.record(sess, state.HistoryDraft, params, 0, nil)
		return invalid(fmt.Sprintf("Unknown tone %q; choose %s", tone, strings.Join(dialog.Tones, ", ")))
	}

	var b strings.Builder
	fmt.Fprintf(&b, tpl.greeting, greetingName(recipient))
	b.WriteString("\n\n")
	b.WriteString(tpl.lead)
	b.WriteString(content)
	if tpl.tail != "" {
		b.WriteString("\n\n")
		b.WriteString(tpl.tail)
	}
	b.WriteString("\n\n")
	b.WriteString(tpl.closing)
	b.WriteString("\n[Your Name]")
	draft := b.String()

	s.record(sess, state.HistoryDraft, params, 1, map[string]string{"draft": draft})
	return &DraftResult{
		Header:    ok(fmt.Sprintf("Successfully drafted email to %s in %s tone", recipient, tone)),
		Recipient: recipient,
		Subject:   subject,
		Tone:      tone,
		Draft:     draft,
	}
}

// greetingName turns "jane.doe@x.com" into "Jane Doe".
func greetingName(address string) string {
	local, _, _ := strings.Cut(address, "@")
	return cases.Title(language.English).String(strings.ReplaceAll(local, ".", " "))
}

// CategorizeEmails pairs ids with categories by position. Pairing stops at
// the shorter list; ids without a category are reported as skipped and
// left uncategorized. An empty list on either side pairs nothing and still
// succeeds.
func (s *Service) CategorizeEmails(sess *state.Session, ids, categories []string) Result {
	params := map[string][]string{"email_ids": ids, "categories": categories}
	n := min(len(ids), len(categories))
	categorized := make(map[string]string, n)
	for i := range n {
		sess.Categorize(ids[i], categories[i])
		categorized[ids[i]] = categories[i]
	}
	var skipped []string
	if len(ids) > n {
		skipped = slices.Clone(ids[n:])
	}

	s.record(sess, state.HistoryCategorization, params, n, categorized)
	return &CategorizeResult{
		Header:      ok(fmt.Sprintf("Successfully categorized %d emails", n)),
		Categorized: categorized,
		Skipped:     skipped,
	}
}

// ExtractCalendarEvents returns the meetings mentioned by the known ids.
func (s *Service) ExtractCalendarEvents(sess *state.Session, ids []string) Result {
	params := map[string][]string{"email_ids": ids}
	if len(ids) == 0 {
		s.record(sess, state.HistoryExtractedEvents, params, 0, nil)
		return invalid("Tell me which emails to look for events in")
	}

	events := []mail.CalendarEvent{}
	var missing []string
	for _, id := range ids {
		e, found := s.mailbox.Get(id)
		if !found {
			missing = append(missing, id)
			continue
		}
		events = append(events, e.Events...)
	}

	s.record(sess, state.HistoryExtractedEvents, params, len(events), events)
	return &EventsResult{
		Header:  ok(fmt.Sprintf("Successfully extracted %d calendar events", len(events))),
		Events:  events,
		Count:   len(events),
		Missing: missing,
	}
}

// DetectSpam returns one verdict per requested id, in request order.
func (s *Service) DetectSpam(sess *state.Session, ids []string) Result {
	params := map[string][]string{"email_ids": ids}
	if len(ids) == 0 {
		s.record(sess, state.HistorySpam, params, 0, nil)
		return invalid("Tell me which emails to check")
	}

	verdicts := make([]SpamVerdict, 0, len(ids))
	spam := 0
	for _, id := range ids {
		v := s.verdict(id)
		if v.IsSpam {
			spam++
		}
		verdicts = append(verdicts, v)
	}

	s.record(sess, state.HistorySpam, params, len(verdicts), verdicts)
	return &SpamResult{
		Header:    ok(fmt.Sprintf("Spam detection completed for %d emails", len(ids))),
		Verdicts:  verdicts,
		SpamCount: spam,
	}
}

func (s *Service) verdict(id string) SpamVerdict {
	e, found := s.mailbox.Get(id)
	switch {
	case !found:
		return SpamVerdict{EmailID: id, Confidence: 0.5, Reason: "Unknown email"}
	case e.Category == "promotional":
		return SpamVerdict{EmailID: id, IsSpam: true, Confidence: 0.85, Reason: "Promotional content"}
	default:
		return SpamVerdict{EmailID: id, Confidence: 0.15, Reason: "Legitimate email"}
	}
}

// Attachment actions.
const (
	AttachmentDescribe = "describe"
	AttachmentRename   = "rename"
	AttachmentOrganize = "organize"
)

// AttachmentRequest selects what ManageAttachments does.
type AttachmentRequest struct {
	EmailID    string `json:"email_id"`
	Action     string `json:"action"`
	Attachment string `json:"attachment,omitempty"`
	NewName    string `json:"new_name,omitempty"`
	Folder     string `json:"folder,omitempty"`
}

// ManageAttachments describes, renames or files a message's attachments.
// Rename targets the named attachment, or the first one when none is named.
func (s *Service) ManageAttachments(sess *state.Session, req AttachmentRequest) Result {
	res := s.manageAttachments(req)
	count := 0
	if !Failed(res) {
		count = 1
	}
	s.record(sess, state.HistoryAttachment, req, count, res)
	return res
}

func (s *Service) manageAttachments(req AttachmentRequest) Result {
	e, found := s.mailbox.Get(req.EmailID)
	if !found {
		return unknown(fmt.Sprintf("No email with id %q", req.EmailID))
	}

	switch strings.ToLower(req.Action) {
	case AttachmentDescribe:
		desc := "Email has no attachments"
		if len(e.Attachments) > 0 {
			desc = fmt.Sprintf("Email contains %d attachments: %s", len(e.Attachments), strings.Join(e.AttachmentNames(), ", "))
		}
		return &AttachmentsDescribed{
			Header:      ok(fmt.Sprintf("Successfully managed attachments for email %s", e.ID)),
			EmailID:     e.ID,
			Attachments: slices.Clone(e.Attachments),
			Description: desc,
		}

	case AttachmentRename:
		if req.NewName == "" {
			return invalid("What should the attachment be renamed to?")
		}
		if len(e.Attachments) == 0 {
			return invalid(fmt.Sprintf("Email %s has no attachments to rename", e.ID))
		}
		old := e.Attachments[0].Name
		if req.Attachment != "" {
			if !slices.Contains(e.AttachmentNames(), req.Attachment) {
				return unknown(fmt.Sprintf("Email %s has no attachment named %q", e.ID, req.Attachment))
			}
			old = req.Attachment
		}
		return &AttachmentRenamed{
			Header:  ok(fmt.Sprintf("Attachment renamed from %s to %s", old, req.NewName)),
			EmailID: e.ID,
			OldName: old,
			NewName: req.NewName,
		}

	case AttachmentOrganize:
		if req.Folder == "" {
			return invalid("Which folder should the attachments go in?")
		}
		return &AttachmentsOrganized{
			Header:      ok(fmt.Sprintf("Attachments organized into folder: %s", req.Folder)),
			EmailID:     e.ID,
			Folder:      req.Folder,
			Attachments: e.AttachmentNames(),
		}
	}
	return invalid(fmt.Sprintf("Unknown attachment action %q; use describe, rename or organize", req.Action))
}

// TrackUnanswered lists messages still waiting on a reply, newest first.
func (s *Service) TrackUnanswered(sess *state.Session) Result {
	now := s.now()
	out := []Unanswered{}
	urgent := 0
	for _, e := range s.mailbox.All() {
		if !e.RequiresResponse {
			continue
		}
		u := Unanswered{
			EmailID:           e.ID,
			Sender:            e.Sender,
			Subject:           e.Subject,
			Date:              e.ReceivedAt.Format(time.DateTime),
			DaysSinceReceived: max(0, int(now.Sub(e.ReceivedAt).Hours()/24)),
			Priority:          e.Priority,
		}
		if e.Deadline != nil {
			u.Deadline = e.Deadline.Format(time.DateTime)
		}
		if e.Priority == mail.PriorityHigh {
			urgent++
		}
		out = append(out, u)
	}

	s.record(sess, state.HistoryUnanswered, nil, len(out), out)
	return &UnansweredResult{
		Header:      ok(fmt.Sprintf("Found %d emails requiring responses", len(out))),
		Emails:      out,
		Count:       len(out),
		UrgentCount: urgent,
	}
}
