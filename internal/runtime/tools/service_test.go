package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/user/butler/internal/extract"
	"github.com/user/butler/internal/mail"
	"github.com/user/butler/internal/state"
	"github.com/user/butler/internal/types"
)

func newTestService() *Service {
	s := NewService(mail.SampleMailbox(), extract.DefaultRules())
	s.now = func() time.Time { return time.Date(2024, 1, 16, 18, 0, 0, 0, time.UTC) }
	return s
}

func newTestSession() *state.Session {
	return state.NewSession(types.NewSessionID(), "test:1", time.Now())
}

func TestCategorizeTruncatesToShorterList(t *testing.T) {
	s := newTestService()
	sess := newTestSession()

	res := s.CategorizeEmails(sess, []string{"e1", "e2", "e3"}, []string{"work", "work"})
	cr, ok := res.(*CategorizeResult)
	if !ok {
		t.Fatalf("expected CategorizeResult, got %T", res)
	}

	want := map[string]string{"e1": "work", "e2": "work"}
	if diff := cmp.Diff(want, cr.Categorized); diff != "" {
		t.Errorf("categorized (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, sess.Categories()); diff != "" {
		t.Errorf("session categories (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"e3"}, cr.Skipped); diff != "" {
		t.Errorf("skipped (-want +got):\n%s", diff)
	}
	if sess.HistoryLen(state.HistoryCategorization) != 1 {
		t.Error("expected one categorization record")
	}
}

func TestCategorizeEmptyListsPairNothing(t *testing.T) {
	tests := []struct {
		name       string
		ids        []string
		categories []string
		skipped    []string
	}{
		{"no ids", nil, []string{"work"}, nil},
		{"no categories", []string{"email_001", "email_002"}, nil, []string{"email_001", "email_002"}},
		{"both empty", []string{}, []string{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService()
			sess := newTestSession()

			cr, ok := s.CategorizeEmails(sess, tt.ids, tt.categories).(*CategorizeResult)
			if !ok {
				t.Fatal("empty input should still produce a CategorizeResult")
			}
			if cr.Status != StatusSuccess || len(cr.Categorized) != 0 {
				t.Errorf("got status %q with %d categorized", cr.Status, len(cr.Categorized))
			}
			if diff := cmp.Diff(tt.skipped, cr.Skipped); diff != "" {
				t.Errorf("skipped (-want +got):\n%s", diff)
			}
			if len(sess.Categories()) != 0 {
				t.Error("nothing should be categorized")
			}
			if sess.HistoryLen(state.HistoryCategorization) != 1 {
				t.Error("expected one categorization record")
			}
		})
	}
}

func TestDetectSpamPreservesOrder(t *testing.T) {
	s := newTestService()
	sess := newTestSession()

	res := s.DetectSpam(sess, []string{"email_003", "email_002", "nope"})
	sr, ok := res.(*SpamResult)
	if !ok {
		t.Fatalf("expected SpamResult, got %T", res)
	}
	if len(sr.Verdicts) != 3 {
		t.Fatalf("expected 3 verdicts, got %d", len(sr.Verdicts))
	}

	var ids []string
	for _, v := range sr.Verdicts {
		ids = append(ids, v.EmailID)
		if v.Confidence < 0 || v.Confidence > 1 {
			t.Errorf("confidence %v out of range for %s", v.Confidence, v.EmailID)
		}
	}
	if diff := cmp.Diff([]string{"email_003", "email_002", "nope"}, ids); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	if !sr.Verdicts[1].IsSpam || sr.Verdicts[1].Confidence != 0.85 {
		t.Errorf("email_002 verdict = %+v", sr.Verdicts[1])
	}
	if sr.Verdicts[0].IsSpam || sr.SpamCount != 1 {
		t.Errorf("unexpected spam count %d", sr.SpamCount)
	}

	// One record for the whole batch.
	if n := sess.HistoryLen(state.HistorySpam); n != 1 {
		t.Errorf("spam history = %d, want 1", n)
	}
}

func TestEveryOperationAppendsOneRecord(t *testing.T) {
	s := newTestService()
	sess := newTestSession()

	ops := []struct {
		kind state.HistoryKind
		run  func() Result
	}{
		{state.HistoryReading, func() Result { return s.ReadEmails(sess, "gmail", "unread") }},
		{state.HistoryReading, func() Result { return s.ReadEmails(sess, "yahoo", "") }},
		{state.HistorySummary, func() Result { return s.SummarizeEmails(sess, []string{"email_001"}) }},
		{state.HistorySummary, func() Result { return s.SummarizeEmails(sess, nil) }},
		{state.HistoryDraft, func() Result { return s.DraftEmail(sess, "a@b.com", "Hi", "Hello", "casual") }},
		{state.HistoryDraft, func() Result { return s.DraftEmail(sess, "a@b.com", "Hi", "Hello", "sarcastic") }},
		{state.HistoryExtractedEvents, func() Result { return s.ExtractCalendarEvents(sess, []string{"email_001"}) }},
		{state.HistoryAttachment, func() Result {
			return s.ManageAttachments(sess, AttachmentRequest{EmailID: "email_001", Action: "rename"})
		}},
		{state.HistoryUnanswered, func() Result { return s.TrackUnanswered(sess) }},
	}

	for i, op := range ops {
		before := sess.HistoryLen(op.kind)
		op.run()
		if got := sess.HistoryLen(op.kind); got != before+1 {
			t.Errorf("op %d (%s): history %d -> %d", i, op.kind, before, got)
		}
	}
}

func TestReadEmailsFilters(t *testing.T) {
	tests := []struct {
		filter string
		want   []string
	}{
		{"all", []string{"email_001", "email_002", "email_003", "email_004"}},
		{"", []string{"email_001", "email_002", "email_003", "email_004"}},
		{"unread", []string{"email_001", "email_002"}},
		{"urgent", []string{"email_001"}},
		{"promotional", []string{"email_002"}},
		{"most_recent", []string{"email_001"}},
	}
	s := newTestService()
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			res := s.ReadEmails(newTestSession(), "Gmail", tt.filter)
			rr, ok := res.(*ReadResult)
			if !ok {
				t.Fatalf("expected ReadResult, got %#v", res)
			}
			var ids []string
			for _, e := range rr.Emails {
				ids = append(ids, e.ID)
			}
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Errorf("ids (-want +got):\n%s", diff)
			}
			if rr.Count != len(tt.want) {
				t.Errorf("count = %d", rr.Count)
			}
		})
	}
}

func TestReadEmailsRejectsUnknownFilter(t *testing.T) {
	res := newTestService().ReadEmails(newTestSession(), "gmail", "starred")
	er, ok := res.(*ErrorResult)
	if !ok || er.Code != CodeInvalidParameters {
		t.Fatalf("expected invalid_parameters, got %#v", res)
	}
}

func TestSummarizeSkipsUnknownIDs(t *testing.T) {
	res := newTestService().SummarizeEmails(newTestSession(), []string{"missing", "email_001"})
	sr, ok := res.(*SummaryResult)
	if !ok {
		t.Fatalf("expected SummaryResult, got %T", res)
	}
	if sr.Count != 1 || sr.Summaries[0].EmailID != "email_001" {
		t.Errorf("summaries = %+v", sr.Summaries)
	}
	if diff := cmp.Diff([]string{"missing"}, sr.Missing); diff != "" {
		t.Errorf("missing (-want +got):\n%s", diff)
	}
	if got := sr.Summaries[0].ActionsRequired; !cmp.Equal(got, []string{"need your review"}) {
		t.Errorf("actions = %v", got)
	}
}

func TestDraftEmailTones(t *testing.T) {
	tests := []struct {
		tone string
		want string
	}{
		{"casual", "Hi Jane Doe!\n\nOn track\n\nCheers,\n[Your Name]"},
		{"", "Dear Jane Doe,\n\nOn track\n\nBest regards,\n[Your Name]"},
		{"empathetic", "Dear Jane Doe,\n\nI understand that On track\n\n" +
			"Please know that I'm here to support you through this process, and I'm committed to finding the best solution for everyone involved.\n\n" +
			"Warm regards,\n[Your Name]"},
	}
	s := newTestService()
	for _, tt := range tests {
		t.Run(tt.tone, func(t *testing.T) {
			res := s.DraftEmail(newTestSession(), "jane.doe@x.com", "Status", "On track", tt.tone)
			dr, ok := res.(*DraftResult)
			if !ok {
				t.Fatalf("expected DraftResult, got %#v", res)
			}
			if diff := cmp.Diff(tt.want, dr.Draft); diff != "" {
				t.Errorf("draft (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDraftEmailRejectsUnknownTone(t *testing.T) {
	sess := newTestSession()
	res := newTestService().DraftEmail(sess, "jane.doe@x.com", "Status", "On track", "sarcastic")
	if !Failed(res) {
		t.Fatalf("expected error result, got %#v", res)
	}
	if !strings.Contains(Summary(res), "sarcastic") {
		t.Errorf("message should name the tone: %q", Summary(res))
	}
}

func TestManageAttachments(t *testing.T) {
	s := newTestService()

	tests := []struct {
		name string
		req  AttachmentRequest
		want Result
	}{
		{
			name: "rename first",
			req:  AttachmentRequest{EmailID: "email_001", Action: "rename", NewName: "Report.pdf"},
			want: &AttachmentRenamed{
				Header:  ok("Attachment renamed from Q4_Report.pdf to Report.pdf"),
				EmailID: "email_001", OldName: "Q4_Report.pdf", NewName: "Report.pdf",
			},
		},
		{
			name: "rename named",
			req:  AttachmentRequest{EmailID: "email_001", Action: "rename", Attachment: "Project_Timeline.xlsx", NewName: "Timeline.xlsx"},
			want: &AttachmentRenamed{
				Header:  ok("Attachment renamed from Project_Timeline.xlsx to Timeline.xlsx"),
				EmailID: "email_001", OldName: "Project_Timeline.xlsx", NewName: "Timeline.xlsx",
			},
		},
		{
			name: "rename without name",
			req:  AttachmentRequest{EmailID: "email_001", Action: "rename"},
			want: invalid("What should the attachment be renamed to?"),
		},
		{
			name: "organize",
			req:  AttachmentRequest{EmailID: "email_001", Action: "organize", Folder: "Q4"},
			want: &AttachmentsOrganized{
				Header:      ok("Attachments organized into folder: Q4"),
				EmailID:     "email_001",
				Folder:      "Q4",
				Attachments: []string{"Q4_Report.pdf", "Project_Timeline.xlsx"},
			},
		},
		{
			name: "unknown email",
			req:  AttachmentRequest{EmailID: "email_999", Action: "describe"},
			want: unknown(`No email with id "email_999"`),
		},
		{
			name: "unknown action",
			req:  AttachmentRequest{EmailID: "email_001", Action: "zip"},
			want: invalid(`Unknown attachment action "zip"; use describe, rename or organize`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.ManageAttachments(newTestSession(), tt.req)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("result (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTrackUnanswered(t *testing.T) {
	res := newTestService().TrackUnanswered(newTestSession())
	ur, ok := res.(*UnansweredResult)
	if !ok {
		t.Fatalf("expected UnansweredResult, got %T", res)
	}

	want := []Unanswered{
		{
			EmailID: "email_001", Sender: "john.doe@company.com",
			Subject: "Q4 Project Update - Urgent Review Required", Date: "2024-01-15 09:30:00",
			DaysSinceReceived: 1, Priority: mail.PriorityHigh, Deadline: "2024-01-15 17:00:00",
		},
		{
			EmailID: "email_003", Sender: "sarah.wilson@client.com",
			Subject: "Follow-up: Contract Discussion", Date: "2024-01-14 16:45:00",
			DaysSinceReceived: 2, Priority: mail.PriorityMedium, Deadline: "2024-01-17 17:00:00",
		},
	}
	if diff := cmp.Diff(want, ur.Emails); diff != "" {
		t.Errorf("unanswered (-want +got):\n%s", diff)
	}
	if ur.UrgentCount != 1 {
		t.Errorf("urgent count = %d, want 1", ur.UrgentCount)
	}
}

func TestToolsExecuteJSON(t *testing.T) {
	s := newTestService()
	sess := newTestSession()

	byName := map[string]*Tool{}
	for _, tool := range s.Tools() {
		byName[tool.Name()] = tool
		if !json.Valid(tool.Parameters()) {
			t.Errorf("%s: invalid parameter schema", tool.Name())
		}
	}
	if len(byName) != 8 {
		t.Fatalf("expected 8 tools, got %d", len(byName))
	}

	out, err := byName["categorize_emails"].Execute(context.Background(), sess,
		json.RawMessage(`{"email_ids":["e1","e2","e3"],"categories":["work","work"]}`))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"status":"success","message":"Successfully categorized 2 emails","categorized_emails":{"e1":"work","e2":"work"},"skipped":["e3"]}`
	if out != want {
		t.Errorf("categorize output =\n%s\nwant\n%s", out, want)
	}

	out, err = byName["detect_spam"].Execute(context.Background(), sess, json.RawMessage(`{"ids":["x"]}`))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"code":"invalid_parameters"`) {
		t.Errorf("expected invalid_parameters for unknown field, got %s", out)
	}
	if sess.HistoryLen(state.HistorySpam) != 0 {
		t.Error("undecodable args must not append history")
	}

	out, err = byName["track_unanswered_emails"].Execute(context.Background(), sess, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"count":2`) {
		t.Errorf("unexpected unanswered output %s", out)
	}
}
