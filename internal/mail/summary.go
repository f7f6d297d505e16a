package mail

import (
	"time"

	"github.com/user/butler/internal/extract"
)

// PreviewLimit is the number of characters kept in a summary preview.
// Downstream consumers depend on this exact value.
const PreviewLimit = 200

const previewEllipsis = "..."

// EmailSummary is derived from an Email plus extraction results.
type EmailSummary struct {
	EmailID          string     `json:"email_id"`
	Sender           string     `json:"sender"`
	SenderEmail      string     `json:"sender_email"`
	Date             time.Time  `json:"date"`
	Subject          string     `json:"subject"`
	Priority         Priority   `json:"priority"`
	Category         string     `json:"category"`
	MainContent      string     `json:"main_content"`
	Keywords         []string   `json:"keywords"`
	ActionsRequired  []string   `json:"actions_required"`
	Deadlines        []string   `json:"deadlines"`
	HasAttachments   bool       `json:"has_attachments"`
	Attachments      []string   `json:"attachments"`
	RequiresResponse bool       `json:"requires_response"`
	Deadline         *time.Time `json:"deadline,omitempty"`
}

// Preview truncates text to PreviewLimit characters, appending an
// ellipsis only when something was cut.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewLimit {
		return text
	}
	return string(runes[:PreviewLimit]) + previewEllipsis
}

// Summarize builds the summary for e using x over its plain-text body.
func Summarize(e Email, x extract.Extractor) (EmailSummary, error) {
	body, err := PlainText(e)
	if err != nil {
		return EmailSummary{}, err
	}
	found := extract.Analyze(x, body)
	return EmailSummary{
		EmailID:          e.ID,
		Sender:           e.SenderName,
		SenderEmail:      e.Sender,
		Date:             e.ReceivedAt,
		Subject:          e.Subject,
		Priority:         e.Priority,
		Category:         e.Category,
		MainContent:      Preview(body),
		Keywords:         found.Keywords,
		ActionsRequired:  found.Actions,
		Deadlines:        found.Deadlines,
		HasAttachments:   len(e.Attachments) > 0,
		Attachments:      e.AttachmentNames(),
		RequiresResponse: e.RequiresResponse,
		Deadline:         e.Deadline,
	}, nil
}
