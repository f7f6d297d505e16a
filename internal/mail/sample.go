package mail

import "time"

func at(s string) time.Time {
	t, err := time.Parse(time.DateTime, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func ptr[T any](v T) *T { return &v }

// SampleMailbox returns the built-in demo inbox used when no host data is
// attached to a session.
func SampleMailbox() *Mailbox {
	return NewMailbox(
		Email{
			ID:         "email_001",
			ThreadID:   "thread_001",
			Sender:     "john.doe@company.com",
			SenderName: "John Doe",
			Subject:    "Q4 Project Update - Urgent Review Required",
			ReceivedAt: at("2024-01-15 09:30:00"),
			Body: "Hi team, I need your review of the Q4 project deliverables by EOD today. " +
				"The client meeting is scheduled for tomorrow morning and we need to ensure all materials are ready. " +
				"Please prioritize this as it's critical for our quarterly review.",
			Priority: PriorityHigh,
			Category: "urgent",
			Attachments: []Attachment{
				{Name: "Q4_Report.pdf", Size: "2.5MB", Type: "PDF"},
				{Name: "Project_Timeline.xlsx", Size: "1.2MB", Type: "Excel"},
			},
			RequiresResponse: true,
			Deadline:         ptr(at("2024-01-15 17:00:00")),
			Unread:           true,
			Events: []CalendarEvent{{
				EmailID:     "email_001",
				Title:       "Q4 Project Review Meeting",
				Start:       at("2024-01-16 10:00:00"),
				End:         at("2024-01-16 11:00:00"),
				Attendees:   []string{"john.doe@company.com", "team@company.com"},
				Location:    "Conference Room A",
				Description: "Quarterly project review meeting with client",
			}},
		},
		Email{
			ID:         "email_002",
			ThreadID:   "thread_002",
			Sender:     "newsletter@techcompany.com",
			SenderName: "Tech Weekly Newsletter",
			Subject:    "This Week in AI: Latest Developments",
			ReceivedAt: at("2024-01-15 08:15:00"),
			Body: "This week's top AI news: New developments in machine learning, breakthrough in natural language processing, " +
				"and upcoming AI conferences. Read more about the latest trends and innovations in artificial intelligence.",
			Priority:    PriorityLow,
			Category:    "promotional",
			Attachments: []Attachment{},
			Unread:      true,
		},
		Email{
			ID:         "email_003",
			ThreadID:   "thread_003",
			Sender:     "sarah.wilson@client.com",
			SenderName: "Sarah Wilson",
			Subject:    "Follow-up: Contract Discussion",
			ReceivedAt: at("2024-01-14 16:45:00"),
			Body: "Hi, I wanted to follow up on our contract discussion from last week. " +
				"I'm still interested in moving forward with the project and would like to schedule a call to discuss the next steps. " +
				"When would be a good time for you?",
			Priority:         PriorityMedium,
			Category:         "follow-up",
			Attachments:      []Attachment{},
			RequiresResponse: true,
			Deadline:         ptr(at("2024-01-17 17:00:00")),
		},
		Email{
			ID:         "email_004",
			ThreadID:   "thread_004",
			Sender:     "maria.garcia@company.com",
			SenderName: "Maria Garcia",
			Subject:    "Design review moved",
			ReceivedAt: at("2024-01-13 11:20:00"),
			Body: "<p>Hi,</p><p>The <strong>design review</strong> meeting moved to Thursday at 2:00 PM.</p>" +
				"<p>Please confirm by January 17, 2024.</p>",
			HTML:             true,
			Priority:         PriorityMedium,
			Category:         "work",
			Attachments:      []Attachment{{Name: "Mockups_v3.fig", Size: "8.1MB", Type: "Figma"}},
			RequiresResponse: false,
			Events: []CalendarEvent{{
				EmailID:   "email_004",
				Title:     "Design Review",
				Start:     at("2024-01-18 14:00:00"),
				End:       at("2024-01-18 15:00:00"),
				Attendees: []string{"maria.garcia@company.com"},
				Location:  "Studio",
			}},
		},
	)
}
