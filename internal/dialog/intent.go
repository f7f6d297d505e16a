// Package dialog tracks, per intent, which slots a conversation has filled
// and decides when the intent is ready to be emitted as an action.
package dialog

// IntentKind names what the user is working toward.
type IntentKind string

const (
	IntentReadEmails     IntentKind = "read_emails"
	IntentComposeSend    IntentKind = "compose_send"
	IntentReplyEmail     IntentKind = "reply_email"
	IntentCreateEvent    IntentKind = "create_event"
	IntentDeleteEvent    IntentKind = "delete_event"
	IntentListEvents     IntentKind = "list_events"
	IntentListDriveFiles IntentKind = "list_drive_files"
	IntentListTasks      IntentKind = "list_tasks"
	IntentCreateTask     IntentKind = "create_task"
	IntentCompleteTask   IntentKind = "complete_task"
	IntentDeleteTask     IntentKind = "delete_task"
)

// SlotType fixes the shape a slot value is normalized to.
type SlotType int

const (
	SlotText        SlotType = iota // string
	SlotAddress                     // string, bare email address
	SlotAddressList                 // []string of bare email addresses
	SlotTime                        // string, RFC3339
	SlotInt                         // int, positive
	SlotBool                        // bool
	SlotEnum                        // string, one of Choices
)

// SlotSpec declares one slot of an intent.
type SlotSpec struct {
	Name     string
	Type     SlotType
	Required bool
	Choices  []string

	// Default is substituted at readiness-check time, never at merge time.
	Default string

	// Ask means the default is only used after the user was asked once and
	// moved on without choosing.
	Ask bool

	// Prompt is the follow-up question when the slot is missing.
	Prompt string
}

func (s SlotSpec) hasDefault() bool { return s.Default != "" }

// Schema is the slot layout of an intent. Required slots appear in
// elicitation order.
type Schema struct {
	Intent        IntentKind
	Slots         []SlotSpec
	NeedsApproval bool
}

// Required returns the required slots in elicitation order.
func (s *Schema) Required() []SlotSpec {
	var out []SlotSpec
	for _, spec := range s.Slots {
		if spec.Required {
			out = append(out, spec)
		}
	}
	return out
}

// Slot looks up a slot by name.
func (s *Schema) Slot(name string) (SlotSpec, bool) {
	for _, spec := range s.Slots {
		if spec.Name == name {
			return spec, true
		}
	}
	return SlotSpec{}, false
}

// Tones accepted by compose flows.
var Tones = []string{"professional", "casual", "persuasive", "empathetic"}

var schemas = map[IntentKind]*Schema{
	IntentReadEmails: {
		Intent: IntentReadEmails,
		Slots: []SlotSpec{
			{Name: "platform", Type: SlotEnum, Required: true, Choices: []string{"gmail", "outlook"}, Default: "gmail",
				Prompt: "Which mailbox, Gmail or Outlook?"},
			{Name: "filter", Type: SlotEnum, Required: true, Choices: []string{"most_recent", "unread", "all"}, Default: "most_recent",
				Prompt: "Most recent, unread, or all messages?"},
		},
	},
	IntentComposeSend: {
		Intent:        IntentComposeSend,
		NeedsApproval: true,
		Slots: []SlotSpec{
			{Name: "recipient", Type: SlotAddress, Required: true, Prompt: "Who should I send it to?"},
			{Name: "subject", Type: SlotText, Required: true, Prompt: "What's the subject?"},
			{Name: "body", Type: SlotText, Required: true, Prompt: "What should the message say?"},
			{Name: "tone", Type: SlotEnum, Required: true, Choices: Tones, Default: "professional", Ask: true,
				Prompt: "Which tone: professional, casual, persuasive, or empathetic?"},
		},
	},
	IntentReplyEmail: {
		Intent:        IntentReplyEmail,
		NeedsApproval: true,
		Slots: []SlotSpec{
			{Name: "threadId", Type: SlotText, Required: true, Prompt: "Which message are you replying to?"},
			{Name: "body", Type: SlotText, Required: true, Prompt: "What should the reply say?"},
			{Name: "messageId", Type: SlotText},
		},
	},
	IntentCreateEvent: {
		Intent:        IntentCreateEvent,
		NeedsApproval: true,
		Slots: []SlotSpec{
			{Name: "title", Type: SlotText, Required: true, Prompt: "What's the event called?"},
			{Name: "start", Type: SlotTime, Required: true, Prompt: "When does it start?"},
			{Name: "end", Type: SlotTime, Required: true, Prompt: "When does it end?"},
			{Name: "attendees", Type: SlotAddressList},
			{Name: "description", Type: SlotText},
		},
	},
	IntentDeleteEvent: {
		Intent:        IntentDeleteEvent,
		NeedsApproval: true,
		Slots: []SlotSpec{
			{Name: "eventId", Type: SlotText, Required: true, Prompt: "Which event should I remove?"},
		},
	},
	IntentListEvents: {
		Intent: IntentListEvents,
		Slots: []SlotSpec{
			{Name: "timeMin", Type: SlotTime},
			{Name: "timeMax", Type: SlotTime},
			{Name: "q", Type: SlotText},
		},
	},
	IntentListDriveFiles: {
		Intent: IntentListDriveFiles,
		Slots: []SlotSpec{
			{Name: "pageSize", Type: SlotInt},
		},
	},
	IntentListTasks: {
		Intent: IntentListTasks,
		Slots: []SlotSpec{
			{Name: "maxResults", Type: SlotInt},
			{Name: "showCompleted", Type: SlotBool},
		},
	},
	IntentCreateTask: {
		Intent: IntentCreateTask,
		Slots: []SlotSpec{
			{Name: "title", Type: SlotText, Required: true, Prompt: "What's the task?"},
			{Name: "due", Type: SlotTime},
			{Name: "notes", Type: SlotText},
		},
	},
	IntentCompleteTask: {
		Intent: IntentCompleteTask,
		Slots: []SlotSpec{
			{Name: "taskId", Type: SlotText, Required: true, Prompt: "Which task did you finish?"},
		},
	},
	IntentDeleteTask: {
		Intent: IntentDeleteTask,
		Slots: []SlotSpec{
			{Name: "taskId", Type: SlotText, Required: true, Prompt: "Which task should I delete?"},
		},
	},
}

// Lookup returns the schema for kind.
func Lookup(kind IntentKind) (*Schema, bool) {
	s, ok := schemas[kind]
	return s, ok
}

// Intents lists every known intent kind.
func Intents() []IntentKind {
	return []IntentKind{
		IntentReadEmails, IntentComposeSend, IntentReplyEmail,
		IntentCreateEvent, IntentDeleteEvent, IntentListEvents,
		IntentListDriveFiles, IntentListTasks, IntentCreateTask,
		IntentCompleteTask, IntentDeleteTask,
	}
}
