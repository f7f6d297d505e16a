package dialog

import (
	"fmt"
	"strings"
)

// Preview renders the values awaiting approval the way the user sees them
// before confirming.
func Preview(set *SlotSet) string {
	var b strings.Builder
	switch set.Intent() {
	case IntentComposeSend:
		fmt.Fprintf(&b, "To: %s\nSubject: %s\nTone: %s\n---\n%s",
			set.String("recipient"), set.String("subject"), set.String("tone"), set.String("body"))
		b.WriteString("\n\nSend now?")
	case IntentReplyEmail:
		fmt.Fprintf(&b, "Reply to: %s\n---\n%s", set.String("threadId"), set.String("body"))
		b.WriteString("\n\nSend this reply?")
	case IntentCreateEvent:
		fmt.Fprintf(&b, "Event: %s\nStart: %s\nEnd: %s", set.String("title"), set.String("start"), set.String("end"))
		if v, ok := set.Value("attendees"); ok {
			fmt.Fprintf(&b, "\nAttendees: %s", strings.Join(v.([]string), ", "))
		}
		if d := set.String("description"); d != "" {
			fmt.Fprintf(&b, "\n---\n%s", d)
		}
		b.WriteString("\n\nAdd it to your calendar?")
	case IntentDeleteEvent:
		fmt.Fprintf(&b, "Delete event %s?", set.String("eventId"))
	default:
		for _, name := range set.Filled() {
			v, _ := set.Value(name)
			fmt.Fprintf(&b, "%s: %v\n", name, v)
		}
		b.WriteString("\nGo ahead?")
	}
	return b.String()
}
