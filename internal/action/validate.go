package action

import (
	"errors"
	"fmt"
	"slices"

	"github.com/user/butler/internal/dialog"
)

type fieldError struct {
	field  string
	reason string
}

func (e *fieldError) Error() string { return fmt.Sprintf("%s: %s", e.field, e.reason) }

func required(field, v string) error {
	if v == "" {
		return &fieldError{field, "required"}
	}
	return nil
}

func timestamp(field, v string, optional bool) error {
	if v == "" {
		if optional {
			return nil
		}
		return &fieldError{field, "required"}
	}
	if !dialog.IsRFC3339(v) {
		return &fieldError{field, fmt.Sprintf("%q is not RFC3339", v)}
	}
	return nil
}

func address(field, v string) error {
	if !dialog.IsAddress(v) {
		return &fieldError{field, fmt.Sprintf("%q is not an email address", v)}
	}
	return nil
}

func oneOf(field, v string, choices ...string) error {
	if !slices.Contains(choices, v) {
		return &fieldError{field, fmt.Sprintf("%q is not allowed", v)}
	}
	return nil
}

func nonNegative(field string, v int) error {
	if v < 0 {
		return &fieldError{field, "must not be negative"}
	}
	return nil
}

func (r ReadEmails) validate() error {
	return errors.Join(
		oneOf("platform", r.Platform, "gmail", "outlook"),
		oneOf("filter", r.Filter, "most_recent", "unread", "all"),
	)
}

func (r SendEmail) validate() error {
	return errors.Join(
		address("recipient", r.Recipient),
		required("subject", r.Subject),
		required("content", r.Content),
		oneOf("tone", r.Tone, dialog.Tones...),
	)
}

func (r ReplyEmail) validate() error {
	return errors.Join(
		required("threadId", r.ThreadID),
		required("content", r.Content),
	)
}

func (r CreateEvent) validate() error {
	errs := []error{
		required("title", r.Title),
		timestamp("start", r.Start, false),
		timestamp("end", r.End, false),
	}
	for _, a := range r.Attendees {
		errs = append(errs, address("attendees", a))
	}
	return errors.Join(errs...)
}

func (r DeleteEvent) validate() error { return required("eventId", r.EventID) }

func (r ListEvents) validate() error {
	return errors.Join(
		timestamp("timeMin", r.TimeMin, true),
		timestamp("timeMax", r.TimeMax, true),
	)
}

func (r ListDriveFiles) validate() error { return nonNegative("pageSize", r.PageSize) }

func (r ListTasks) validate() error { return nonNegative("maxResults", r.MaxResults) }

func (r CreateTask) validate() error {
	return errors.Join(
		required("title", r.Title),
		timestamp("due", r.Due, true),
	)
}

func (r CompleteTask) validate() error { return required("taskId", r.TaskID) }

func (r DeleteTask) validate() error { return required("taskId", r.TaskID) }

// Validate checks r against its action's field rules.
func Validate(r Record) error { return r.validate() }
