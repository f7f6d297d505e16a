package dialog

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameters marks a proposal the controller refused to merge.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrUnknownIntent is returned for an intent kind with no schema.
	ErrUnknownIntent = errors.New("unknown intent")
)

// SlotError explains why a proposed slot value was rejected.
type SlotError struct {
	Intent IntentKind
	Slot   string
	Reason string
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("%s: slot %q: %s", e.Intent, e.Slot, e.Reason)
}

func (e *SlotError) Unwrap() error { return ErrInvalidParameters }
