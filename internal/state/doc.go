// Package state holds per-conversation session state in memory and the
// filesystem-backed index, journal, outbox and reminder stores around it.
package state

import (
	"errors"

	"github.com/user/butler/internal/dialog"
	"github.com/user/butler/internal/types"
)

// ErrSessionNotFound is returned when no session matches an id or key.
var ErrSessionNotFound = errors.New("session not found")

// Compile-time interface compliance checks.
var _ types.SessionIndexStore = (*Index)(nil)
var _ types.EventStore = (*Journal)(nil)
var _ dialog.SlotStore = (*Session)(nil)
