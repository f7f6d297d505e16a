// internal/state/outbox.go
package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/user/butler/internal/action"
	"github.com/user/butler/internal/types"
)

// ErrEmissionNotFound is returned when no stored emission matches an id.
var ErrEmissionNotFound = errors.New("emission not found")

// Outbox stores emitted actions for the host to collect, one JSON file per
// emission at sessions/<sessionID>/outbox/<emissionID>.json.
type Outbox struct {
	root string
}

// NewOutbox creates a file-backed Outbox rooted at the given directory.
func NewOutbox(root string) *Outbox {
	return &Outbox{root: root}
}

func (o *Outbox) dir(sessionID types.SessionID) string {
	return filepath.Join(o.root, "sessions", string(sessionID), "outbox")
}

func (o *Outbox) path(sessionID types.SessionID, id types.EmissionID) string {
	return filepath.Join(o.dir(sessionID), string(id)+".json")
}

// Put stores an emission.
func (o *Outbox) Put(_ context.Context, sessionID types.SessionID, em action.Emission) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(em); err != nil {
		return fmt.Errorf("marshal emission: %w", err)
	}
	content := buf.Bytes()

	if err := os.MkdirAll(o.dir(sessionID), 0o755); err != nil {
		return fmt.Errorf("create outbox dir: %w", err)
	}

	// Atomic write via temp file + rename
	target := o.path(sessionID, em.ID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("write temp emission: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp emission: %w", err)
	}
	return nil
}

// Get finds an emission by id across all sessions.
func (o *Outbox) Get(_ context.Context, id types.EmissionID) (action.Emission, error) {
	pattern := filepath.Join(o.root, "sessions", "*", "outbox", string(id)+".json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return action.Emission{}, fmt.Errorf("glob emission: %w", err)
	}
	if len(matches) == 0 {
		return action.Emission{}, fmt.Errorf("%w: %s", ErrEmissionNotFound, id)
	}
	return readEmission(matches[0])
}

// List returns a session's emissions, oldest first.
func (o *Outbox) List(_ context.Context, sessionID types.SessionID) ([]action.Emission, error) {
	matches, err := filepath.Glob(filepath.Join(o.dir(sessionID), "*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob outbox: %w", err)
	}
	out := make([]action.Emission, 0, len(matches))
	for _, path := range matches {
		em, err := readEmission(path)
		if err != nil {
			return nil, err
		}
		out = append(out, em)
	}
	slices.SortStableFunc(out, func(a, b action.Emission) int { return a.At.Compare(b.At) })
	return out, nil
}

// Remove deletes an acknowledged emission.
func (o *Outbox) Remove(_ context.Context, sessionID types.SessionID, id types.EmissionID) error {
	if err := os.Remove(o.path(sessionID, id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrEmissionNotFound, id)
		}
		return fmt.Errorf("remove emission: %w", err)
	}
	return nil
}

func readEmission(path string) (action.Emission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return action.Emission{}, fmt.Errorf("read emission: %w", err)
	}
	var em action.Emission
	if err := json.Unmarshal(data, &em); err != nil {
		return action.Emission{}, fmt.Errorf("unmarshal emission: %w", err)
	}
	return em, nil
}
