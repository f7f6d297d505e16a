// internal/state/index.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/user/butler/internal/types"
)

// Index is a JSON-file-backed session index.
// It stores one entry per session key in sessions/sessions.json and creates
// per-session directories at sessions/<sessionID>/.
type Index struct {
	root string
	mu   sync.RWMutex
	now  func() time.Time
}

// NewIndex creates a file-backed Index rooted at the given directory.
func NewIndex(root string) *Index {
	return &Index{root: root, now: time.Now}
}

func (s *Index) indexPath() string {
	return filepath.Join(s.root, "sessions", "sessions.json")
}

func (s *Index) sessionsDir() string {
	return filepath.Join(s.root, "sessions")
}

func (s *Index) sessionDir(id types.SessionID) string {
	return filepath.Join(s.root, "sessions", string(id))
}

func (s *Index) load() (map[types.SessionKey]*types.SessionIndex, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[types.SessionKey]*types.SessionIndex), nil
		}
		return nil, fmt.Errorf("read session index: %w", err)
	}

	var sessions []*types.SessionIndex
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("unmarshal session index: %w", err)
	}

	index := make(map[types.SessionKey]*types.SessionIndex, len(sessions))
	for _, sess := range sessions {
		index[sess.SessionKey] = sess
	}
	return index, nil
}

// sorted returns the entries oldest first so the file is stable across writes.
func sorted(index map[types.SessionKey]*types.SessionIndex) []*types.SessionIndex {
	sessions := make([]*types.SessionIndex, 0, len(index))
	for _, sess := range index {
		sessions = append(sessions, sess)
	}
	slices.SortFunc(sessions, func(a, b *types.SessionIndex) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(string(a.SessionKey), string(b.SessionKey))
	})
	return sessions
}

func (s *Index) save(index map[types.SessionKey]*types.SessionIndex) error {
	data, err := json.MarshalIndent(sorted(index), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session index: %w", err)
	}

	if err := os.MkdirAll(s.sessionsDir(), 0o755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}

	// Atomic write: write to temp file then rename
	tmp := s.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := os.Rename(tmp, s.indexPath()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp index: %w", err)
	}
	return nil
}

// ResolveOrCreate returns the SessionID for the given key, creating a new session if needed.
func (s *Index) ResolveOrCreate(_ context.Context, key types.SessionKey) (types.SessionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.load()
	if err != nil {
		return "", err
	}

	if existing, ok := index[key]; ok {
		return existing.SessionID, nil
	}

	now := s.now().UTC()
	id := types.NewSessionID()
	index[key] = &types.SessionIndex{
		SessionID:  id,
		SessionKey: key,
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.save(index); err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.sessionDir(id), 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}

	return id, nil
}

// Get returns the session with the given ID.
func (s *Index) Get(_ context.Context, id types.SessionID) (*types.SessionIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.load()
	if err != nil {
		return nil, err
	}

	for _, sess := range index {
		if sess.SessionID == id {
			return sess, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

// List returns all sessions, oldest first.
func (s *Index) List(_ context.Context) ([]*types.SessionIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.load()
	if err != nil {
		return nil, err
	}
	return sorted(index), nil
}

// Update persists changes to the given session, setting UpdatedAt to now.
func (s *Index) Update(_ context.Context, session *types.SessionIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := index[session.SessionKey]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, session.SessionKey)
	}

	session.UpdatedAt = s.now().UTC()
	index[session.SessionKey] = session

	return s.save(index)
}
