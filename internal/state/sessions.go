// internal/state/sessions.go
package state

import (
	"context"
	"sync"
	"time"

	"github.com/user/butler/internal/types"
)

// Sessions maps session keys to live Session objects. Identity comes from
// the index; session contents live in memory for the life of the process.
type Sessions struct {
	index types.SessionIndexStore
	now   func() time.Time

	mu   sync.Mutex
	live map[types.SessionID]*Session
}

// NewSessions creates a registry over index.
func NewSessions(index types.SessionIndexStore) *Sessions {
	return &Sessions{
		index: index,
		now:   time.Now,
		live:  make(map[types.SessionID]*Session),
	}
}

// ResolveOrCreate returns the live session for key, starting one if needed.
func (s *Sessions) ResolveOrCreate(ctx context.Context, key types.SessionKey) (*Session, error) {
	id, err := s.index.ResolveOrCreate(ctx, key)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.live[id]; ok {
		return sess, nil
	}
	sess := NewSession(id, key, s.now().UTC())
	s.live[id] = sess
	return sess, nil
}

// Get returns the live session for id. A session known to the index but
// not yet seen by this process starts empty.
func (s *Sessions) Get(ctx context.Context, id types.SessionID) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.live[id]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}

	entry, err := s.index.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.live[id]; ok {
		return sess, nil
	}
	sess = NewSession(entry.SessionID, entry.SessionKey, entry.CreatedAt)
	s.live[id] = sess
	return sess, nil
}

// List returns every indexed session.
func (s *Sessions) List(ctx context.Context) ([]*types.SessionIndex, error) {
	return s.index.List(ctx)
}

// Touch records the last turn and journal position of a session.
func (s *Sessions) Touch(ctx context.Context, id types.SessionID, turn types.TurnID, seq int64) error {
	entry, err := s.index.Get(ctx, id)
	if err != nil {
		return err
	}
	entry.LastTurnID = turn
	if seq > entry.LastEventSeq {
		entry.LastEventSeq = seq
	}
	return s.index.Update(ctx, entry)
}
