// internal/state/journal.go
package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/butler/internal/types"
)

// Journal is a JSONL-backed append-only log of everything a session saw.
// Events are stored per-session in sessions/<sessionID>/journal.jsonl.
type Journal struct {
	root  string
	mu    sync.Mutex
	locks map[types.SessionID]*sync.Mutex
}

// NewJournal creates a file-backed Journal rooted at the given directory.
func NewJournal(root string) *Journal {
	return &Journal{
		root:  root,
		locks: make(map[types.SessionID]*sync.Mutex),
	}
}

func (j *Journal) lock(sessionID types.SessionID) *sync.Mutex {
	j.mu.Lock()
	defer j.mu.Unlock()

	if lock, ok := j.locks[sessionID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	j.locks[sessionID] = lock
	return lock
}

// Path returns the journal file of a session.
func (j *Journal) Path(sessionID types.SessionID) string {
	return filepath.Join(j.root, "sessions", string(sessionID), "journal.jsonl")
}

// count reads the journal and counts lines. Caller must hold the session lock.
func (j *Journal) count(sessionID types.SessionID) (int64, error) {
	f, err := os.Open(j.Path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan journal: %w", err)
	}
	return count, nil
}

// Append adds an event to the session's journal with an auto-incremented sequence number.
func (j *Journal) Append(_ context.Context, event *types.Event) error {
	lock := j.lock(event.SessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.Path(event.SessionID)), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	existing, err := j.count(event.SessionID)
	if err != nil {
		return err
	}
	event.Seq = existing + 1

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	f, err := os.OpenFile(j.Path(event.SessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Tail returns the last limit events for the session, or all of them when
// limit is not positive.
func (j *Journal) Tail(_ context.Context, sessionID types.SessionID, limit int) ([]*types.Event, error) {
	lock := j.lock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(j.Path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	events, err := DecodeEvents(f)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

// Count returns the number of events for the given session.
func (j *Journal) Count(_ context.Context, sessionID types.SessionID) (int64, error) {
	lock := j.lock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	return j.count(sessionID)
}

const maxEventSize = 4 * 1024 * 1024

// DecodeEvents reads a JSONL journal stream. Blank lines are skipped.
func DecodeEvents(r io.Reader) ([]*types.Event, error) {
	var events []*types.Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var event types.Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return nil, fmt.Errorf("unmarshal event on line %d: %w", line, err)
		}
		events = append(events, &event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return events, nil
}
