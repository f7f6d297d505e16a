// internal/state/reminder.go
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrReminderNotFound is returned when no reminder has the given name.
var ErrReminderNotFound = errors.New("reminder not found")

// Reminder periodically checks a session's mailbox for messages still
// waiting on a reply.
type Reminder struct {
	Name       string `json:"name"`
	Schedule   string `json:"schedule"`
	SessionKey string `json:"session_key"`
	Enabled    bool   `json:"enabled"`
}

// ReminderStore is a JSON-file-backed store for reminders.
type ReminderStore struct {
	path string
	mu   sync.RWMutex
}

// NewReminderStore creates a file-backed ReminderStore at the given file path.
func NewReminderStore(path string) *ReminderStore {
	return &ReminderStore{path: path}
}

// Path returns the file path used by this store.
func (s *ReminderStore) Path() string {
	return s.path
}

// List returns all reminders. Returns an empty slice if the file doesn't exist.
func (s *ReminderStore) List() ([]*Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reminders, err := s.load()
	if err != nil {
		return nil, err
	}
	if reminders == nil {
		return []*Reminder{}, nil
	}
	return reminders, nil
}

// Get finds a reminder by name.
func (s *ReminderStore) Get(name string) (*Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reminders, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, r := range reminders {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrReminderNotFound, name)
}

// Add appends a reminder. Names are unique.
func (s *ReminderStore) Add(r *Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders, err := s.load()
	if err != nil {
		return err
	}
	for _, existing := range reminders {
		if existing.Name == r.Name {
			return fmt.Errorf("reminder already exists: %s", r.Name)
		}
	}
	return s.save(append(reminders, r))
}

// Remove deletes a reminder by name.
func (s *ReminderStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders, err := s.load()
	if err != nil {
		return err
	}
	for i, r := range reminders {
		if r.Name == name {
			return s.save(append(reminders[:i], reminders[i+1:]...))
		}
	}
	return fmt.Errorf("%w: %s", ErrReminderNotFound, name)
}

// SetEnabled toggles the enabled flag for a reminder.
func (s *ReminderStore) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders, err := s.load()
	if err != nil {
		return err
	}
	for _, r := range reminders {
		if r.Name == name {
			r.Enabled = enabled
			return s.save(reminders)
		}
	}
	return fmt.Errorf("%w: %s", ErrReminderNotFound, name)
}

func (s *ReminderStore) load() ([]*Reminder, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reminders file: %w", err)
	}

	var reminders []*Reminder
	if err := json.Unmarshal(data, &reminders); err != nil {
		return nil, fmt.Errorf("unmarshal reminders: %w", err)
	}
	return reminders, nil
}

// save writes the reminder list to disk using atomic write (temp file + rename).
func (s *ReminderStore) save(reminders []*Reminder) error {
	data, err := json.MarshalIndent(reminders, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal reminders: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create reminders dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp reminders file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp reminders file: %w", err)
	}
	return nil
}
