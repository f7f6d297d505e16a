// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/user/butler/internal/delivery"
	"github.com/user/butler/internal/runtime"
	"github.com/user/butler/internal/runtime/tools"
	"github.com/user/butler/internal/state"
	"github.com/user/butler/internal/types"
)

type recordingAdvancer struct {
	mu    sync.Mutex
	keys  []types.SessionKey
	props []runtime.Proposal
}

func (r *recordingAdvancer) Advance(_ context.Context, key types.SessionKey, p runtime.Proposal) (runtime.Reply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	r.props = append(r.props, p)
	return runtime.Reply{Text: `{"status":"success"}`}, nil
}

func (r *recordingAdvancer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

func newStore(t *testing.T, reminders ...*state.Reminder) *state.ReminderStore {
	t.Helper()
	store := state.NewReminderStore(filepath.Join(t.TempDir(), "reminders.json"))
	for _, r := range reminders {
		if err := store.Add(r); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func TestSchedulerFiresReminder(t *testing.T) {
	store := newStore(t, &state.Reminder{
		Name:       "every-second",
		Schedule:   "* * * * * *",
		SessionKey: "cli:alice",
		Enabled:    true,
	})
	target := &recordingAdvancer{}

	delivered := make(chan string, 8)
	reg := delivery.NewRegistry()
	reg.Register("cli:", func(_ context.Context, key, report string) error {
		delivered <- key + " " + report
		return nil
	})

	sched := New(store, target, reg)
	if err := sched.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	select {
	case got := <-delivered:
		if got != `cli:alice {"status":"success"}` {
			t.Errorf("delivered %q", got)
		}
	case <-time.After(2500 * time.Millisecond):
		t.Fatal("reminder report was not delivered within 2.5s")
	}

	deadline := time.After(2500 * time.Millisecond)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for target.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("reminder did not fire within 2.5s")
		case <-ticker.C:
		}
	}

	target.mu.Lock()
	defer target.mu.Unlock()
	if target.keys[0] != "cli:alice" {
		t.Errorf("fired for %q", target.keys[0])
	}
	if p := target.props[0]; p.Tool != tools.TrackUnansweredTool || p.CallID != "reminder:every-second" {
		t.Errorf("unexpected proposal %+v", p)
	}
}

func TestSchedulerSkipsDisabledAndUnscheduled(t *testing.T) {
	store := newStore(t,
		&state.Reminder{Name: "disabled", Schedule: "* * * * * *", SessionKey: "cli:a", Enabled: false},
		&state.Reminder{Name: "no-schedule", SessionKey: "cli:b", Enabled: true},
	)
	target := &recordingAdvancer{}

	sched := New(store, target, nil)
	if err := sched.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	time.Sleep(1500 * time.Millisecond)
	if n := target.count(); n != 0 {
		t.Errorf("expected 0 fires, got %d", n)
	}
}

func TestSchedulerStopsWithContext(t *testing.T) {
	store := newStore(t, &state.Reminder{Name: "r", Schedule: "* * * * * *", SessionKey: "cli:a", Enabled: true})
	target := &recordingAdvancer{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sched := New(store, target, nil)
	if err := sched.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	time.Sleep(1500 * time.Millisecond)
	if n := target.count(); n != 0 {
		t.Errorf("expected no fires after cancel, got %d", n)
	}
}

func TestValidateSchedule(t *testing.T) {
	for expr, ok := range map[string]bool{
		"0 9 * * 1-5":  true,
		"*/30 * * * *": true,
		"@daily":       true,
		"* * * * * *":  true,
		"every monday": false,
		"":             false,
	} {
		if err := ValidateSchedule(expr); (err == nil) != ok {
			t.Errorf("ValidateSchedule(%q) = %v, want ok=%v", expr, err, ok)
		}
	}
}
