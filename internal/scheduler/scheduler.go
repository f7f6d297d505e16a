// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/user/butler/internal/runtime"
	"github.com/user/butler/internal/runtime/tools"
	"github.com/user/butler/internal/state"
	"github.com/user/butler/internal/types"
)

// Advancer applies a proposal within a session's turn order.
type Advancer interface {
	Advance(ctx context.Context, key types.SessionKey, p runtime.Proposal) (runtime.Reply, error)
}

// Deliverer pushes a reminder's report to wherever the session's host
// listens.
type Deliverer interface {
	Deliver(ctx context.Context, sessionKey, report string) error
}

// Scheduler evaluates cron expressions from the reminder store and runs the
// unanswered-mail check for each enabled reminder.
type Scheduler struct {
	store   *state.ReminderStore
	target  Advancer
	deliver Deliverer
	cron    *cron.Cron
	ctx     context.Context
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule reports whether expr is a schedule the scheduler accepts.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

// New creates a Scheduler backed by the given reminder store. With a nil
// deliver, reports are only logged and left in the session journal.
func New(store *state.ReminderStore, target Advancer, deliver Deliverer) *Scheduler {
	return &Scheduler{
		store:   store,
		target:  target,
		deliver: deliver,
		cron:    cron.New(cron.WithParser(cronParser)),
	}
}

// Fire runs the reminder's check once in its session.
func Fire(ctx context.Context, target Advancer, r *state.Reminder) (runtime.Reply, error) {
	return target.Advance(ctx, types.SessionKey(r.SessionKey), runtime.Proposal{
		Tool:   tools.TrackUnansweredTool,
		CallID: "reminder:" + r.Name,
	})
}

// Start loads reminders from the store, registers the enabled ones as cron
// entries, and starts the cron ticker. Jobs stop firing once ctx ends.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	reminders, err := s.store.List()
	if err != nil {
		return err
	}

	for _, r := range reminders {
		if r.Schedule == "" || !r.Enabled {
			continue
		}
		_, err := s.cron.AddFunc(r.Schedule, func() { s.fire(r) })
		if err != nil {
			slog.Error("invalid cron schedule", "name", r.Name, "schedule", r.Schedule, "error", err)
			continue
		}
		slog.Info("scheduled reminder", "name", r.Name, "schedule", r.Schedule)
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) fire(r *state.Reminder) {
	if s.ctx.Err() != nil {
		return
	}
	slog.Info("cron firing reminder", "name", r.Name, "session_key", r.SessionKey)
	reply, err := Fire(s.ctx, s.target, r)
	if err != nil {
		slog.Error("reminder failed", "name", r.Name, "error", err)
		return
	}
	slog.Debug("reminder result", "name", r.Name, "result", reply.Text)
	if s.deliver == nil {
		return
	}
	if err := s.deliver.Deliver(s.ctx, r.SessionKey, reply.Body()); err != nil {
		slog.Error("reminder delivery failed", "name", r.Name, "session_key", r.SessionKey, "error", err)
	}
}

// Reload stops the existing cron, creates a new one, and starts it again.
func (s *Scheduler) Reload(ctx context.Context) error {
	s.cron.Stop()
	s.cron = cron.New(cron.WithParser(cronParser))
	return s.Start(ctx)
}

// Stop stops the cron ticker and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
