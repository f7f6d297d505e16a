package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/user/butler/internal/runtime"
	"github.com/user/butler/internal/state"
	"github.com/user/butler/internal/types"
)

// Gateway serializes turns per session. It resolves (or creates) the
// session, wraps each turn in a Run, and waits for the lane to answer.
type Gateway struct {
	sessions *state.Sessions
	runtime  *runtime.Runtime
	journal  types.EventStore
	outbox   *state.Outbox
	Queue    *Queue

	ctx    context.Context
	cancel context.CancelFunc
}

// ErrNotStarted is returned by turn entry points called before Start.
var ErrNotStarted = errors.New("gateway not started")

// New creates a Gateway with the given concurrency limit for simultaneous
// turn processing. journal and outbox may be nil.
func New(sessions *state.Sessions, rt *runtime.Runtime, journal types.EventStore, outbox *state.Outbox, maxConcurrent ...int64) *Gateway {
	var concurrency int64 = 2
	if len(maxConcurrent) > 0 && maxConcurrent[0] > 0 {
		concurrency = maxConcurrent[0]
	}
	g := &Gateway{
		sessions: sessions,
		runtime:  rt,
		journal:  journal,
		outbox:   outbox,
		Queue:    NewQueue(concurrency),
	}
	g.Queue.SetProcessor(g.process)
	return g
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context and stops the queue.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
}

// Sessions returns the session registry the gateway resolves against.
func (g *Gateway) Sessions() *state.Sessions { return g.sessions }

// Submit runs msg as a turn in its session's lane and waits for the reply.
func (g *Gateway) Submit(ctx context.Context, msg *types.InboundMessage) (runtime.Reply, error) {
	if g.ctx == nil {
		return runtime.Reply{}, ErrNotStarted
	}
	sess, err := g.sessions.ResolveOrCreate(ctx, msg.SessionKey)
	if err != nil {
		return runtime.Reply{}, fmt.Errorf("resolve session: %w", err)
	}
	return g.wait(ctx, NewRun(sess.ID, msg))
}

// Advance applies a synthetic proposal in the session's lane, bypassing the
// engine.
func (g *Gateway) Advance(ctx context.Context, key types.SessionKey, p runtime.Proposal) (runtime.Reply, error) {
	if g.ctx == nil {
		return runtime.Reply{}, ErrNotStarted
	}
	sess, err := g.sessions.ResolveOrCreate(ctx, key)
	if err != nil {
		return runtime.Reply{}, fmt.Errorf("resolve session: %w", err)
	}
	run := NewRun(sess.ID, nil)
	run.Proposal = &p
	return g.wait(ctx, run)
}

// Snapshot copies a session's state from within its lane, so it never
// observes a turn half applied.
func (g *Gateway) Snapshot(ctx context.Context, id types.SessionID) (state.Snapshot, error) {
	if g.ctx == nil {
		return state.Snapshot{}, ErrNotStarted
	}
	if _, err := g.sessions.Get(ctx, id); err != nil {
		return state.Snapshot{}, err
	}
	var snap state.Snapshot
	run := NewRun(id, nil)
	run.inspect = func(sess *state.Session) { snap = sess.Snapshot() }
	if _, err := g.wait(ctx, run); err != nil {
		return state.Snapshot{}, err
	}
	return snap, nil
}

type result struct {
	reply runtime.Reply
	err   error
}

func (g *Gateway) wait(ctx context.Context, run *Run) (runtime.Reply, error) {
	done := make(chan result, 1)
	run.OnComplete = func(reply runtime.Reply, err error) {
		done <- result{reply, err}
	}
	if err := g.Queue.Enqueue(run); err != nil {
		return runtime.Reply{}, err
	}

	select {
	case r := <-done:
		return r.reply, r.err
	case <-ctx.Done():
		return runtime.Reply{}, ctx.Err()
	case <-g.ctx.Done():
		return runtime.Reply{}, g.ctx.Err()
	}
}

func (g *Gateway) process(run *Run) (runtime.Reply, error) {
	ctx := run.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	sess, err := g.sessions.Get(ctx, run.SessionID)
	if err != nil {
		return runtime.Reply{}, fmt.Errorf("load session: %w", err)
	}

	if run.inspect != nil {
		run.inspect(sess)
		return runtime.Reply{}, nil
	}

	var reply runtime.Reply
	if run.Proposal != nil {
		reply, err = g.runtime.Apply(ctx, sess, *run.Proposal)
	} else {
		reply, err = g.runtime.Process(ctx, sess, run.Turn())
	}
	if err != nil {
		return runtime.Reply{}, err
	}

	if reply.Emission != nil && g.outbox != nil {
		if err := g.outbox.Put(ctx, sess.ID, *reply.Emission); err != nil {
			slog.Error("store emission", "session_id", sess.ID, "emission_id", reply.Emission.ID, "error", err)
		}
	}
	g.touch(ctx, sess.ID, reply.TurnID)
	return reply, nil
}

func (g *Gateway) touch(ctx context.Context, id types.SessionID, turn types.TurnID) {
	var seq int64
	if g.journal != nil {
		n, err := g.journal.Count(ctx, id)
		if err != nil {
			slog.Warn("count journal", "session_id", id, "error", err)
		}
		seq = n
	}
	if err := g.sessions.Touch(ctx, id, turn, seq); err != nil {
		slog.Warn("update session index", "session_id", id, "error", err)
	}
}
