package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/butler/internal/metrics"
	"github.com/user/butler/internal/runtime"
	"github.com/user/butler/internal/types"
)

// ErrQueueStopped is returned by Enqueue after Stop.
var ErrQueueStopped = errors.New("queue stopped")

const failureText = "Sorry, something went wrong processing your message."

// Processor handles one dequeued Run.
type Processor func(*Run) (runtime.Reply, error)

// Queue manages per-session lanes with a global concurrency semaphore.
// Each session gets its own FIFO channel (lane) so that turns within a
// session are processed sequentially, while the semaphore limits the
// total number of concurrent processors across all sessions.
type Queue struct {
	lanes     map[types.SessionID]chan *Run
	semaphore *semaphore.Weighted
	processor Processor
	active    atomic.Int64
	stopped   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// NewQueue creates a Queue that allows up to maxConcurrent runs to execute
// simultaneously across all session lanes.
func NewQueue(maxConcurrent int64) *Queue {
	return &Queue{
		lanes:     make(map[types.SessionID]chan *Run),
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for in-flight
// processors to finish. Runs still buffered are completed with the context
// error.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	if !q.stopped {
		q.stopped = true
		for _, lane := range q.lanes {
			close(lane)
		}
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds a Run to the session's lane, creating the lane (and its
// goroutine) on first use. Returns an error if the lane's buffer is full.
func (q *Queue) Enqueue(run *Run) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return ErrQueueStopped
	}

	lane, exists := q.lanes[run.SessionID]
	if !exists {
		lane = make(chan *Run, 100)
		q.lanes[run.SessionID] = lane
		q.wg.Add(1)
		go q.processLane(lane)
	}

	select {
	case lane <- run:
		metrics.QueueDepth.Inc()
		return nil
	default:
		return fmt.Errorf("queue full for session %s", run.SessionID)
	}
}

// processLane drains a single session lane, acquiring a semaphore slot
// before running the processor synchronously. This keeps strict FIFO
// ordering within a session while the semaphore limits cross-session
// parallelism.
func (q *Queue) processLane(lane chan *Run) {
	defer q.wg.Done()
	for {
		select {
		case run, ok := <-lane:
			if !ok {
				return
			}
			metrics.QueueDepth.Dec()
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				run.finish(runtime.Reply{}, err)
				q.drain(lane)
				return
			}
			q.run(run)
			q.semaphore.Release(1)
		case <-q.ctx.Done():
			q.drain(lane)
			return
		}
	}
}

func (q *Queue) run(run *Run) {
	if q.processor == nil {
		run.finish(runtime.Reply{TurnID: run.ID}, nil)
		return
	}
	q.active.Add(1)
	defer q.active.Add(-1)

	run.Ctx = q.ctx
	run.start()
	reply, err := q.processor(run)
	if err != nil {
		slog.Error("turn failed", "turn_id", string(run.ID), "session_id", string(run.SessionID), "error", err)
		reply = runtime.Reply{TurnID: run.ID, Text: failureText}
	}
	run.finish(reply, err)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ObserveTurn(status, run.elapsed())
}

// drain completes whatever is still buffered once the queue shuts down.
func (q *Queue) drain(lane chan *Run) {
	for {
		select {
		case run, ok := <-lane:
			if !ok {
				return
			}
			metrics.QueueDepth.Dec()
			run.finish(runtime.Reply{}, q.ctx.Err())
		default:
			return
		}
	}
}

// WaitIdle blocks until no runs are actively being processed, or the timeout
// expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// SetProcessor sets the function invoked for each dequeued Run.
func (q *Queue) SetProcessor(fn Processor) {
	q.processor = fn
}
