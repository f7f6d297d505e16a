package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/user/butler/internal/runtime"
	"github.com/user/butler/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestQueueConcurrency(t *testing.T) {
	queue := NewQueue(2)
	queue.Start(context.Background())
	defer queue.Stop()

	var running, maxSeen int32
	var wg sync.WaitGroup
	queue.SetProcessor(func(run *Run) (runtime.Reply, error) {
		current := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&maxSeen)
			if current <= old || atomic.CompareAndSwapInt32(&maxSeen, old, current) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return runtime.Reply{}, nil
	})

	for i := 0; i < 5; i++ {
		run := NewRun(types.SessionID(fmt.Sprintf("session-%d", i)), nil)
		wg.Add(1)
		run.OnComplete = func(runtime.Reply, error) { wg.Done() }
		if err := queue.Enqueue(run); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()

	if m := atomic.LoadInt32(&maxSeen); m > 2 {
		t.Errorf("expected max 2 concurrent, saw %d", m)
	}
}

func TestQueueSameSessionOrdering(t *testing.T) {
	queue := NewQueue(4)
	queue.Start(context.Background())
	defer queue.Stop()

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	queue.SetProcessor(func(run *Run) (runtime.Reply, error) {
		mu.Lock()
		order = append(order, run.Message.Text)
		n := len(order)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		return runtime.Reply{}, nil
	})

	sessionID := types.SessionID("same-session")
	want := []string{"first", "second", "third"}
	for _, text := range want {
		if err := queue.Enqueue(NewRun(sessionID, &types.InboundMessage{Text: text})); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for runs to process")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != want[i] {
			t.Errorf("expected order[%d] = %q, got %q", i, want[i], v)
		}
	}
}

func TestQueueFailureReply(t *testing.T) {
	queue := NewQueue(1)
	queue.Start(context.Background())
	defer queue.Stop()

	boom := errors.New("boom")
	queue.SetProcessor(func(*Run) (runtime.Reply, error) { return runtime.Reply{}, boom })

	done := make(chan struct{})
	run := NewRun("s", nil)
	var got runtime.Reply
	var gotErr error
	run.OnComplete = func(r runtime.Reply, err error) {
		got, gotErr = r, err
		close(done)
	}
	if err := queue.Enqueue(run); err != nil {
		t.Fatal(err)
	}
	<-done

	if !errors.Is(gotErr, boom) || got.Text != failureText {
		t.Errorf("unexpected completion: %+v, %v", got, gotErr)
	}
	if run.Status != RunStatusFailed || run.EndedAt == nil {
		t.Errorf("run not marked failed: %+v", run)
	}
}

func TestQueueNoProcessor(t *testing.T) {
	queue := NewQueue(1)
	queue.Start(context.Background())
	defer queue.Stop()

	done := make(chan struct{})
	run := NewRun("no-proc", nil)
	run.OnComplete = func(runtime.Reply, error) { close(done) }
	if err := queue.Enqueue(run); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run without processor never completed")
	}
}

func TestQueueEnqueueAfterStop(t *testing.T) {
	queue := NewQueue(1)
	queue.Start(context.Background())
	queue.Stop()

	if err := queue.Enqueue(NewRun("late", nil)); !errors.Is(err, ErrQueueStopped) {
		t.Errorf("expected ErrQueueStopped, got %v", err)
	}
}
