package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/user/butler/internal/dialog"
	"github.com/user/butler/internal/runtime"
	"github.com/user/butler/internal/state"
	"github.com/user/butler/internal/types"
)

// echoEngine answers every turn with its own text.
type echoEngine struct{}

func (echoEngine) Propose(_ context.Context, req runtime.Request) (runtime.Proposal, error) {
	if req.Turn.Text == "fail" {
		return runtime.Proposal{}, errors.New("invalid request")
	}
	return runtime.Proposal{Say: "echo: " + req.Turn.Text}, nil
}

type fixture struct {
	gw       *Gateway
	sessions *state.Sessions
	journal  *state.Journal
	outbox   *state.Outbox
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	sessions := state.NewSessions(state.NewIndex(dir))
	journal := state.NewJournal(dir)
	outbox := state.NewOutbox(dir)
	rt := runtime.New(echoEngine{}, runtime.NewRegistry(), journal, 3)

	gw := New(sessions, rt, journal, outbox)
	gw.Start(context.Background())
	t.Cleanup(gw.Stop)
	return &fixture{gw: gw, sessions: sessions, journal: journal, outbox: outbox}
}

func inbound(key, text string) *types.InboundMessage {
	return &types.InboundMessage{
		Source:     "test",
		SessionKey: types.NewSessionKey("test", key),
		UserID:     "user1",
		Text:       text,
	}
}

func TestGatewaySubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.gw.Submit(ctx, inbound("123", "hello"))
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != "echo: hello" {
		t.Errorf("unexpected reply %+v", reply)
	}

	list, err := f.sessions.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 session, got %d", len(list))
	}
	if list[0].LastTurnID != reply.TurnID || list[0].LastEventSeq != 2 {
		t.Errorf("index not touched: %+v", list[0])
	}
}

func TestGatewaySameKeySharesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.gw.Submit(ctx, inbound("same-key", "msg")); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	list, err := f.sessions.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 session (same key), got %d", len(list))
	}
	n, err := f.journal.Count(ctx, list[0].SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 8 {
		t.Errorf("expected 8 journal events, got %d", n)
	}
}

func TestGatewayDifferentSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, key := range []string{"session-a", "session-b"} {
		if _, err := f.gw.Submit(ctx, inbound(key, "hello")); err != nil {
			t.Fatal(err)
		}
	}
	list, err := f.sessions.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(list))
	}
}

func TestGatewayFailureIsFriendly(t *testing.T) {
	f := newFixture(t)

	reply, err := f.gw.Submit(context.Background(), inbound("x", "fail"))
	if err == nil {
		t.Fatal("expected the engine error")
	}
	if reply.Text != failureText {
		t.Errorf("expected friendly text, got %q", reply.Text)
	}
}

func TestGatewayAdvanceStoresEmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := types.NewSessionKey("test", "advance")

	reply, err := f.gw.Advance(ctx, key, runtime.Proposal{
		Intent: dialog.IntentCreateTask,
		Slots:  map[string]any{"title": "File taxes"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Emission == nil {
		t.Fatalf("expected an emission, got %+v", reply)
	}

	sess, err := f.sessions.ResolveOrCreate(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	stored, err := f.outbox.List(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].Text() != reply.Emission.Text() {
		t.Errorf("outbox = %+v", stored)
	}
}

func TestGatewayRejectsTurnsBeforeStart(t *testing.T) {
	dir := t.TempDir()
	sessions := state.NewSessions(state.NewIndex(dir))
	gw := New(sessions, runtime.New(echoEngine{}, runtime.NewRegistry(), nil, 3), nil, nil)
	ctx := context.Background()

	if _, err := gw.Submit(ctx, inbound("early", "hi")); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Submit before Start = %v, want ErrNotStarted", err)
	}
	if _, err := gw.Advance(ctx, "test:early", runtime.Proposal{Intent: dialog.IntentListTasks}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Advance before Start = %v, want ErrNotStarted", err)
	}
	if _, err := gw.Snapshot(ctx, types.NewSessionID()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Snapshot before Start = %v, want ErrNotStarted", err)
	}
	if list, _ := sessions.List(ctx); len(list) != 0 {
		t.Errorf("no session should be created before Start, got %d", len(list))
	}
	gw.Stop()
}
