package lockdown

import (
	"context"
	"sync"
	"testing"
	"time"

	"guildwarden/internal/modules/audit"
	"guildwarden/internal/storage"

	"go.uber.org/zap"
)

type fakeTimer struct {
	stopped bool
	fn      func()
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) AfterFunc(_ time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{fn: fn}
	f.timers = append(f.timers, t)
	return t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	pending := f.timers
	f.timers = nil
	f.mu.Unlock()
	for _, timer := range pending {
		if !timer.stopped {
			timer.fn()
		}
	}
}

type revertRecorder struct {
	mu    sync.Mutex
	calls []struct {
		guildID string
		gate    int
	}
}

func (r *revertRecorder) revert(_ context.Context, guildID string, gate int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, struct {
		guildID string
		gate    int
	}{guildID, gate})
}

func newTestEngine(t *testing.T) (*Engine, *storage.Store, *fakeClock, *revertRecorder) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	recorder := &revertRecorder{}
	engine := New(store, audit.NewLogger(store, zap.NewNop()), 10*time.Minute, recorder.revert)
	engine.WithClock(clock)
	return engine, store, clock, recorder
}

func TestTriggerAndAutoRevert(t *testing.T) {
	engine, store, clock, recorder := newTestEngine(t)
	ctx := context.Background()

	raised, err := engine.Trigger(ctx, "g1", 2)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if !raised || !engine.Active("g1") {
		t.Fatal("lockdown not raised")
	}

	persisted, err := store.ListActiveLockdowns(ctx)
	if err != nil {
		t.Fatalf("list lockdowns: %v", err)
	}
	if len(persisted) != 1 || persisted[0].PrevJoinGate != 2 {
		t.Fatalf("lockdown not persisted: %+v", persisted)
	}

	clock.Advance(10 * time.Minute)

	if engine.Active("g1") {
		t.Fatal("lockdown still active after deadline")
	}
	recorder.mu.Lock()
	calls := len(recorder.calls)
	recorder.mu.Unlock()
	if calls != 1 || recorder.calls[0].gate != 2 {
		t.Fatalf("revert calls: %+v", recorder.calls)
	}

	persisted, err = store.ListActiveLockdowns(ctx)
	if err != nil {
		t.Fatalf("list lockdowns: %v", err)
	}
	if len(persisted) != 0 {
		t.Fatalf("lockdown state not cleared: %+v", persisted)
	}
}

func TestTriggerIsIdempotent(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	if raised, err := engine.Trigger(ctx, "g1", 1); err != nil || !raised {
		t.Fatalf("first trigger: raised=%v err=%v", raised, err)
	}
	if raised, err := engine.Trigger(ctx, "g1", 1); err != nil || raised {
		t.Fatalf("second trigger should be a no-op: raised=%v err=%v", raised, err)
	}
}

func TestLift(t *testing.T) {
	engine, store, _, recorder := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.Trigger(ctx, "g1", 3); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if !engine.Lift(ctx, "g1") {
		t.Fatal("lift reported inactive")
	}
	if engine.Active("g1") {
		t.Fatal("still active after lift")
	}
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.calls) != 1 || recorder.calls[0].gate != 3 {
		t.Fatalf("revert calls: %+v", recorder.calls)
	}

	persisted, err := store.ListActiveLockdowns(ctx)
	if err != nil {
		t.Fatalf("list lockdowns: %v", err)
	}
	if len(persisted) != 0 {
		t.Fatalf("state survived lift: %+v", persisted)
	}
}

func TestResumeReschedulesPendingRevert(t *testing.T) {
	engine, store, clock, recorder := newTestEngine(t)
	ctx := context.Background()

	// State left behind by a previous process.
	until := clock.Now().Add(4 * time.Minute)
	if err := store.SetLockdown(ctx, "g1", until, 1); err != nil {
		t.Fatalf("seed lockdown: %v", err)
	}

	if err := engine.Resume(ctx); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !engine.Active("g1") {
		t.Fatal("resume did not reschedule")
	}

	clock.Advance(4 * time.Minute)
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.calls) != 1 || recorder.calls[0].gate != 1 {
		t.Fatalf("revert calls after resume: %+v", recorder.calls)
	}
}

func TestResumeRevertsExpiredImmediately(t *testing.T) {
	engine, store, clock, recorder := newTestEngine(t)
	ctx := context.Background()

	until := clock.Now().Add(-time.Minute)
	if err := store.SetLockdown(ctx, "g1", until, 4); err != nil {
		t.Fatalf("seed lockdown: %v", err)
	}

	if err := engine.Resume(ctx); err != nil {
		t.Fatalf("resume: %v", err)
	}
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.calls) != 1 || recorder.calls[0].gate != 4 {
		t.Fatalf("expired lockdown not reverted: %+v", recorder.calls)
	}
	if engine.Active("g1") {
		t.Fatal("expired lockdown left active")
	}
}
