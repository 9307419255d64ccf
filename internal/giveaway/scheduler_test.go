package giveaway

import (
	"context"
	"math/rand"
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

type concludeRecorder struct {
	mu    sync.Mutex
	calls []struct {
		giveaway storage.Giveaway
		winners  []string
	}
}

func (r *concludeRecorder) conclude(_ context.Context, g storage.Giveaway, winners []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, struct {
		giveaway storage.Giveaway
		winners  []string
	}{g, winners})
}

func newTestScheduler(t *testing.T) (*Scheduler, *storage.Store, *fakeClock, *concludeRecorder) {
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
	recorder := &concludeRecorder{}
	scheduler := New(store, audit.NewLogger(store, zap.NewNop()), recorder.conclude)
	scheduler.WithClock(clock)
	scheduler.WithRand(rand.New(rand.NewSource(1)))
	return scheduler, store, clock, recorder
}

func TestCreateAndConclude(t *testing.T) {
	scheduler, store, clock, recorder := newTestScheduler(t)
	ctx := context.Background()

	g, err := scheduler.Create(ctx, "g1", "c1", "nitro", 1, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, user := range []string{"u1", "u2", "u3"} {
		if _, err := store.AddGiveawayEntry(ctx, g.ID, user); err != nil {
			t.Fatalf("enter %s: %v", user, err)
		}
	}

	clock.Advance(time.Hour)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.calls) != 1 {
		t.Fatalf("expected one conclusion, got %d", len(recorder.calls))
	}
	if len(recorder.calls[0].winners) != 1 {
		t.Fatalf("expected one winner, got %v", recorder.calls[0].winners)
	}

	_, found, err := store.GetGiveaway(ctx, g.ID)
	if err != nil || !found {
		t.Fatalf("giveaway row: found=%v err=%v", found, err)
	}
	active, err := store.ListActiveGiveaways(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("concluded giveaway still active: %+v", active)
	}
}

func TestConcludeWithNoEntrants(t *testing.T) {
	scheduler, _, clock, recorder := newTestScheduler(t)

	if _, err := scheduler.Create(context.Background(), "g1", "c1", "nitro", 2, time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.Advance(time.Minute)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.calls) != 1 {
		t.Fatalf("expected conclusion, got %d", len(recorder.calls))
	}
	if len(recorder.calls[0].winners) != 0 {
		t.Fatalf("expected no winners, got %v", recorder.calls[0].winners)
	}
}

func TestDeletedGiveawayIsDropped(t *testing.T) {
	scheduler, store, clock, recorder := newTestScheduler(t)
	ctx := context.Background()

	g, err := scheduler.Create(ctx, "g1", "c1", "nitro", 1, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.DeleteGiveaway(ctx, g.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	clock.Advance(time.Minute)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.calls) != 0 {
		t.Fatalf("deleted giveaway concluded: %+v", recorder.calls)
	}
}

func TestResume(t *testing.T) {
	scheduler, store, clock, recorder := newTestScheduler(t)
	ctx := context.Background()
	now := clock.Now()

	// Rows left behind by a previous process: one overdue, one still open.
	overdue, err := store.CreateGiveaway(ctx, storage.Giveaway{
		GuildID: "g1", ChannelID: "c1", Prize: "a", WinnerCount: 1,
		EndsAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("seed overdue: %v", err)
	}
	pending, err := store.CreateGiveaway(ctx, storage.Giveaway{
		GuildID: "g1", ChannelID: "c1", Prize: "b", WinnerCount: 1,
		EndsAt: now.Add(30 * time.Minute), CreatedAt: now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("seed pending: %v", err)
	}

	if err := scheduler.Resume(ctx); err != nil {
		t.Fatalf("resume: %v", err)
	}

	recorder.mu.Lock()
	if len(recorder.calls) != 1 || recorder.calls[0].giveaway.ID != overdue {
		t.Fatalf("overdue giveaway not concluded on resume: %+v", recorder.calls)
	}
	recorder.mu.Unlock()

	clock.Advance(30 * time.Minute)
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.calls) != 2 || recorder.calls[1].giveaway.ID != pending {
		t.Fatalf("pending giveaway not rescheduled: %+v", recorder.calls)
	}
}

func TestEndEarly(t *testing.T) {
	scheduler, store, clock, recorder := newTestScheduler(t)
	ctx := context.Background()

	g, err := scheduler.Create(ctx, "g1", "c1", "nitro", 1, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.AddGiveawayEntry(ctx, g.ID, "u1"); err != nil {
		t.Fatalf("enter: %v", err)
	}

	scheduler.End(ctx, g.ID)

	recorder.mu.Lock()
	if len(recorder.calls) != 1 {
		t.Fatalf("early end did not conclude: %+v", recorder.calls)
	}
	recorder.mu.Unlock()

	// The original deadline firing later must not conclude twice.
	clock.Advance(time.Hour)
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.calls) != 1 {
		t.Fatalf("double conclusion: %+v", recorder.calls)
	}
}

func TestPickWinners(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	entrants := []string{"a", "b", "c", "d", "e"}

	winners := PickWinners(entrants, 3, rng)
	if len(winners) != 3 {
		t.Fatalf("expected 3 winners, got %v", winners)
	}
	seen := make(map[string]bool)
	for _, w := range winners {
		if seen[w] {
			t.Fatalf("duplicate winner %q in %v", w, winners)
		}
		seen[w] = true
	}

	if got := PickWinners(entrants, 10, rng); len(got) != len(entrants) {
		t.Fatalf("overdraw should cap at entrant count, got %v", got)
	}
	if got := PickWinners(nil, 2, rng); got != nil {
		t.Fatalf("no entrants should yield nil, got %v", got)
	}
}
