package lockdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guildwarden/internal/modules/audit"
	"guildwarden/internal/storage"
)

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

// RevertFunc undoes the guild-side effects of a lockdown, typically by
// restoring the verification level that was in effect before it.
type RevertFunc func(ctx context.Context, guildID string, prevJoinGate int)

// Engine raises and automatically reverts guild lockdowns. The revert
// deadline is persisted, so Resume can pick pending reverts back up after a
// restart instead of leaving a guild locked forever.
type Engine struct {
	mu       sync.Mutex
	store    *storage.Store
	audit    *audit.Logger
	clock    Clock
	duration time.Duration
	revert   RevertFunc
	timers   map[string]Timer
	gates    map[string]int
}

func New(store *storage.Store, auditLogger *audit.Logger, duration time.Duration, revert RevertFunc) *Engine {
	if duration <= 0 {
		duration = 10 * time.Minute
	}
	return &Engine{
		store:    store,
		audit:    auditLogger,
		clock:    realClock{},
		duration: duration,
		revert:   revert,
		timers:   make(map[string]Timer),
		gates:    make(map[string]int),
	}
}

func (e *Engine) WithClock(clock Clock) {
	e.clock = clock
}

// Trigger starts a lockdown and schedules its revert. Triggering a guild
// already locked down is a no-op and reports false.
func (e *Engine) Trigger(ctx context.Context, guildID string, prevJoinGate int) (bool, error) {
	e.mu.Lock()
	if _, active := e.timers[guildID]; active {
		e.mu.Unlock()
		return false, nil
	}
	until := e.clock.Now().Add(e.duration)
	e.gates[guildID] = prevJoinGate
	e.timers[guildID] = e.clock.AfterFunc(e.duration, func() {
		e.end(context.Background(), guildID)
	})
	e.mu.Unlock()

	if err := e.store.SetLockdown(ctx, guildID, until, prevJoinGate); err != nil {
		e.cancelTimer(guildID)
		return false, err
	}
	e.audit.Log(ctx, audit.LevelCrit, guildID, "", "lockdown",
		fmt.Sprintf("lockdown raised until %s", until.UTC().Format(time.RFC3339)))
	return true, nil
}

// Active reports whether the guild currently has a pending revert.
func (e *Engine) Active(guildID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, active := e.timers[guildID]
	return active
}

// Lift ends a lockdown early, for operator override.
func (e *Engine) Lift(ctx context.Context, guildID string) bool {
	e.mu.Lock()
	timer, active := e.timers[guildID]
	e.mu.Unlock()
	if !active {
		return false
	}
	timer.Stop()
	e.end(ctx, guildID)
	return true
}

// Resume reloads persisted lockdowns after a restart. Deadlines already in
// the past revert immediately; the rest are rescheduled for their remainder.
func (e *Engine) Resume(ctx context.Context) error {
	active, err := e.store.ListActiveLockdowns(ctx)
	if err != nil {
		return err
	}
	now := e.clock.Now()
	for _, entry := range active {
		remaining := entry.Until.Sub(now)
		if remaining <= 0 {
			e.mu.Lock()
			e.gates[entry.GuildID] = entry.PrevJoinGate
			e.mu.Unlock()
			e.end(ctx, entry.GuildID)
			continue
		}
		guildID := entry.GuildID
		e.mu.Lock()
		e.gates[guildID] = entry.PrevJoinGate
		e.timers[guildID] = e.clock.AfterFunc(remaining, func() {
			e.end(context.Background(), guildID)
		})
		e.mu.Unlock()
		e.audit.Log(ctx, audit.LevelInfo, guildID, "", "lockdown",
			fmt.Sprintf("lockdown resumed, %s remaining", remaining.Round(time.Second)))
	}
	return nil
}

// Close stops pending timers without reverting; state stays persisted for
// the next Resume.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for guildID, timer := range e.timers {
		timer.Stop()
		delete(e.timers, guildID)
	}
}

func (e *Engine) end(ctx context.Context, guildID string) {
	e.mu.Lock()
	delete(e.timers, guildID)
	prevGate := e.gates[guildID]
	delete(e.gates, guildID)
	e.mu.Unlock()

	if e.revert != nil {
		e.revert(ctx, guildID, prevGate)
	}
	if err := e.store.ClearLockdown(ctx, guildID); err != nil {
		e.audit.Log(ctx, audit.LevelWarn, guildID, "", "lockdown", "failed to clear lockdown state: "+err.Error())
		return
	}
	e.audit.Log(ctx, audit.LevelInfo, guildID, "", "lockdown", "lockdown reverted")
}

func (e *Engine) cancelTimer(guildID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if timer, ok := e.timers[guildID]; ok {
		timer.Stop()
		delete(e.timers, guildID)
		delete(e.gates, guildID)
	}
}
