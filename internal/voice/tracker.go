package voice

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// CreditFunc receives whole minutes of voice presence to convert into XP.
type CreditFunc func(ctx context.Context, guildID, userID string, minutes int64)

type session struct {
	start     time.Time
	channelID string
}

// Tracker keeps an in-memory session per (guild, user) currently in voice
// and periodically converts elapsed time into whole-minute credits. On each
// flush a session's start only advances by the minutes actually credited, so
// sub-minute remainders carry over instead of being lost, and flushing twice
// in a row credits nothing the second time.
type Tracker struct {
	mu         sync.Mutex
	clock      Clock
	logger     *zap.Logger
	credit     CreditFunc
	sessions   map[string]session
	flushEvery time.Duration
	stop       chan struct{}
	done       chan struct{}
}

func NewTracker(credit CreditFunc, flushEvery time.Duration, logger *zap.Logger) *Tracker {
	if flushEvery <= 0 {
		flushEvery = 5 * time.Minute
	}
	return &Tracker{
		clock:      realClock{},
		logger:     logger,
		credit:     credit,
		sessions:   make(map[string]session),
		flushEvery: flushEvery,
	}
}

func (t *Tracker) WithClock(clock Clock) {
	t.clock = clock
}

// HandleJoin opens a session. A join for a user already tracked only moves
// the channel, it never resets accrual.
func (t *Tracker) HandleJoin(guildID, userID, channelID string) {
	key := guildID + ":" + userID
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.sessions[key]; ok {
		existing.channelID = channelID
		t.sessions[key] = existing
		return
	}
	t.sessions[key] = session{start: t.clock.Now(), channelID: channelID}
}

// HandleSwitch moves an open session between channels without touching its
// accrued time. A switch for an untracked user opens a session.
func (t *Tracker) HandleSwitch(guildID, userID, channelID string) {
	t.HandleJoin(guildID, userID, channelID)
}

// HandleLeave credits any remaining whole minutes and closes the session.
func (t *Tracker) HandleLeave(ctx context.Context, guildID, userID string) {
	key := guildID + ":" + userID
	t.mu.Lock()
	current, ok := t.sessions[key]
	if ok {
		delete(t.sessions, key)
	}
	t.mu.Unlock()
	if !ok {
		return
	}

	minutes := int64(t.clock.Now().Sub(current.start) / time.Minute)
	if minutes > 0 {
		t.credit(ctx, guildID, userID, minutes)
	}
}

// InVoice reports whether the user has an open session.
func (t *Tracker) InVoice(guildID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sessions[guildID+":"+userID]
	return ok
}

// Flush credits elapsed whole minutes for every open session.
func (t *Tracker) Flush(ctx context.Context) {
	type pending struct {
		guildID string
		userID  string
		minutes int64
	}

	now := t.clock.Now()
	var credits []pending

	t.mu.Lock()
	for key, current := range t.sessions {
		minutes := int64(now.Sub(current.start) / time.Minute)
		if minutes <= 0 {
			continue
		}
		current.start = current.start.Add(time.Duration(minutes) * time.Minute)
		t.sessions[key] = current
		guildID, userID := splitKey(key)
		credits = append(credits, pending{guildID: guildID, userID: userID, minutes: minutes})
	}
	t.mu.Unlock()

	for _, credit := range credits {
		t.credit(ctx, credit.guildID, credit.userID, credit.minutes)
	}
}

// Start launches the periodic flush loop.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.flushLoop(ctx, t.stop, t.done)
}

// Close stops the flush loop and credits everything still open.
func (t *Tracker) Close(ctx context.Context) {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
	t.Flush(ctx)
}

func (t *Tracker) flushLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.flushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Flush(ctx)
		}
	}
}

func splitKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
