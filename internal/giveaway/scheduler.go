package giveaway

import (
	"context"
	"fmt"
	"math/rand"
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

// ConcludeFunc announces a finished giveaway. Winners may be empty when
// nobody entered.
type ConcludeFunc func(ctx context.Context, g storage.Giveaway, winners []string)

// Scheduler runs giveaway deadlines. End times are persisted with the
// giveaway row, so Resume reschedules everything still open after a restart,
// and a conclusion re-checks the row first so a giveaway deleted while the
// timer was pending is silently dropped.
type Scheduler struct {
	mu       sync.Mutex
	store    *storage.Store
	audit    *audit.Logger
	clock    Clock
	conclude ConcludeFunc
	rng      *rand.Rand
	timers   map[int64]Timer
}

func New(store *storage.Store, auditLogger *audit.Logger, conclude ConcludeFunc) *Scheduler {
	return &Scheduler{
		store:    store,
		audit:    auditLogger,
		clock:    realClock{},
		conclude: conclude,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		timers:   make(map[int64]Timer),
	}
}

func (s *Scheduler) WithClock(clock Clock) {
	s.clock = clock
}

func (s *Scheduler) WithRand(rng *rand.Rand) {
	s.rng = rng
}

// Create persists a new giveaway and schedules its conclusion.
func (s *Scheduler) Create(ctx context.Context, guildID, channelID, prize string, winnerCount int, duration time.Duration) (storage.Giveaway, error) {
	if winnerCount < 1 {
		winnerCount = 1
	}
	now := s.clock.Now()
	g := storage.Giveaway{
		GuildID:     guildID,
		ChannelID:   channelID,
		Prize:       prize,
		WinnerCount: winnerCount,
		EndsAt:      now.Add(duration),
		CreatedAt:   now,
	}
	id, err := s.store.CreateGiveaway(ctx, g)
	if err != nil {
		return storage.Giveaway{}, err
	}
	g.ID = id
	s.schedule(id, g.EndsAt)
	s.audit.Log(ctx, audit.LevelInfo, guildID, "", "giveaway",
		fmt.Sprintf("giveaway %d created, prize=%q winners=%d", id, prize, winnerCount))
	return g, nil
}

// End concludes a giveaway ahead of its deadline.
func (s *Scheduler) End(ctx context.Context, id int64) {
	s.mu.Lock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.run(ctx, id)
}

// Cancel deletes a giveaway without drawing winners.
func (s *Scheduler) Cancel(ctx context.Context, id int64) error {
	s.mu.Lock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	return s.store.DeleteGiveaway(ctx, id)
}

// Resume reschedules all open giveaways after a restart, concluding any
// whose deadline already passed.
func (s *Scheduler) Resume(ctx context.Context) error {
	active, err := s.store.ListActiveGiveaways(ctx)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	for _, g := range active {
		if !g.EndsAt.After(now) {
			s.run(ctx, g.ID)
			continue
		}
		s.schedule(g.ID, g.EndsAt)
	}
	return nil
}

// Close stops pending timers; rows stay open for the next Resume.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

func (s *Scheduler) schedule(id int64, endsAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
	}
	delay := endsAt.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	s.timers[id] = s.clock.AfterFunc(delay, func() {
		s.run(context.Background(), id)
	})
}

func (s *Scheduler) run(ctx context.Context, id int64) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()

	g, found, err := s.store.GetGiveaway(ctx, id)
	if err != nil {
		s.audit.Log(ctx, audit.LevelWarn, "", "", "giveaway", fmt.Sprintf("giveaway %d load failed: %v", id, err))
		return
	}
	if !found || g.Ended {
		return
	}

	entrants, err := s.store.ListGiveawayEntries(ctx, id)
	if err != nil {
		s.audit.Log(ctx, audit.LevelWarn, g.GuildID, "", "giveaway", fmt.Sprintf("giveaway %d entries load failed: %v", id, err))
		return
	}

	s.mu.Lock()
	winners := PickWinners(entrants, g.WinnerCount, s.rng)
	s.mu.Unlock()

	if err := s.store.MarkGiveawayEnded(ctx, id); err != nil {
		s.audit.Log(ctx, audit.LevelWarn, g.GuildID, "", "giveaway", fmt.Sprintf("giveaway %d end failed: %v", id, err))
		return
	}

	if s.conclude != nil {
		s.conclude(ctx, g, winners)
	}
	s.audit.Log(ctx, audit.LevelInfo, g.GuildID, "", "giveaway",
		fmt.Sprintf("giveaway %d concluded, entrants=%d winners=%d", id, len(entrants), len(winners)))
}

// PickWinners draws up to n distinct entrants uniformly. The input slice is
// not modified.
func PickWinners(entrants []string, n int, rng *rand.Rand) []string {
	if n <= 0 || len(entrants) == 0 {
		return nil
	}
	pool := append([]string(nil), entrants...)
	if n > len(pool) {
		n = len(pool)
	}
	winners := make([]string, 0, n)
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
		winners = append(winners, pool[i])
	}
	return winners
}
