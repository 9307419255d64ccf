package abuse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guildwarden/internal/modules/audit"
	"guildwarden/internal/storage"
	"guildwarden/internal/utils"
)

// Action kinds tracked by the detector. Audit-log driven kinds are
// persisted per event; joins are guild-wide and tracked in memory only.
const (
	KindBanAdd        = "ban_add"
	KindKick          = "kick"
	KindChannelDelete = "channel_delete"
	KindRoleDelete    = "role_delete"
	KindJoin          = "join"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Detector counts moderator actions per (guild, actor, kind) against the
// guild's configured thresholds. Action events are durable so a restart
// mid-burst does not reset the count; join tracking is in-memory because a
// join burst that survives a restart is not worth a table.
type Detector struct {
	mu         sync.Mutex
	store      *storage.Store
	audit      *audit.Logger
	clock      Clock
	joins      map[string]*guildJoins
	pruneEvery time.Duration
	stop       chan struct{}
	done       chan struct{}
}

type guildJoins struct {
	cache  *utils.JoinCache
	window time.Duration
}

func New(store *storage.Store, auditLogger *audit.Logger, pruneEvery time.Duration) *Detector {
	if pruneEvery <= 0 {
		pruneEvery = 30 * time.Second
	}
	return &Detector{
		store:      store,
		audit:      auditLogger,
		clock:      realClock{},
		joins:      make(map[string]*guildJoins),
		pruneEvery: pruneEvery,
	}
}

func (d *Detector) WithClock(clock Clock) {
	d.clock = clock
}

// RecordAndCheck persists one action event for the actor and reports how many
// of that kind the actor has inside the trailing window, plus whether the
// guild's threshold is now met. Exempt actors are not recorded and never
// trip. A zero or missing threshold disables the check but the event is
// still logged for forensics.
func (d *Detector) RecordAndCheck(ctx context.Context, settings storage.GuildSettings, actorID, kind, targetID string, actorRoles []string) (int, bool, error) {
	exempt, err := d.store.IsExempt(ctx, settings.GuildID, actorID, actorRoles)
	if err != nil {
		return 0, false, err
	}
	if exempt {
		return 0, false, nil
	}

	now := d.clock.Now()
	if err := d.store.AddAbuseEvent(ctx, storage.AbuseEvent{
		GuildID:   settings.GuildID,
		ActorID:   actorID,
		Kind:      kind,
		TargetID:  targetID,
		CreatedAt: now,
	}); err != nil {
		return 0, false, err
	}

	threshold, window := policyFor(settings, kind)
	if threshold <= 0 || window <= 0 {
		return 0, false, nil
	}

	count, err := d.store.CountAbuseEvents(ctx, settings.GuildID, actorID, kind, now.Add(-window))
	if err != nil {
		return 0, false, err
	}

	exceeded := count >= threshold
	if exceeded {
		detail := fmt.Sprintf("type=ABUSE kind=%s value=%d/%ds threshold=%d", kind, count, int(window.Seconds()), threshold)
		d.audit.Log(ctx, audit.LevelCrit, settings.GuildID, actorID, "abuse_rate", detail)
	}
	return count, exceeded, nil
}

// CheckJoinRate records one member join for the guild and reports whether
// the join-rate threshold is met.
func (d *Detector) CheckJoinRate(ctx context.Context, settings storage.GuildSettings, userID string) (int, bool) {
	threshold := settings.JoinThreshold
	window := time.Duration(settings.JoinWindowSeconds) * time.Second
	if window <= 0 {
		window = 10 * time.Second
	}

	count := d.guildJoinCache(settings.GuildID, window).Add(d.clock.Now())
	if threshold <= 0 {
		return count, false
	}

	exceeded := count >= threshold
	if exceeded {
		detail := fmt.Sprintf("type=RAID value=%djoins/%ds threshold=%d", count, int(window.Seconds()), threshold)
		d.audit.Log(ctx, audit.LevelCrit, settings.GuildID, userID, "join_rate", detail)
	}
	return count, exceeded
}

// Start launches the background join-cache prune loop.
func (d *Detector) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.pruneLoop(d.stop, d.done)
}

func (d *Detector) Close() {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (d *Detector) pruneLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(d.pruneEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.PruneJoins(d.clock.Now())
		}
	}
}

// PruneJoins discards join entries old enough to be useless even to the
// retention margin.
func (d *Detector) PruneJoins(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, joins := range d.joins {
		joins.cache.Prune(now)
	}
}

func (d *Detector) guildJoinCache(guildID string, window time.Duration) *utils.JoinCache {
	d.mu.Lock()
	defer d.mu.Unlock()
	joins := d.joins[guildID]
	if joins == nil || joins.window != window {
		joins = &guildJoins{cache: utils.NewJoinCache(window), window: window}
		d.joins[guildID] = joins
	}
	return joins.cache
}

func policyFor(settings storage.GuildSettings, kind string) (int, time.Duration) {
	switch kind {
	case KindBanAdd:
		return settings.BanThreshold, time.Duration(settings.BanWindowSeconds) * time.Second
	case KindKick:
		return settings.KickThreshold, time.Duration(settings.KickWindowSeconds) * time.Second
	case KindChannelDelete:
		return settings.ChannelDeleteThreshold, time.Duration(settings.ChannelDeleteWindowSeconds) * time.Second
	case KindRoleDelete:
		return settings.RoleDeleteThreshold, time.Duration(settings.RoleDeleteWindowSeconds) * time.Second
	default:
		return 0, 0
	}
}
