package abuse

import (
	"context"
	"testing"
	"time"

	"guildwarden/internal/modules/audit"
	"guildwarden/internal/storage"

	"go.uber.org/zap"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestDetector(t *testing.T) (*Detector, *storage.Store, *fakeClock) {
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
	detector := New(store, audit.NewLogger(store, zap.NewNop()), 30*time.Second)
	detector.WithClock(clock)
	return detector, store, clock
}

func testSettings() storage.GuildSettings {
	return storage.GuildSettings{
		GuildID:                    "g1",
		BanThreshold:               3,
		BanWindowSeconds:           60,
		KickThreshold:              3,
		KickWindowSeconds:          60,
		ChannelDeleteThreshold:     2,
		ChannelDeleteWindowSeconds: 30,
		RoleDeleteThreshold:        2,
		RoleDeleteWindowSeconds:    30,
		JoinThreshold:              4,
		JoinWindowSeconds:          10,
	}
}

func TestRecordAndCheckThreshold(t *testing.T) {
	detector, _, clock := newTestDetector(t)
	ctx := context.Background()
	settings := testSettings()

	for i := 1; i <= 2; i++ {
		count, exceeded, err := detector.RecordAndCheck(ctx, settings, "mod", KindBanAdd, "victim", nil)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if count != i || exceeded {
			t.Fatalf("event %d: count=%d exceeded=%v", i, count, exceeded)
		}
		clock.Advance(time.Second)
	}

	count, exceeded, err := detector.RecordAndCheck(ctx, settings, "mod", KindBanAdd, "victim", nil)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if count != 3 || !exceeded {
		t.Fatalf("expected threshold hit at 3, got count=%d exceeded=%v", count, exceeded)
	}
}

func TestRecordAndCheckWindowExpiry(t *testing.T) {
	detector, _, clock := newTestDetector(t)
	ctx := context.Background()
	settings := testSettings()

	for i := 0; i < 2; i++ {
		if _, _, err := detector.RecordAndCheck(ctx, settings, "mod", KindBanAdd, "", nil); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	// Old events age out; one fresh ban is back to a count of one.
	clock.Advance(61 * time.Second)
	count, exceeded, err := detector.RecordAndCheck(ctx, settings, "mod", KindBanAdd, "", nil)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if count != 1 || exceeded {
		t.Fatalf("expected aged-out window, got count=%d exceeded=%v", count, exceeded)
	}
}

func TestRecordAndCheckKindsAndActorsIndependent(t *testing.T) {
	detector, _, _ := newTestDetector(t)
	ctx := context.Background()
	settings := testSettings()

	if _, _, err := detector.RecordAndCheck(ctx, settings, "mod-a", KindBanAdd, "", nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, _, err := detector.RecordAndCheck(ctx, settings, "mod-a", KindKick, "", nil); err != nil {
		t.Fatalf("record: %v", err)
	}

	count, _, err := detector.RecordAndCheck(ctx, settings, "mod-b", KindBanAdd, "", nil)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if count != 1 {
		t.Fatalf("actor counters bled together: count=%d", count)
	}
}

func TestExemptActorNotRecorded(t *testing.T) {
	detector, store, _ := newTestDetector(t)
	ctx := context.Background()
	settings := testSettings()

	if err := store.AddExemptUser(ctx, "g1", "owner"); err != nil {
		t.Fatalf("add exempt: %v", err)
	}

	count, exceeded, err := detector.RecordAndCheck(ctx, settings, "owner", KindBanAdd, "", nil)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if count != 0 || exceeded {
		t.Fatalf("exempt actor tripped: count=%d exceeded=%v", count, exceeded)
	}

	// Nothing was written, so a later lapse of the exemption starts clean.
	got, err := store.CountAbuseEvents(ctx, "g1", "owner", KindBanAdd, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if got != 0 {
		t.Fatalf("exempt event persisted: %d", got)
	}
}

func TestExemptRole(t *testing.T) {
	detector, store, _ := newTestDetector(t)
	ctx := context.Background()
	settings := testSettings()

	if err := store.AddExemptRole(ctx, "g1", "trusted"); err != nil {
		t.Fatalf("add exempt role: %v", err)
	}

	count, exceeded, err := detector.RecordAndCheck(ctx, settings, "mod", KindBanAdd, "", []string{"member", "trusted"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if count != 0 || exceeded {
		t.Fatalf("role-exempt actor tripped: count=%d exceeded=%v", count, exceeded)
	}
}

func TestZeroThresholdFailsOpen(t *testing.T) {
	detector, _, _ := newTestDetector(t)
	ctx := context.Background()
	settings := testSettings()
	settings.BanThreshold = 0

	for i := 0; i < 10; i++ {
		_, exceeded, err := detector.RecordAndCheck(ctx, settings, "mod", KindBanAdd, "", nil)
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		if exceeded {
			t.Fatal("disabled check tripped")
		}
	}
}

func TestUnknownKindFailsOpen(t *testing.T) {
	detector, _, _ := newTestDetector(t)

	_, exceeded, err := detector.RecordAndCheck(context.Background(), testSettings(), "mod", "emoji_delete", "", nil)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if exceeded {
		t.Fatal("unknown kind tripped")
	}
}

func TestCheckJoinRate(t *testing.T) {
	detector, _, clock := newTestDetector(t)
	ctx := context.Background()
	settings := testSettings()

	for i := 1; i <= 3; i++ {
		count, exceeded := detector.CheckJoinRate(ctx, settings, "u")
		if count != i || exceeded {
			t.Fatalf("join %d: count=%d exceeded=%v", i, count, exceeded)
		}
	}
	count, exceeded := detector.CheckJoinRate(ctx, settings, "u")
	if count != 4 || !exceeded {
		t.Fatalf("expected raid at 4 joins, got count=%d exceeded=%v", count, exceeded)
	}

	// Joins outside the window stop counting but stay cached for a while.
	clock.Advance(11 * time.Second)
	count, exceeded = detector.CheckJoinRate(ctx, settings, "u")
	if count != 1 || exceeded {
		t.Fatalf("expected fresh window, got count=%d exceeded=%v", count, exceeded)
	}
}

func TestPruneJoinsRetainsDoubleWindow(t *testing.T) {
	detector, _, clock := newTestDetector(t)
	ctx := context.Background()
	settings := testSettings()

	detector.CheckJoinRate(ctx, settings, "u")
	clock.Advance(15 * time.Second)
	detector.PruneJoins(clock.Now())

	// 15s old with a 10s window: outside the count window, inside the 2x
	// retention margin.
	count, _ := detector.CheckJoinRate(ctx, settings, "u")
	if count != 1 {
		t.Fatalf("count after prune: %d", count)
	}

	clock.Advance(21 * time.Second)
	detector.PruneJoins(clock.Now())
	detector.mu.Lock()
	size := detector.joins["g1"].cache.Size()
	detector.mu.Unlock()
	if size != 0 {
		t.Fatalf("expected cache emptied, got %d entries", size)
	}
}
