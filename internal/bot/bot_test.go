package bot

import (
	"testing"
	"time"

	"guildwarden/internal/abuse"
	"guildwarden/internal/storage"
)

func TestPruneEscalatedDropsStaleEntries(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := &Bot{escalated: map[string]time.Time{
		"g1:mod1:ban_add":        now.Add(-2 * time.Hour),
		"g1:mod2:kick":           now.Add(-90 * time.Minute),
		"g1:mod3:channel_delete": now.Add(-30 * time.Second),
	}}

	b.pruneEscalated(now, time.Hour)

	if len(b.escalated) != 1 {
		t.Fatalf("expected 1 entry to survive, got %d", len(b.escalated))
	}
	if _, ok := b.escalated["g1:mod3:channel_delete"]; !ok {
		t.Fatalf("recent entry was pruned: %v", b.escalated)
	}
}

func TestEscalationWindowPerKind(t *testing.T) {
	settings := storage.GuildSettings{
		BanThreshold: 5, BanWindowSeconds: 60,
		KickThreshold: 3, KickWindowSeconds: 30,
	}

	threshold, window := escalationWindow(settings, abuse.KindBanAdd)
	if threshold != 5 || window != 60*time.Second {
		t.Fatalf("ban window: got %d/%s", threshold, window)
	}
	threshold, window = escalationWindow(settings, abuse.KindKick)
	if threshold != 3 || window != 30*time.Second {
		t.Fatalf("kick window: got %d/%s", threshold, window)
	}
	if _, window = escalationWindow(settings, "unknown"); window != time.Minute {
		t.Fatalf("unknown kind should fall back to a minute, got %s", window)
	}
}
