package linkfilter

import (
	"context"
	"strings"
	"testing"

	"guildwarden/internal/modules/audit"
	"guildwarden/internal/storage"

	"go.uber.org/zap"
)

func newTestModule(t *testing.T) (*Module, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(store, audit.NewLogger(store, zap.NewNop())), store
}

func TestBlocklistedDomain(t *testing.T) {
	m, store := newTestModule(t)
	ctx := context.Background()

	if err := store.AddDomainBlock(ctx, "g1", "scam.example"); err != nil {
		t.Fatalf("add block: %v", err)
	}

	flagged, reason, err := m.CheckMessage(ctx, "g1", "u1", "look at https://scam.example/win")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !flagged || !strings.Contains(reason, "scam.example") {
		t.Fatalf("blocklisted link not flagged: flagged=%v reason=%q", flagged, reason)
	}
}

func TestAllowlistedDomainPasses(t *testing.T) {
	m, store := newTestModule(t)
	ctx := context.Background()

	if err := store.AddDomainAllow(ctx, "g1", "example.com"); err != nil {
		t.Fatalf("add allow: %v", err)
	}

	// The bait keyword alone does not override an allowlisted domain.
	flagged, _, err := m.CheckMessage(ctx, "g1", "u1", "free stuff at https://example.com/promo")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if flagged {
		t.Fatal("allowlisted link flagged")
	}
}

func TestUnknownDomainWithBaitKeyword(t *testing.T) {
	m, _ := newTestModule(t)
	ctx := context.Background()

	flagged, _, err := m.CheckMessage(ctx, "g1", "u1", "claim your nitro at https://totally-legit.example/x")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !flagged {
		t.Fatal("bait link not flagged")
	}

	flagged, _, err = m.CheckMessage(ctx, "g1", "u1", "docs are at https://totally-legit.example/x")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if flagged {
		t.Fatal("neutral link flagged")
	}
}

func TestNoLinks(t *testing.T) {
	m, _ := newTestModule(t)

	flagged, _, err := m.CheckMessage(context.Background(), "g1", "u1", "no links here")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if flagged {
		t.Fatal("plain message flagged")
	}
}
