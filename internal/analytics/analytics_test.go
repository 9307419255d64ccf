package analytics

import (
	"context"
	"testing"
	"time"

	"guildwarden/internal/storage"
)

func TestReport(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	entries := []storage.AuditLog{
		{GuildID: "g1", UserID: "u1", Level: "WARN", Event: "anti_spam", CreatedAt: base},
		{GuildID: "g1", UserID: "u1", Level: "CRIT", Event: "abuse_rate", CreatedAt: base.Add(time.Minute)},
		{GuildID: "g1", UserID: "u2", Level: "INFO", Event: "lockdown", CreatedAt: base.Add(2 * time.Minute)},
		{GuildID: "g2", UserID: "u3", Level: "WARN", Event: "anti_spam", CreatedAt: base},
	}
	for _, entry := range entries {
		if err := store.AddAuditLog(ctx, entry); err != nil {
			t.Fatalf("add audit log: %v", err)
		}
	}
	if _, err := store.ApplyMessageActivity(ctx, "g1", "u1", 15, time.Minute, base); err != nil {
		t.Fatalf("seed progression: %v", err)
	}

	service := New(store)
	report, err := service.Report(ctx, "g1", base.Add(-time.Minute))
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	if report.Total != 3 {
		t.Fatalf("expected 3 entries, got %d", report.Total)
	}
	if report.ByLevel["CRIT"] != 1 || report.ByEvent["anti_spam"] != 1 {
		t.Fatalf("unexpected breakdown: %+v", report)
	}
	if len(report.TopEscalated) != 1 || report.TopEscalated[0] != "u1" {
		t.Fatalf("unexpected escalated users: %v", report.TopEscalated)
	}
	if report.ActiveUsers != 1 {
		t.Fatalf("expected 1 active user, got %d", report.ActiveUsers)
	}
}
