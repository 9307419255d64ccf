package storage

import (
	"context"
	"time"
)

// AbuseEvent is one append-only row in the durable rate log. Rows are never
// updated or deleted by the detector; they are only counted back within a
// trailing window.
type AbuseEvent struct {
	ID        int64
	GuildID   string
	ActorID   string
	Kind      string
	TargetID  string
	CreatedAt time.Time
}

func (s *Store) AddAbuseEvent(ctx context.Context, event AbuseEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO abuse_events (guild_id, actor_id, kind, target_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, event.GuildID, event.ActorID, event.Kind, event.TargetID, event.CreatedAt.Unix())
	return err
}

// CountAbuseEvents counts events for the triple strictly newer than since.
// Timestamps are stored at second granularity, so an event whose true age is
// a fraction under the window lands exactly on the boundary and is excluded.
func (s *Store) CountAbuseEvents(ctx context.Context, guildID, actorID, kind string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM abuse_events
		WHERE guild_id = ? AND actor_id = ? AND kind = ? AND created_at > ?
	`, guildID, actorID, kind, since.Unix()).Scan(&count)
	return count, err
}

func (s *Store) CleanupAbuseEvents(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	_, err := s.db.ExecContext(ctx, `DELETE FROM abuse_events WHERE created_at < ?`, cutoff.Unix())
	return err
}
