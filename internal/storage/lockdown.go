package storage

import (
	"context"
	"time"
)

// ActiveLockdown is a guild whose lockdown has not yet been reverted. The
// bot reloads these at startup so a restart never leaves a guild locked.
type ActiveLockdown struct {
	GuildID      string
	Until        time.Time
	PrevJoinGate int
}

// SetLockdown records the revert deadline and the verification level that
// was in effect before the lockdown raised it.
func (s *Store) SetLockdown(ctx context.Context, guildID string, until time.Time, prevJoinGate int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, lockdown_until, prev_join_gate)
		VALUES (?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			lockdown_until = excluded.lockdown_until,
			prev_join_gate = excluded.prev_join_gate
	`, guildID, until.Unix(), prevJoinGate)
	return err
}

func (s *Store) ClearLockdown(ctx context.Context, guildID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE guild_settings SET lockdown_until = 0, prev_join_gate = 0 WHERE guild_id = ?
	`, guildID)
	return err
}

func (s *Store) ListActiveLockdowns(ctx context.Context) ([]ActiveLockdown, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, lockdown_until, prev_join_gate
		FROM guild_settings WHERE lockdown_until > 0
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActiveLockdown
	for rows.Next() {
		var (
			entry ActiveLockdown
			until int64
		)
		if err := rows.Scan(&entry.GuildID, &until, &entry.PrevJoinGate); err != nil {
			return nil, err
		}
		entry.Until = time.Unix(until, 0)
		out = append(out, entry)
	}
	return out, rows.Err()
}
