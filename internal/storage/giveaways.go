package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Giveaway struct {
	ID          int64
	GuildID     string
	ChannelID   string
	MessageID   string
	Prize       string
	WinnerCount int
	EndsAt      time.Time
	Ended       bool
	CreatedAt   time.Time
}

func (s *Store) CreateGiveaway(ctx context.Context, g Giveaway) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO giveaways (guild_id, channel_id, message_id, prize, winner_count, ends_at, ended, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`, g.GuildID, g.ChannelID, g.MessageID, g.Prize, g.WinnerCount, g.EndsAt.Unix(), g.CreatedAt.Unix())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) SetGiveawayMessage(ctx context.Context, id int64, messageID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE giveaways SET message_id = ? WHERE id = ?`, messageID, id)
	return err
}

// GetGiveaway returns the giveaway and whether it exists. Conclusion timers
// must re-check this before acting: the row may have been ended or deleted
// while the timer was pending.
func (s *Store) GetGiveaway(ctx context.Context, id int64) (Giveaway, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, guild_id, channel_id, message_id, prize, winner_count, ends_at, ended, created_at
		FROM giveaways WHERE id = ?
	`, id)
	g, err := scanGiveaway(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Giveaway{}, false, nil
		}
		return Giveaway{}, false, err
	}
	return g, true, nil
}

func (s *Store) GetGiveawayByMessage(ctx context.Context, messageID string) (Giveaway, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, guild_id, channel_id, message_id, prize, winner_count, ends_at, ended, created_at
		FROM giveaways WHERE message_id = ?
	`, messageID)
	g, err := scanGiveaway(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Giveaway{}, false, nil
		}
		return Giveaway{}, false, err
	}
	return g, true, nil
}

func (s *Store) ListActiveGiveaways(ctx context.Context) ([]Giveaway, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, channel_id, message_id, prize, winner_count, ends_at, ended, created_at
		FROM giveaways WHERE ended = 0 ORDER BY ends_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Giveaway
	for rows.Next() {
		g, err := scanGiveaway(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) MarkGiveawayEnded(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE giveaways SET ended = 1 WHERE id = ?`, id)
	return err
}

func (s *Store) DeleteGiveaway(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM giveaway_entries WHERE giveaway_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM giveaways WHERE id = ?`, id)
	return err
}

// AddGiveawayEntry records an entry, one per user.
func (s *Store) AddGiveawayEntry(ctx context.Context, giveawayID int64, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO giveaway_entries (giveaway_id, user_id) VALUES (?, ?)
	`, giveawayID, userID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) RemoveGiveawayEntry(ctx context.Context, giveawayID int64, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM giveaway_entries WHERE giveaway_id = ? AND user_id = ?`, giveawayID, userID)
	return err
}

func (s *Store) ListGiveawayEntries(ctx context.Context, giveawayID int64) ([]string, error) {
	return s.listIDs(ctx, `SELECT user_id FROM giveaway_entries WHERE giveaway_id = ? ORDER BY user_id`, giveawayID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGiveaway(row rowScanner) (Giveaway, error) {
	var g Giveaway
	var endsAt, createdAt int64
	var ended int
	if err := row.Scan(&g.ID, &g.GuildID, &g.ChannelID, &g.MessageID, &g.Prize, &g.WinnerCount, &endsAt, &ended, &createdAt); err != nil {
		return Giveaway{}, err
	}
	g.EndsAt = time.Unix(endsAt, 0)
	g.CreatedAt = time.Unix(createdAt, 0)
	g.Ended = ended == 1
	return g, nil
}
