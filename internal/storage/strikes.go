package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// UserStrike counts repeat offenses per category (e.g. spam bursts), with an
// optional forgiveness horizon after which the count starts over.
type UserStrike struct {
	GuildID    string
	UserID     string
	Category   string
	CountTotal int
	LastAt     time.Time
	ResetAt    *time.Time
}

func (s *Store) GetStrike(ctx context.Context, guildID, userID, category string) (UserStrike, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, user_id, category, count_total, last_at, reset_at
		FROM user_strikes
		WHERE guild_id = ? AND user_id = ? AND category = ?
	`, guildID, userID, category)

	var strike UserStrike
	var lastAt int64
	var resetAt sql.NullInt64
	err := row.Scan(&strike.GuildID, &strike.UserID, &strike.Category, &strike.CountTotal, &lastAt, &resetAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserStrike{}, nil
		}
		return UserStrike{}, err
	}
	strike.LastAt = time.Unix(lastAt, 0)
	if resetAt.Valid {
		value := time.Unix(resetAt.Int64, 0)
		strike.ResetAt = &value
	}
	return strike, nil
}

// IncrementStrike bumps the counter and returns the new count. If the stored
// forgiveness deadline has passed the count restarts from one.
func (s *Store) IncrementStrike(ctx context.Context, guildID, userID, category string, forgiveAfter time.Duration) (int, error) {
	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var count int
	var resetAt sql.NullInt64
	row := tx.QueryRowContext(ctx, `
		SELECT count_total, reset_at
		FROM user_strikes
		WHERE guild_id = ? AND user_id = ? AND category = ?
	`, guildID, userID, category)
	scanErr := row.Scan(&count, &resetAt)
	if scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		err = scanErr
		return 0, err
	}
	if scanErr == nil && resetAt.Valid && now.Unix() >= resetAt.Int64 {
		count = 0
	}

	count++
	var nextReset any
	if forgiveAfter > 0 {
		nextReset = now.Add(forgiveAfter).Unix()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_strikes (guild_id, user_id, category, count_total, last_at, reset_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id, category) DO UPDATE SET
			count_total = excluded.count_total,
			last_at = excluded.last_at,
			reset_at = excluded.reset_at
	`, guildID, userID, category, count, now.Unix(), nextReset)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}
