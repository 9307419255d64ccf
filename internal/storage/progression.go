package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"guildwarden/internal/progression"
)

// ProgressionRecord is one (guild, user) activity record. Level is derived
// from XP by the curve in internal/progression and stored only as a cache for
// level-up detection; it is never authoritative over XP.
type ProgressionRecord struct {
	GuildID           string
	UserID            string
	XP                int64
	Level             int
	MessagesTotal     int64
	VoiceMinutesTotal int64
	WeeklyXP          int64
	MonthlyXP         int64
	PeriodResetAt     time.Time
	LastGrantAt       time.Time
}

// GrantResult reports what a single activity application did.
type GrantResult struct {
	Granted  bool
	XP       int64
	OldLevel int
	NewLevel int
}

func (s *Store) GetProgression(ctx context.Context, guildID, userID string) (ProgressionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT xp, level, messages_total, voice_minutes_total, weekly_xp, monthly_xp, period_reset_at, last_grant_at
		FROM progression WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)

	record := ProgressionRecord{GuildID: guildID, UserID: userID, Level: 1}
	var resetAt, grantAt int64
	err := row.Scan(&record.XP, &record.Level, &record.MessagesTotal, &record.VoiceMinutesTotal,
		&record.WeeklyXP, &record.MonthlyXP, &resetAt, &grantAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return record, nil
		}
		return ProgressionRecord{}, err
	}
	if resetAt > 0 {
		record.PeriodResetAt = time.Unix(resetAt, 0)
	}
	if grantAt > 0 {
		record.LastGrantAt = time.Unix(grantAt, 0)
	}
	return record, nil
}

// ApplyMessageActivity records one message for the user. XP is granted only
// when the cooldown has elapsed since the last grant; the raw message counter
// increments either way. The whole read-modify-write runs in one transaction
// with SQL-side increments, so two rapid messages cannot lose a grant.
func (s *Store) ApplyMessageActivity(ctx context.Context, guildID, userID string, xpDelta int64, cooldown time.Duration, now time.Time) (GrantResult, error) {
	return s.applyActivity(ctx, guildID, userID, now, func(record ProgressionRecord) activityDelta {
		delta := activityDelta{messages: 1}
		if record.LastGrantAt.IsZero() || now.Sub(record.LastGrantAt) >= cooldown {
			delta.xp = xpDelta
			delta.grantStamp = true
		}
		return delta
	})
}

// ApplyVoiceActivity credits whole minutes of voice presence. No cooldown
// applies; the caller owns not double-counting minutes between flushes.
func (s *Store) ApplyVoiceActivity(ctx context.Context, guildID, userID string, minutes, xpPerMinute int64, now time.Time) (GrantResult, error) {
	if minutes <= 0 {
		return GrantResult{}, nil
	}
	return s.applyActivity(ctx, guildID, userID, now, func(record ProgressionRecord) activityDelta {
		return activityDelta{xp: minutes * xpPerMinute, voiceMinutes: minutes}
	})
}

type activityDelta struct {
	xp           int64
	messages     int64
	voiceMinutes int64
	grantStamp   bool
}

func (s *Store) applyActivity(ctx context.Context, guildID, userID string, now time.Time, decide func(ProgressionRecord) activityDelta) (GrantResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return GrantResult{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO progression (guild_id, user_id, xp, level, period_reset_at)
		VALUES (?, ?, 0, 1, ?)
	`, guildID, userID, now.Unix()); err != nil {
		return GrantResult{}, err
	}

	record := ProgressionRecord{GuildID: guildID, UserID: userID}
	var resetAt, grantAt int64
	row := tx.QueryRowContext(ctx, `
		SELECT xp, level, weekly_xp, monthly_xp, period_reset_at, last_grant_at
		FROM progression WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)
	if err = row.Scan(&record.XP, &record.Level, &record.WeeklyXP, &record.MonthlyXP, &resetAt, &grantAt); err != nil {
		return GrantResult{}, err
	}
	if grantAt > 0 {
		record.LastGrantAt = time.Unix(grantAt, 0)
	}
	record.PeriodResetAt = time.Unix(resetAt, 0)

	delta := decide(record)

	resetWeekly, resetMonthly := periodRollovers(record.PeriodResetAt, now)
	weekly := record.WeeklyXP
	monthly := record.MonthlyXP
	if resetWeekly {
		weekly = 0
	}
	if resetMonthly {
		monthly = 0
	}
	weekly += delta.xp
	monthly += delta.xp

	newXP := record.XP + delta.xp
	newLevel := progression.LevelFromXP(newXP)

	stamp := grantAt
	if delta.grantStamp {
		stamp = now.Unix()
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE progression SET
			xp = xp + ?,
			level = ?,
			messages_total = messages_total + ?,
			voice_minutes_total = voice_minutes_total + ?,
			weekly_xp = ?,
			monthly_xp = ?,
			period_reset_at = ?,
			last_grant_at = ?
		WHERE guild_id = ? AND user_id = ?
	`, delta.xp, newLevel, delta.messages, delta.voiceMinutes, weekly, monthly, now.Unix(), stamp, guildID, userID); err != nil {
		return GrantResult{}, err
	}
	if err = tx.Commit(); err != nil {
		return GrantResult{}, err
	}

	return GrantResult{
		Granted:  delta.xp > 0,
		XP:       newXP,
		OldLevel: record.Level,
		NewLevel: newLevel,
	}, nil
}

// periodRollovers reports whether the ISO week or calendar month has changed
// since the stored reset timestamp. Multiple elapsed periods are not caught
// up individually; only "is it a different period now" matters.
func periodRollovers(last, now time.Time) (weekly bool, monthly bool) {
	if last.IsZero() || last.Unix() <= 0 {
		return false, false
	}
	lastYear, lastWeek := last.ISOWeek()
	nowYear, nowWeek := now.ISOWeek()
	weekly = lastYear != nowYear || lastWeek != nowWeek
	monthly = last.Year() != now.Year() || last.Month() != now.Month()
	return weekly, monthly
}

func (s *Store) TopProgression(ctx context.Context, guildID string, limit, offset int) ([]ProgressionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, xp, level, messages_total, voice_minutes_total
		FROM progression
		WHERE guild_id = ?
		ORDER BY xp DESC
		LIMIT ? OFFSET ?
	`, guildID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProgressionRecord
	for rows.Next() {
		record := ProgressionRecord{GuildID: guildID}
		if err := rows.Scan(&record.UserID, &record.XP, &record.Level, &record.MessagesTotal, &record.VoiceMinutesTotal); err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// RankPosition is 1 + the number of users in the guild with strictly more XP.
func (s *Store) RankPosition(ctx context.Context, guildID string, xp int64) (int64, error) {
	var above int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM progression WHERE guild_id = ? AND xp > ?
	`, guildID, xp).Scan(&above)
	if err != nil {
		return 0, err
	}
	return above + 1, nil
}

func (s *Store) CountProgression(ctx context.Context, guildID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM progression WHERE guild_id = ?`, guildID).Scan(&count)
	return count, err
}

func (s *Store) DeleteProgression(ctx context.Context, guildID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM progression WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	return err
}
