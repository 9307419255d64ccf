package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

// GuildSettings carries per-guild overrides of the process defaults, plus the
// durable lockdown state used to resume pending reverts after a restart.
type GuildSettings struct {
	GuildID                    string
	LogChannel                 string
	EscalationMode             string
	EscalationDedupe           string
	RetentionDays              int
	BanThreshold               int
	BanWindowSeconds           int
	KickThreshold              int
	KickWindowSeconds          int
	ChannelDeleteThreshold     int
	ChannelDeleteWindowSeconds int
	RoleDeleteThreshold        int
	RoleDeleteWindowSeconds    int
	JoinThreshold              int
	JoinWindowSeconds          int
	SpamMessages               int
	SpamWindowSeconds          int
	LockdownUntil              time.Time
	PrevJoinGate               int
}

type AuditLog struct {
	ID        int64
	GuildID   string
	UserID    string
	Level     string
	Event     string
	Details   string
	CreatedAt time.Time
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

func (s *Store) GetGuildSettings(ctx context.Context, guildID string, defaults GuildSettings) (GuildSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT log_channel, escalation_mode, escalation_dedupe, retention_days,
		ban_threshold, ban_window_seconds, kick_threshold, kick_window_seconds,
		channel_delete_threshold, channel_delete_window_seconds,
		role_delete_threshold, role_delete_window_seconds,
		join_threshold, join_window_seconds, spam_messages, spam_window_seconds,
		lockdown_until, prev_join_gate
		FROM guild_settings WHERE guild_id = ?`, guildID)

	result := defaults
	result.GuildID = guildID

	var lockdownUntil int64
	err := row.Scan(
		&result.LogChannel,
		&result.EscalationMode,
		&result.EscalationDedupe,
		&result.RetentionDays,
		&result.BanThreshold,
		&result.BanWindowSeconds,
		&result.KickThreshold,
		&result.KickWindowSeconds,
		&result.ChannelDeleteThreshold,
		&result.ChannelDeleteWindowSeconds,
		&result.RoleDeleteThreshold,
		&result.RoleDeleteWindowSeconds,
		&result.JoinThreshold,
		&result.JoinWindowSeconds,
		&result.SpamMessages,
		&result.SpamWindowSeconds,
		&lockdownUntil,
		&result.PrevJoinGate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return GuildSettings{}, err
	}
	if lockdownUntil > 0 {
		result.LockdownUntil = time.Unix(lockdownUntil, 0)
	}
	return result, nil
}

func (s *Store) UpsertGuildSettings(ctx context.Context, settings GuildSettings) error {
	var lockdownUntil int64
	if !settings.LockdownUntil.IsZero() {
		lockdownUntil = settings.LockdownUntil.Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings (
			guild_id, log_channel, escalation_mode, escalation_dedupe, retention_days,
			ban_threshold, ban_window_seconds, kick_threshold, kick_window_seconds,
			channel_delete_threshold, channel_delete_window_seconds,
			role_delete_threshold, role_delete_window_seconds,
			join_threshold, join_window_seconds, spam_messages, spam_window_seconds,
			lockdown_until, prev_join_gate
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			log_channel = excluded.log_channel,
			escalation_mode = excluded.escalation_mode,
			escalation_dedupe = excluded.escalation_dedupe,
			retention_days = excluded.retention_days,
			ban_threshold = excluded.ban_threshold,
			ban_window_seconds = excluded.ban_window_seconds,
			kick_threshold = excluded.kick_threshold,
			kick_window_seconds = excluded.kick_window_seconds,
			channel_delete_threshold = excluded.channel_delete_threshold,
			channel_delete_window_seconds = excluded.channel_delete_window_seconds,
			role_delete_threshold = excluded.role_delete_threshold,
			role_delete_window_seconds = excluded.role_delete_window_seconds,
			join_threshold = excluded.join_threshold,
			join_window_seconds = excluded.join_window_seconds,
			spam_messages = excluded.spam_messages,
			spam_window_seconds = excluded.spam_window_seconds,
			lockdown_until = excluded.lockdown_until,
			prev_join_gate = excluded.prev_join_gate
	`,
		settings.GuildID,
		settings.LogChannel,
		settings.EscalationMode,
		settings.EscalationDedupe,
		settings.RetentionDays,
		settings.BanThreshold,
		settings.BanWindowSeconds,
		settings.KickThreshold,
		settings.KickWindowSeconds,
		settings.ChannelDeleteThreshold,
		settings.ChannelDeleteWindowSeconds,
		settings.RoleDeleteThreshold,
		settings.RoleDeleteWindowSeconds,
		settings.JoinThreshold,
		settings.JoinWindowSeconds,
		settings.SpamMessages,
		settings.SpamWindowSeconds,
		lockdownUntil,
		settings.PrevJoinGate,
	)
	return err
}

func (s *Store) AddAuditLog(ctx context.Context, log AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (guild_id, user_id, level, event, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, log.GuildID, log.UserID, log.Level, log.Event, log.Details, log.CreatedAt.Unix())
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]AuditLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, level, event, details, created_at
		FROM audit_logs
		WHERE guild_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var log AuditLog
		var created int64
		if err := rows.Scan(&log.ID, &log.GuildID, &log.UserID, &log.Level, &log.Event, &log.Details, &created); err != nil {
			return nil, err
		}
		log.CreatedAt = time.Unix(created, 0)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (s *Store) CleanupAuditLogs(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	_, err := s.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < ?`, cutoff.Unix())
	return err
}

func (s *Store) AddExemptUser(ctx context.Context, guildID, userID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO exempt_users (guild_id, user_id) VALUES (?, ?)`, guildID, userID)
	return err
}

func (s *Store) RemoveExemptUser(ctx context.Context, guildID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM exempt_users WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	return err
}

func (s *Store) ListExemptUsers(ctx context.Context, guildID string) ([]string, error) {
	return s.listIDs(ctx, `SELECT user_id FROM exempt_users WHERE guild_id = ? ORDER BY user_id`, guildID)
}

func (s *Store) AddExemptRole(ctx context.Context, guildID, roleID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO exempt_roles (guild_id, role_id) VALUES (?, ?)`, guildID, roleID)
	return err
}

func (s *Store) RemoveExemptRole(ctx context.Context, guildID, roleID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM exempt_roles WHERE guild_id = ? AND role_id = ?`, guildID, roleID)
	return err
}

func (s *Store) ListExemptRoles(ctx context.Context, guildID string) ([]string, error) {
	return s.listIDs(ctx, `SELECT role_id FROM exempt_roles WHERE guild_id = ? ORDER BY role_id`, guildID)
}

// IsExempt reports whether the user, or any of the roles they hold, is on
// the guild's exemption lists.
func (s *Store) IsExempt(ctx context.Context, guildID, userID string, roleIDs []string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM exempt_users WHERE guild_id = ? AND user_id = ?
	`, guildID, userID).Scan(&n)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	for _, roleID := range roleIDs {
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM exempt_roles WHERE guild_id = ? AND role_id = ?
		`, guildID, roleID).Scan(&n)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) AddDomainAllow(ctx context.Context, guildID, domain string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO domain_allowlist (guild_id, domain) VALUES (?, ?)`, guildID, strings.ToLower(domain))
	return err
}

func (s *Store) RemoveDomainAllow(ctx context.Context, guildID, domain string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM domain_allowlist WHERE guild_id = ? AND domain = ?`, guildID, strings.ToLower(domain))
	return err
}

func (s *Store) ListDomainAllow(ctx context.Context, guildID string) ([]string, error) {
	return s.listIDs(ctx, `SELECT domain FROM domain_allowlist WHERE guild_id = ? ORDER BY domain`, guildID)
}

func (s *Store) AddDomainBlock(ctx context.Context, guildID, domain string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO domain_blocklist (guild_id, domain) VALUES (?, ?)`, guildID, strings.ToLower(domain))
	return err
}

func (s *Store) RemoveDomainBlock(ctx context.Context, guildID, domain string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM domain_blocklist WHERE guild_id = ? AND domain = ?`, guildID, strings.ToLower(domain))
	return err
}

func (s *Store) ListDomainBlock(ctx context.Context, guildID string) ([]string, error) {
	return s.listIDs(ctx, `SELECT domain FROM domain_blocklist WHERE guild_id = ? ORDER BY domain`, guildID)
}

func (s *Store) listIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
