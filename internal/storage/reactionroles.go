package storage

import (
	"context"
	"database/sql"
	"errors"
)

type ReactionRole struct {
	GuildID   string
	MessageID string
	Emoji     string
	RoleID    string
}

func (s *Store) BindReactionRole(ctx context.Context, binding ReactionRole) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reaction_roles (guild_id, message_id, emoji, role_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(message_id, emoji) DO UPDATE SET role_id = excluded.role_id
	`, binding.GuildID, binding.MessageID, binding.Emoji, binding.RoleID)
	return err
}

func (s *Store) UnbindReactionRole(ctx context.Context, messageID, emoji string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM reaction_roles WHERE message_id = ? AND emoji = ?`, messageID, emoji)
	return err
}

// GetReactionRole returns the bound role ID or empty when no binding exists.
func (s *Store) GetReactionRole(ctx context.Context, messageID, emoji string) (string, error) {
	var roleID string
	err := s.db.QueryRowContext(ctx, `
		SELECT role_id FROM reaction_roles WHERE message_id = ? AND emoji = ?
	`, messageID, emoji).Scan(&roleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return roleID, nil
}

func (s *Store) ListReactionRoles(ctx context.Context, guildID string) ([]ReactionRole, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, message_id, emoji, role_id FROM reaction_roles WHERE guild_id = ? ORDER BY message_id, emoji
	`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReactionRole
	for rows.Next() {
		var binding ReactionRole
		if err := rows.Scan(&binding.GuildID, &binding.MessageID, &binding.Emoji, &binding.RoleID); err != nil {
			return nil, err
		}
		out = append(out, binding)
	}
	return out, rows.Err()
}
