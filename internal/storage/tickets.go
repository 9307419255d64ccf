package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Ticket struct {
	GuildID   string
	Seq       int64
	UserID    string
	ChannelID string
	Open      bool
	CreatedAt time.Time
	ClosedAt  time.Time
}

// OpenTicket allocates the next per-guild sequence number and records the
// ticket inside a single transaction so concurrent opens cannot collide.
func (s *Store) OpenTicket(ctx context.Context, guildID, userID string, now time.Time) (Ticket, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Ticket{}, err
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM tickets WHERE guild_id = ?
	`, guildID).Scan(&seq); err != nil {
		return Ticket{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tickets (guild_id, seq, user_id, created_at)
		VALUES (?, ?, ?, ?)
	`, guildID, seq, userID, now.Unix()); err != nil {
		return Ticket{}, err
	}
	if err := tx.Commit(); err != nil {
		return Ticket{}, err
	}
	return Ticket{GuildID: guildID, Seq: seq, UserID: userID, Open: true, CreatedAt: now}, nil
}

func (s *Store) SetTicketChannel(ctx context.Context, guildID string, seq int64, channelID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tickets SET channel_id = ? WHERE guild_id = ? AND seq = ?
	`, channelID, guildID, seq)
	return err
}

func (s *Store) CloseTicket(ctx context.Context, guildID string, seq int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tickets SET open = 0, closed_at = ? WHERE guild_id = ? AND seq = ? AND open = 1
	`, now.Unix(), guildID, seq)
	return err
}

// GetOpenTicketByChannel resolves the ticket bound to a channel, used when a
// close command runs inside the ticket channel itself.
func (s *Store) GetOpenTicketByChannel(ctx context.Context, channelID string) (Ticket, bool, error) {
	var (
		t         Ticket
		open      int64
		createdAt int64
		closedAt  int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT guild_id, seq, user_id, channel_id, open, created_at, closed_at
		FROM tickets WHERE channel_id = ? AND open = 1
	`, channelID).Scan(&t.GuildID, &t.Seq, &t.UserID, &t.ChannelID, &open, &createdAt, &closedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Ticket{}, false, nil
		}
		return Ticket{}, false, err
	}
	t.Open = open != 0
	t.CreatedAt = time.Unix(createdAt, 0)
	if closedAt > 0 {
		t.ClosedAt = time.Unix(closedAt, 0)
	}
	return t, true, nil
}

func (s *Store) CountOpenTickets(ctx context.Context, guildID, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tickets WHERE guild_id = ? AND user_id = ? AND open = 1
	`, guildID, userID).Scan(&n)
	return n, err
}
