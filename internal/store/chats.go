package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Chats provides access to chat records and their member lists.
type Chats struct{}

// NewChats creates a Chats accessor.
func NewChats() *Chats { return &Chats{} }

// Upsert writes a chat and replaces its member list. Re-admitting a chat
// that was previously soft-deleted resets is_deleted, so a fresh admission
// needs no special-casing.
func (c *Chats) Upsert(ctx context.Context, q Queryer, chat *Chat) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO chats (id, bot_id, admin_id, is_group, is_deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			bot_id = excluded.bot_id,
			admin_id = excluded.admin_id,
			is_group = excluded.is_group,
			is_deleted = excluded.is_deleted,
			created_at = excluded.created_at
	`, chat.ID, chat.BotID, chat.AdminID, chat.IsGroup, chat.IsDeleted, chat.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM chat_members WHERE chat_id = ?`, chat.ID); err != nil {
		return fmt.Errorf("reset chat members: %w", err)
	}
	for _, m := range chat.Members {
		_, err := q.ExecContext(ctx, `
			INSERT INTO chat_members (chat_id, member_id, is_admin, is_super_admin)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(chat_id, member_id) DO NOTHING
		`, chat.ID, m.ID, m.IsAdmin, m.IsSuperAdmin)
		if err != nil {
			return fmt.Errorf("insert chat member: %w", err)
		}
	}
	return nil
}

// Get returns a chat with its members.
func (c *Chats) Get(ctx context.Context, q Queryer, id string) (*Chat, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, bot_id, admin_id, is_group, is_deleted, created_at
		FROM chats WHERE id = ?
	`, id)

	var chat Chat
	err := row.Scan(&chat.ID, &chat.BotID, &chat.AdminID, &chat.IsGroup, &chat.IsDeleted, &chat.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT member_id, is_admin, is_super_admin
		FROM chat_members WHERE chat_id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get chat members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.IsAdmin, &m.IsSuperAdmin); err != nil {
			return nil, fmt.Errorf("scan chat member: %w", err)
		}
		chat.Members = append(chat.Members, m)
	}
	return &chat, rows.Err()
}

// GetActive returns a chat only when it exists and is not soft-deleted.
// Retired chats refuse further ingestion and summarization.
func (c *Chats) GetActive(ctx context.Context, q Queryer, id string) (*Chat, error) {
	chat, err := c.Get(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if chat.IsDeleted {
		return nil, ErrNotFound
	}
	return chat, nil
}

// ListActiveByBot returns the non-deleted chats owned by a bot, without
// member lists.
func (c *Chats) ListActiveByBot(ctx context.Context, q Queryer, botID string) ([]Chat, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, bot_id, admin_id, is_group, is_deleted, created_at
		FROM chats WHERE bot_id = ? AND is_deleted = 0
	`, botID)
	if err != nil {
		return nil, fmt.Errorf("list active chats: %w", err)
	}
	defer rows.Close()

	var out []Chat
	for rows.Next() {
		var chat Chat
		if err := rows.Scan(&chat.ID, &chat.BotID, &chat.AdminID, &chat.IsGroup, &chat.IsDeleted, &chat.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		out = append(out, chat)
	}
	return out, rows.Err()
}

// SoftDelete marks a chat deleted. The record stays queryable by id but is
// excluded from active use.
func (c *Chats) SoftDelete(ctx context.Context, q Queryer, id string) error {
	_, err := q.ExecContext(ctx, `UPDATE chats SET is_deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("soft delete chat: %w", err)
	}
	return nil
}
