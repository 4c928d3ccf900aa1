package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrQuota is returned when an invite increment would exceed the bot
// client's maximum invite count.
var ErrQuota = errors.New("invite quota exhausted")

// BotClients provides access to provisioned bot identities.
type BotClients struct{}

// NewBotClients creates a BotClients accessor.
func NewBotClients() *BotClients { return &BotClients{} }

// Create inserts a new bot client. The ID is generated when empty.
func (b *BotClients) Create(ctx context.Context, q Queryer, bc *BotClient) error {
	if bc.ID == "" {
		bc.ID = uuid.NewString()
	}
	if bc.CreatedAt == 0 {
		bc.CreatedAt = time.Now().Unix()
	}
	if bc.MaxInviteCount <= 0 {
		bc.MaxInviteCount = 1
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO bot_clients (id, phone, admin_phone, email, bot_id, invite_count, max_invite_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, bc.ID, bc.Phone, bc.AdminPhone, bc.Email, bc.BotID, bc.InviteCount, bc.MaxInviteCount, bc.CreatedAt)
	if err != nil {
		return fmt.Errorf("create bot client: %w", err)
	}
	return nil
}

// GetByPhone resolves a bot client by its phone number.
func (b *BotClients) GetByPhone(ctx context.Context, q Queryer, phone string) (*BotClient, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, phone, admin_phone, email, bot_id, invite_count, max_invite_count, created_at
		FROM bot_clients WHERE phone = ?
	`, phone)

	var bc BotClient
	err := row.Scan(&bc.ID, &bc.Phone, &bc.AdminPhone, &bc.Email, &bc.BotID,
		&bc.InviteCount, &bc.MaxInviteCount, &bc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bot client: %w", err)
	}
	return &bc, nil
}

// IncrementInvites bumps invite_count by one. The guard clause keeps the
// count at or below max_invite_count; a no-op update means the quota is
// already spent.
func (b *BotClients) IncrementInvites(ctx context.Context, q Queryer, id string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE bot_clients SET invite_count = invite_count + 1
		WHERE id = ? AND invite_count < max_invite_count
	`, id)
	if err != nil {
		return fmt.Errorf("increment invites: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment invites: %w", err)
	}
	if n == 0 {
		return ErrQuota
	}
	return nil
}

// DecrementInvites lowers invite_count by one, flooring at zero.
func (b *BotClients) DecrementInvites(ctx context.Context, q Queryer, id string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE bot_clients SET invite_count = MAX(invite_count - 1, 0)
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("decrement invites: %w", err)
	}
	return nil
}
