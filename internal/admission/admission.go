// Package admission runs the transactional join/leave workflow that admits
// a bot into a group chat and later retires it.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/groupscribe/groupscribe/internal/bus"
	"github.com/groupscribe/groupscribe/internal/command"
	"github.com/groupscribe/groupscribe/internal/notify"
	"github.com/groupscribe/groupscribe/internal/session"
	"github.com/groupscribe/groupscribe/internal/store"
)

// Admission sentinels. They classify why a join or leave was refused;
// callers report them to the chat and, when an address is known, to the
// admin's email.
var (
	ErrNoClientRegistered = errors.New("no bot client registered for this phone")
	ErrNotAGroupChat      = errors.New("chat is not a group conversation")
	ErrQuotaExceeded      = errors.New("invite quota exceeded")
	ErrWrongInviter       = errors.New("inviter is not the registered admin")
)

// Dispatcher resolves post-admission commands. Satisfied by
// command.Registry directly or by a queue publisher when dispatch is
// deferred.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, p command.Payload) error
}

// Controller validates admission events and keeps the client quota, chat
// records and live sessions consistent.
type Controller struct {
	store      *store.Store
	clients    *store.BotClients
	chats      *store.Chats
	messages   *store.Messages
	sessions   *session.Registry
	dispatcher Dispatcher
	mailer     notify.Notifier
	replies    func(*bus.Reply)
}

// NewController wires the admission workflow.
func NewController(s *store.Store, sessions *session.Registry, d Dispatcher, mailer notify.Notifier, replies func(*bus.Reply)) *Controller {
	return &Controller{
		store:      s,
		clients:    store.NewBotClients(),
		chats:      store.NewChats(),
		messages:   store.NewMessages(),
		sessions:   sessions,
		dispatcher: d,
		mailer:     mailer,
		replies:    replies,
	}
}

// Join admits the bot into a group. The quota increment and the chat
// upsert commit together or not at all. On success the initialize command
// (which chains into help) is dispatched post-commit; its failure is
// logged, never rolled back. On refusal the chat gets a notice and the
// admin an email when one is on file.
func (c *Controller) Join(ctx context.Context, ev *bus.GroupEvent) error {
	if _, err := c.sessions.Lookup(ev.BotPhone); err != nil {
		// Event for a bot this process is not serving.
		return nil
	}

	var client *store.BotClient
	err := c.store.ExecTx(ctx, func(q store.Queryer) error {
		var err error
		client, err = c.clients.GetByPhone(ctx, q, ev.BotPhone)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoClientRegistered
		}
		if err != nil {
			return err
		}
		if !ev.IsGroup {
			return ErrNotAGroupChat
		}
		if client.AdminPhone != "" && ev.InviterID != "" && ev.InviterID != client.AdminPhone {
			return ErrWrongInviter
		}
		if err := c.clients.IncrementInvites(ctx, q, client.ID); err != nil {
			if errors.Is(err, store.ErrQuota) {
				return ErrQuotaExceeded
			}
			return err
		}

		chat := &store.Chat{
			ID:        ev.ChatID,
			BotID:     client.BotID,
			AdminID:   ev.InviterID,
			IsGroup:   true,
			IsDeleted: false,
			CreatedAt: ev.Timestamp.Unix(),
		}
		for _, m := range ev.Members {
			chat.Members = append(chat.Members, store.Member{ID: m})
		}
		return c.chats.Upsert(ctx, q, chat)
	})
	if err != nil {
		c.refuse(ev, client, err)
		return fmt.Errorf("join chat %s: %w", ev.ChatID, err)
	}

	if err := c.sessions.Attach(ev.BotPhone, ev.ChatID); err != nil {
		log.Printf("admission: attach %s to %s: %v", ev.BotPhone, ev.ChatID, err)
	}

	payload := command.Payload{
		BotID:      client.BotID,
		BotPhone:   ev.BotPhone,
		ChatID:     ev.ChatID,
		AdminEmail: client.Email,
	}
	if err := c.dispatcher.Dispatch(ctx, command.Initialize, payload); err != nil {
		log.Printf("admission: post-join initialize for %s: %v", ev.ChatID, err)
	}
	return nil
}

// Leave retires a chat: soft-delete, quota refund and message purge commit
// atomically. The session detach happens regardless.
func (c *Controller) Leave(ctx context.Context, ev *bus.GroupEvent) error {
	defer c.sessions.Detach(ev.BotPhone, ev.ChatID)

	err := c.store.ExecTx(ctx, func(q store.Queryer) error {
		client, err := c.clients.GetByPhone(ctx, q, ev.BotPhone)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoClientRegistered
		}
		if err != nil {
			return err
		}
		if err := c.chats.SoftDelete(ctx, q, ev.ChatID); err != nil {
			return err
		}
		if err := c.clients.DecrementInvites(ctx, q, client.ID); err != nil {
			return err
		}
		return c.messages.DeleteByChat(ctx, q, ev.ChatID)
	})
	if err != nil {
		return fmt.Errorf("leave chat %s: %w", ev.ChatID, err)
	}
	return nil
}

// refuse reports a failed join to the chat and to the admin email.
func (c *Controller) refuse(ev *bus.GroupEvent, client *store.BotClient, cause error) {
	if c.replies != nil {
		c.replies(&bus.Reply{
			BotPhone: ev.BotPhone,
			ChatID:   ev.ChatID,
			Content:  refusalNotice(cause),
		})
	}
	if client == nil || client.Email == "" || c.mailer == nil {
		return
	}
	subject := "Group admission failed"
	body := fmt.Sprintf("The bot %s could not join group %q at %s: %v.",
		client.Phone, ev.ChatName, time.Now().Format(time.RFC1123), cause)
	if err := c.mailer.Send(client.Email, subject, body); err != nil {
		log.Printf("admission: notify %s: %v", client.Email, err)
	}
}

func refusalNotice(cause error) string {
	switch {
	case errors.Is(cause, ErrNoClientRegistered):
		return "I am not provisioned for this number yet. Please contact support."
	case errors.Is(cause, ErrNotAGroupChat):
		return "I can only be added to group conversations."
	case errors.Is(cause, ErrQuotaExceeded):
		return "This account has reached its group limit. I will not follow this conversation."
	case errors.Is(cause, ErrWrongInviter):
		return "Only the registered administrator can add me to a group."
	default:
		return "I could not join this group right now. Please try again later."
	}
}
