// Package bus provides the async event bus between the chat transport and
// the bot core. The transport publishes group events; the core consumes
// them and publishes replies back.
package bus

import (
	"context"
	"log"
	"sync"
	"time"
)

// Event kinds published by the transport.
const (
	KindJoin    = "join"
	KindLeave   = "leave"
	KindMessage = "message"
)

// GroupEvent is one thing that happened in a group chat: the bot was added,
// the bot was removed, or a member sent a message.
type GroupEvent struct {
	Kind      string    `json:"kind"`
	BotPhone  string    `json:"bot_phone"`
	ChatID    string    `json:"chat_id"`
	ChatName  string    `json:"chat_name,omitempty"`
	SenderJID string    `json:"sender_jid,omitempty"`
	InviterID string    `json:"inviter_id,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Content   string    `json:"content,omitempty"`
	Mentions  []string  `json:"mentions,omitempty"`
	Members   []string  `json:"members,omitempty"`
	IsGroup   bool      `json:"is_group,omitempty"`
	HasMedia  bool      `json:"has_media,omitempty"`
	FromSelf  bool      `json:"from_self,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Reply is a message from the core back to a chat.
type Reply struct {
	BotPhone string `json:"bot_phone"`
	ChatID   string `json:"chat_id"`
	Content  string `json:"content"`
}

// EventBus decouples the transport from event handling.
type EventBus struct {
	events  chan *GroupEvent
	replies chan *Reply
	subs    map[string][]func(*Reply)
	mu      sync.RWMutex
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		events:  make(chan *GroupEvent, 100),
		replies: make(chan *Reply, 100),
		subs:    make(map[string][]func(*Reply)),
	}
}

// PublishEvent sends a group event to the core.
func (b *EventBus) PublishEvent(ev *GroupEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.events <- ev
}

// ConsumeEvent blocks until an event is available or context is cancelled.
func (b *EventBus) ConsumeEvent(ctx context.Context) (*GroupEvent, error) {
	select {
	case ev := <-b.events:
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PublishReply sends a reply from the core to the owning transport.
func (b *EventBus) PublishReply(r *Reply) {
	b.replies <- r
}

// Subscribe registers a callback for replies addressed to one bot phone.
func (b *EventBus) Subscribe(botPhone string, callback func(*Reply)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[botPhone] = append(b.subs[botPhone], callback)
}

// DispatchReplies runs the reply dispatcher. A panicking callback is
// contained so one bad reply cannot take the loop down.
// This should be run as a goroutine.
func (b *EventBus) DispatchReplies(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-b.replies:
			b.mu.RLock()
			callbacks := b.subs[r.BotPhone]
			b.mu.RUnlock()

			for _, cb := range callbacks {
				deliver(cb, r)
			}
		}
	}
}

func deliver(cb func(*Reply), r *Reply) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("bus: reply callback panic for chat %s: %v", r.ChatID, rec)
		}
	}()
	cb(r)
}

// EventsPending returns the number of queued group events.
func (b *EventBus) EventsPending() int {
	return len(b.events)
}

// RepliesPending returns the number of queued replies.
func (b *EventBus) RepliesPending() int {
	return len(b.replies)
}
