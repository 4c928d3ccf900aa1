package command

import (
	"context"
	"fmt"
)

// Payload carries everything a handler needs to act on one invocation.
// It is JSON-encoded when dispatch is deferred through the queue.
type Payload struct {
	BotID      string `json:"bot_id"`
	BotPhone   string `json:"bot_phone"`
	ChatID     string `json:"chat_id"`
	SenderJID  string `json:"sender_jid"`
	Action     string `json:"action,omitempty"`
	AdminEmail string `json:"admin_email,omitempty"`
}

// Handler resolves one named command.
type Handler interface {
	Resolve(ctx context.Context, p Payload) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, p Payload) error

// Resolve calls f.
func (f HandlerFunc) Resolve(ctx context.Context, p Payload) error {
	return f(ctx, p)
}

// Registry maps command names to handlers. Handlers are registered once
// at startup; Dispatch is safe for concurrent use after that.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a name, replacing any previous binding.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Dispatch resolves the named command. An unregistered name is an error
// for the caller to report back to the chat. A successful Initialize is
// followed by Help so a freshly admitted group always sees usage.
func (r *Registry) Dispatch(ctx context.Context, name string, p Payload) error {
	h, ok := r.handlers[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	if err := h.Resolve(ctx, p); err != nil {
		return fmt.Errorf("command %s: %w", name, err)
	}
	if name == Initialize {
		return r.Dispatch(ctx, Help, p)
	}
	return nil
}
