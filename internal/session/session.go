// Package session tracks which bot client owns which group chat while the
// process is running. The registry is the only place that mapping lives;
// transports and handlers look clients up here instead of holding globals.
package session

import (
	"errors"
	"sync"
)

// ErrNotRegistered is returned when no client session exists for a phone.
var ErrNotRegistered = errors.New("no client session registered")

// Entry is one live client session.
type Entry struct {
	BotID    string
	BotPhone string
	// Chats holds the group JIDs this client is currently serving.
	Chats map[string]struct{}
}

// Registry is a concurrency-safe map of bot phone to live session.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry returns an empty session registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register creates or replaces the session for a bot phone.
func (r *Registry) Register(botID, botPhone string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[botPhone] = &Entry{
		BotID:    botID,
		BotPhone: botPhone,
		Chats:    make(map[string]struct{}),
	}
}

// Lookup returns the session for a bot phone.
func (r *Registry) Lookup(botPhone string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[botPhone]
	if !ok {
		return nil, ErrNotRegistered
	}
	return e, nil
}

// Attach records that a session is serving a chat.
func (r *Registry) Attach(botPhone, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[botPhone]
	if !ok {
		return ErrNotRegistered
	}
	e.Chats[chatID] = struct{}{}
	return nil
}

// Detach removes a chat from a session. Missing entries are a no-op;
// leave events can arrive after an eviction.
func (r *Registry) Detach(botPhone, chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[botPhone]; ok {
		delete(e.Chats, chatID)
	}
}

// Serving reports whether a session is attached to a chat.
func (r *Registry) Serving(botPhone, chatID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[botPhone]
	if !ok {
		return false
	}
	_, ok = e.Chats[chatID]
	return ok
}

// Evict drops the whole session for a bot phone.
func (r *Registry) Evict(botPhone string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, botPhone)
}
