package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/groupscribe/groupscribe/internal/bus"
	"github.com/groupscribe/groupscribe/internal/command"
	"github.com/groupscribe/groupscribe/internal/store"
)

// HistorySource yields past messages of a chat for backfill. The
// transport provides what the platform exposes, which may be nothing.
type HistorySource interface {
	History(ctx context.Context, chatID string) ([]*bus.GroupEvent, error)
}

// Initializer backfills a freshly admitted chat's message history through
// the ingestion pipeline. It implements the initialize command.
type Initializer struct {
	store    *store.Store
	chats    *store.Chats
	pipeline *Pipeline
	history  HistorySource
}

// NewInitializer wires the backfill handler.
func NewInitializer(s *store.Store, pipeline *Pipeline, history HistorySource) *Initializer {
	return &Initializer{
		store:    s,
		chats:    store.NewChats(),
		pipeline: pipeline,
		history:  history,
	}
}

// Resolve implements command.Handler. Backfill is best-effort per
// message: one bad historical message is logged and skipped.
func (i *Initializer) Resolve(ctx context.Context, p command.Payload) error {
	if _, err := i.chats.GetActive(ctx, i.store.DB(), p.ChatID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("chat %s is not admitted", p.ChatID)
		}
		return err
	}
	if i.history == nil {
		return nil
	}

	events, err := i.history.History(ctx, p.ChatID)
	if err != nil {
		return fmt.Errorf("fetch history for %s: %w", p.ChatID, err)
	}
	for _, ev := range events {
		if err := i.pipeline.Ingest(ctx, ev); err != nil {
			log.Printf("ingest: backfill message %s in %s: %v", ev.MessageID, p.ChatID, err)
		}
	}
	return nil
}
