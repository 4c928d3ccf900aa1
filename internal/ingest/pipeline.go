// Package ingest turns inbound group messages into encrypted, embedded
// fragments in the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/groupscribe/groupscribe/internal/bus"
	"github.com/groupscribe/groupscribe/internal/command"
	"github.com/groupscribe/groupscribe/internal/crypt"
	"github.com/groupscribe/groupscribe/internal/provider"
	"github.com/groupscribe/groupscribe/internal/store"
)

// Pipeline sanitizes, segments, embeds and encrypts one inbound message,
// then persists its fragments as a batch.
type Pipeline struct {
	store    *store.Store
	chats    *store.Chats
	messages *store.Messages
	enc      *crypt.Encrypter
	embedder provider.Embedder
}

// NewPipeline wires the ingestion stages together.
func NewPipeline(s *store.Store, enc *crypt.Encrypter, embedder provider.Embedder) *Pipeline {
	return &Pipeline{
		store:    s,
		chats:    store.NewChats(),
		messages: store.NewMessages(),
		enc:      enc,
		embedder: embedder,
	}
}

// Ingest processes one message event. Events that should not be stored
// (the bot's own sends, authorless system notices, media, command
// invocations, text that sanitizes to nothing) are skipped without error.
func (p *Pipeline) Ingest(ctx context.Context, ev *bus.GroupEvent) error {
	if ev.FromSelf {
		return nil
	}
	if ev.SenderJID == "" {
		return nil
	}
	if ev.HasMedia {
		// Media ingestion is not supported yet; the text caption, if any,
		// still arrives as its own event.
		log.Printf("ingest: skipping media message %s in chat %s", ev.MessageID, ev.ChatID)
		return nil
	}

	text := Sanitize(ev.Content)
	if text == "" {
		return nil
	}
	if _, isCommand := command.Parse(text); isCommand {
		return nil
	}

	// A retired chat stops accepting messages even if stray events still
	// arrive for it.
	chat, err := p.chats.Get(ctx, p.store.DB(), ev.ChatID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check chat %s: %w", ev.ChatID, err)
	}
	if chat != nil && chat.IsDeleted {
		log.Printf("ingest: dropping message %s for retired chat %s", ev.MessageID, ev.ChatID)
		return nil
	}

	fragments := Segment(text)
	msgs := make([]store.Message, len(fragments))

	g, gctx := errgroup.WithContext(ctx)
	for i, frag := range fragments {
		g.Go(func() error {
			resp, err := p.embedder.Embed(gctx, &provider.EmbeddingRequest{Input: frag})
			if err != nil {
				return fmt.Errorf("embed fragment %d: %w", i, err)
			}
			ct, err := p.enc.Encrypt(frag)
			if err != nil {
				return fmt.Errorf("encrypt fragment %d: %w", i, err)
			}
			msgs[i] = store.Message{
				ID:           ev.MessageID,
				ChunkIndex:   i,
				ChatID:       ev.ChatID,
				Content:      ct,
				SentBy:       ev.SenderJID,
				SentTo:       ev.ChatID,
				MentionedIDs: ev.Mentions,
				CreatedAt:    ev.Timestamp.Unix(),
			}
			msgs[i].Embedding = resp.Vector
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("ingest message %s: %w", ev.MessageID, err)
	}

	if err := p.messages.AddBatch(ctx, p.store, msgs); err != nil {
		return fmt.Errorf("persist message %s: %w", ev.MessageID, err)
	}
	return nil
}
