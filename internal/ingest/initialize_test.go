package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/groupscribe/groupscribe/internal/bus"
	"github.com/groupscribe/groupscribe/internal/command"
	"github.com/groupscribe/groupscribe/internal/store"
)

type fakeHistory struct {
	events []*bus.GroupEvent
}

func (f *fakeHistory) History(ctx context.Context, chatID string) ([]*bus.GroupEvent, error) {
	return f.events, nil
}

func admitChat(t *testing.T, s *store.Store, chatID string) {
	t.Helper()
	chats := store.NewChats()
	err := s.ExecTx(context.Background(), func(q store.Queryer) error {
		return chats.Upsert(context.Background(), q, &store.Chat{
			ID:        chatID,
			BotID:     "bot-1",
			IsGroup:   true,
			CreatedAt: time.Now().Unix(),
		})
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestInitializer_BackfillsHistory(t *testing.T) {
	p, s := setupPipeline(t, &fakeEmbedder{})
	ctx := context.Background()
	admitChat(t, s, "chat@g.us")

	history := &fakeHistory{events: []*bus.GroupEvent{
		func() *bus.GroupEvent { ev := messageEvent("Old message one."); ev.MessageID = "H1"; return ev }(),
		func() *bus.GroupEvent { ev := messageEvent("Old message two."); ev.MessageID = "H2"; return ev }(),
	}}
	init := NewInitializer(s, p, history)

	err := init.Resolve(ctx, command.Payload{BotID: "bot-1", ChatID: "chat@g.us"})
	if err != nil {
		t.Fatal(err)
	}

	messages := store.NewMessages()
	if n, _ := messages.CountByChat(ctx, s.DB(), "chat@g.us"); n != 2 {
		t.Fatalf("got %d fragments, want 2", n)
	}
}

func TestInitializer_RejectsUnadmittedChat(t *testing.T) {
	p, s := setupPipeline(t, &fakeEmbedder{})
	init := NewInitializer(s, p, &fakeHistory{})

	err := init.Resolve(context.Background(), command.Payload{BotID: "bot-1", ChatID: "stranger@g.us"})
	if err == nil {
		t.Fatal("expected error for a chat that was never admitted")
	}
}

func TestInitializer_NilHistorySource(t *testing.T) {
	p, s := setupPipeline(t, &fakeEmbedder{})
	admitChat(t, s, "chat@g.us")
	init := NewInitializer(s, p, nil)

	if err := init.Resolve(context.Background(), command.Payload{BotID: "bot-1", ChatID: "chat@g.us"}); err != nil {
		t.Fatal(err)
	}
}
