package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/groupscribe/groupscribe/internal/admission"
	"github.com/groupscribe/groupscribe/internal/bus"
	"github.com/groupscribe/groupscribe/internal/command"
	"github.com/groupscribe/groupscribe/internal/crypt"
	"github.com/groupscribe/groupscribe/internal/ingest"
	"github.com/groupscribe/groupscribe/internal/provider"
	"github.com/groupscribe/groupscribe/internal/session"
	"github.com/groupscribe/groupscribe/internal/store"
)

type recordingDispatcher struct {
	names    []string
	payloads []command.Payload
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, name string, p command.Payload) error {
	d.names = append(d.names, name)
	d.payloads = append(d.payloads, p)
	return nil
}

type staticEmbedder struct{}

func (staticEmbedder) Embed(ctx context.Context, req *provider.EmbeddingRequest) (*provider.EmbeddingResponse, error) {
	return &provider.EmbeddingResponse{Vector: []float32{1}}, nil
}

func setup(t *testing.T) (*Orchestrator, *store.Store, *recordingDispatcher) {
	t.Helper()
	s, err := store.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	enc, err := crypt.New("test-secret")
	if err != nil {
		t.Fatal(err)
	}

	clients := store.NewBotClients()
	client := &store.BotClient{
		Phone:          "5511999990000",
		Email:          "admin@example.com",
		BotID:          "bot-1",
		MaxInviteCount: 1,
	}
	err = s.ExecTx(context.Background(), func(q store.Queryer) error {
		return clients.Create(context.Background(), q, client)
	})
	if err != nil {
		t.Fatal(err)
	}

	sessions := session.NewRegistry()
	sessions.Register("bot-1", "5511999990000")

	dispatcher := &recordingDispatcher{}
	eventBus := bus.NewEventBus()
	pipeline := ingest.NewPipeline(s, enc, staticEmbedder{})
	ctrl := admission.NewController(s, sessions, dispatcher, nil, nil)

	return New(eventBus, ctrl, pipeline, dispatcher, s), s, dispatcher
}

func messageEvent(content string) *bus.GroupEvent {
	return &bus.GroupEvent{
		Kind:      bus.KindMessage,
		BotPhone:  "5511999990000",
		ChatID:    "chat@g.us",
		SenderJID: "5511777770000@s.whatsapp.net",
		MessageID: "MSG1",
		Content:   content,
		IsGroup:   true,
		Timestamp: time.Unix(1700000000, 0),
	}
}

func TestRouteMessage_CommandDispatch(t *testing.T) {
	o, _, dispatcher := setup(t)

	if err := o.routeMessage(context.Background(), messageEvent("@5511999990000 /summarize today")); err != nil {
		t.Fatal(err)
	}
	if len(dispatcher.names) != 1 || dispatcher.names[0] != command.Summarize {
		t.Fatalf("dispatched %v", dispatcher.names)
	}
	p := dispatcher.payloads[0]
	if p.Action != "today" || p.BotID != "bot-1" || p.AdminEmail != "admin@example.com" {
		t.Fatalf("payload %+v", p)
	}
}

func TestRouteMessage_BareMentionIsHelp(t *testing.T) {
	o, _, dispatcher := setup(t)

	if err := o.routeMessage(context.Background(), messageEvent("@5511999990000")); err != nil {
		t.Fatal(err)
	}
	if len(dispatcher.names) != 1 || dispatcher.names[0] != command.Help {
		t.Fatalf("dispatched %v", dispatcher.names)
	}
}

func TestRouteMessage_OtherMentionIsConversation(t *testing.T) {
	o, s, dispatcher := setup(t)
	ctx := context.Background()

	if err := o.routeMessage(ctx, messageEvent("@5511000000000 /summarize today")); err != nil {
		t.Fatal(err)
	}
	if len(dispatcher.names) != 0 {
		t.Fatalf("dispatched %v for a foreign mention", dispatcher.names)
	}
	messages := store.NewMessages()
	if n, _ := messages.CountByChat(ctx, s.DB(), "chat@g.us"); n == 0 {
		t.Fatal("foreign mention was not ingested as conversation")
	}
}

func TestRouteMessage_PlainTextIsIngested(t *testing.T) {
	o, s, dispatcher := setup(t)
	ctx := context.Background()

	if err := o.routeMessage(ctx, messageEvent("A perfectly ordinary remark.")); err != nil {
		t.Fatal(err)
	}
	if len(dispatcher.names) != 0 {
		t.Fatalf("dispatched %v for plain text", dispatcher.names)
	}
	messages := store.NewMessages()
	if n, _ := messages.CountByChat(ctx, s.DB(), "chat@g.us"); n != 1 {
		t.Fatalf("got %d fragments, want 1", n)
	}
}

func TestRouteMessage_UnprovisionedBotReplies(t *testing.T) {
	o, _, dispatcher := setup(t)
	ev := messageEvent("@5511999990000 /summarize today")
	ev.BotPhone = "5511000000000"
	ev.Content = "@5511000000000 /summarize today"

	if err := o.routeMessage(context.Background(), ev); err == nil {
		t.Fatal("expected error for an unprovisioned bot")
	}
	if len(dispatcher.names) != 0 {
		t.Fatalf("dispatched %v without a bot client", dispatcher.names)
	}
	if o.bus.RepliesPending() != 1 {
		t.Fatalf("%d replies pending, want 1 chat notice", o.bus.RepliesPending())
	}
}

func TestHandle_UnknownKindIsIgnored(t *testing.T) {
	o, _, dispatcher := setup(t)
	o.handle(context.Background(), &bus.GroupEvent{Kind: "unknown"})
	if len(dispatcher.names) != 0 {
		t.Fatalf("dispatched %v", dispatcher.names)
	}
}
