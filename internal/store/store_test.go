package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createClient(t *testing.T, s *Store, phone string, maxInvites int) *BotClient {
	t.Helper()
	client := &BotClient{
		Phone:          phone,
		AdminPhone:     "5511888880000",
		Email:          "admin@example.com",
		BotID:          "bot-" + phone,
		MaxInviteCount: maxInvites,
	}
	clients := NewBotClients()
	err := s.ExecTx(context.Background(), func(q Queryer) error {
		return clients.Create(context.Background(), q, client)
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestBotClients_GetByPhone(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	clients := NewBotClients()

	created := createClient(t, s, "5511999990000", 2)

	got, err := clients.GetByPhone(ctx, s.DB(), "5511999990000")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != created.ID || got.BotID != created.BotID || got.MaxInviteCount != 2 {
		t.Fatalf("got %+v", got)
	}

	if _, err := clients.GetByPhone(ctx, s.DB(), "0000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestBotClients_QuotaGuard(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	clients := NewBotClients()
	client := createClient(t, s, "5511999990000", 2)

	for i := 0; i < 2; i++ {
		err := s.ExecTx(ctx, func(q Queryer) error {
			return clients.IncrementInvites(ctx, q, client.ID)
		})
		if err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}

	err := s.ExecTx(ctx, func(q Queryer) error {
		return clients.IncrementInvites(ctx, q, client.ID)
	})
	if !errors.Is(err, ErrQuota) {
		t.Fatalf("got %v, want ErrQuota", err)
	}

	got, err := clients.GetByPhone(ctx, s.DB(), client.Phone)
	if err != nil {
		t.Fatal(err)
	}
	if got.InviteCount != 2 {
		t.Fatalf("invite count %d, want 2", got.InviteCount)
	}
}

func TestBotClients_ConcurrentIncrementsNeverExceedMax(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	clients := NewBotClients()
	client := createClient(t, s, "5511999990000", 3)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.ExecTx(ctx, func(q Queryer) error {
				return clients.IncrementInvites(ctx, q, client.ID)
			})
		}()
	}
	wg.Wait()

	got, err := clients.GetByPhone(ctx, s.DB(), client.Phone)
	if err != nil {
		t.Fatal(err)
	}
	if got.InviteCount != 3 {
		t.Fatalf("invite count %d, want 3", got.InviteCount)
	}
}

func TestBotClients_DecrementFloorsAtZero(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	clients := NewBotClients()
	client := createClient(t, s, "5511999990000", 1)

	err := s.ExecTx(ctx, func(q Queryer) error {
		return clients.DecrementInvites(ctx, q, client.ID)
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := clients.GetByPhone(ctx, s.DB(), client.Phone)
	if got.InviteCount != 0 {
		t.Fatalf("invite count %d, want 0", got.InviteCount)
	}
}

func TestChats_UpsertAndSoftDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	chats := NewChats()

	chat := &Chat{
		ID:      "120363@g.us",
		BotID:   "bot-1",
		AdminID: "5511888880000",
		IsGroup: true,
		Members: []Member{
			{ID: "5511888880000", IsAdmin: true},
			{ID: "5511777770000"},
		},
		CreatedAt: 1700000000,
	}
	err := s.ExecTx(ctx, func(q Queryer) error {
		return chats.Upsert(ctx, q, chat)
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := chats.GetActive(ctx, s.DB(), chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Members) != 2 {
		t.Fatalf("got %d members, want 2", len(got.Members))
	}

	err = s.ExecTx(ctx, func(q Queryer) error {
		return chats.SoftDelete(ctx, q, chat.ID)
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := chats.GetActive(ctx, s.DB(), chat.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound for soft-deleted chat", err)
	}
	// Still queryable by id.
	if _, err := chats.Get(ctx, s.DB(), chat.ID); err != nil {
		t.Fatalf("soft-deleted chat not queryable: %v", err)
	}
}

func TestChats_ReadmissionResetsDeleted(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	chats := NewChats()

	chat := &Chat{ID: "120363@g.us", BotID: "bot-1", IsGroup: true, CreatedAt: 1700000000}
	s.ExecTx(ctx, func(q Queryer) error { return chats.Upsert(ctx, q, chat) })
	s.ExecTx(ctx, func(q Queryer) error { return chats.SoftDelete(ctx, q, chat.ID) })

	// Fresh admission of the same chat id.
	chat.Members = []Member{{ID: "5511777770000"}}
	err := s.ExecTx(ctx, func(q Queryer) error { return chats.Upsert(ctx, q, chat) })
	if err != nil {
		t.Fatal(err)
	}

	got, err := chats.GetActive(ctx, s.DB(), chat.ID)
	if err != nil {
		t.Fatalf("readmitted chat not active: %v", err)
	}
	if len(got.Members) != 1 {
		t.Fatalf("got %d members, want 1", len(got.Members))
	}
}

func TestMessages_AddBatchIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	messages := NewMessages()

	fragments := []Message{
		{ID: "m1", ChunkIndex: 0, ChatID: "c1", Content: "aa|bb", SentBy: "u1", SentTo: "c1", CreatedAt: 100},
		{ID: "m1", ChunkIndex: 1, ChatID: "c1", Content: "cc|dd", SentBy: "u1", SentTo: "c1", CreatedAt: 100},
	}
	if err := messages.AddBatch(ctx, s, fragments); err != nil {
		t.Fatal(err)
	}
	// Redelivered event: same id and chunk indexes, new doc ids.
	redelivered := []Message{
		{ID: "m1", ChunkIndex: 0, ChatID: "c1", Content: "aa|bb", SentBy: "u1", SentTo: "c1", CreatedAt: 100},
		{ID: "m1", ChunkIndex: 1, ChatID: "c1", Content: "cc|dd", SentBy: "u1", SentTo: "c1", CreatedAt: 100},
	}
	if err := messages.AddBatch(ctx, s, redelivered); err != nil {
		t.Fatal(err)
	}

	n, err := messages.CountByChat(ctx, s.DB(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("got %d fragments after redelivery, want 2", n)
	}
}

func TestMessages_AddBatchSplitsLargeInputs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	messages := NewMessages()

	var fragments []Message
	for i := 0; i < MaxWritesPerBatch+250; i++ {
		fragments = append(fragments, Message{
			ID:         fmt.Sprintf("m%d", i),
			ChatID:     "c1",
			Content:    "aa|bb",
			SentBy:     "u1",
			SentTo:     "c1",
			CreatedAt:  int64(i),
			ChunkIndex: 0,
		})
	}
	if err := messages.AddBatch(ctx, s, fragments); err != nil {
		t.Fatal(err)
	}
	n, err := messages.CountByChat(ctx, s.DB(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if n != MaxWritesPerBatch+250 {
		t.Fatalf("got %d fragments, want %d", n, MaxWritesPerBatch+250)
	}
}

func TestMessages_RangeByChatOrder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	messages := NewMessages()

	fragments := []Message{
		{ID: "m2", ChunkIndex: 0, ChatID: "c1", Content: "x|x", SentBy: "u1", SentTo: "c1", CreatedAt: 200},
		{ID: "m1", ChunkIndex: 1, ChatID: "c1", Content: "x|x", SentBy: "u1", SentTo: "c1", CreatedAt: 100},
		{ID: "m1", ChunkIndex: 0, ChatID: "c1", Content: "x|x", SentBy: "u1", SentTo: "c1", CreatedAt: 100},
		{ID: "m3", ChunkIndex: 0, ChatID: "other", Content: "x|x", SentBy: "u1", SentTo: "other", CreatedAt: 150},
	}
	if err := messages.AddBatch(ctx, s, fragments); err != nil {
		t.Fatal(err)
	}

	got, err := messages.RangeByChat(ctx, s.DB(), "c1", 0, 300)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d fragments, want 3", len(got))
	}
	if got[0].ID != "m1" || got[0].ChunkIndex != 0 || got[1].ChunkIndex != 1 || got[2].ID != "m2" {
		t.Fatalf("wrong order: %+v", got)
	}

	// Range filter excludes out-of-window rows.
	got, err = messages.RangeByChat(ctx, s.DB(), "c1", 150, 300)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "m2" {
		t.Fatalf("got %+v, want only m2", got)
	}
}

func TestMessages_SimilaritySearch(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	messages := NewMessages()

	fragments := []Message{
		{ID: "m1", ChatID: "c1", Content: "x|x", SentBy: "u1", SentTo: "c1", CreatedAt: 1, Embedding: []float32{1, 0, 0}},
		{ID: "m2", ChatID: "c1", Content: "x|x", SentBy: "u1", SentTo: "c1", CreatedAt: 2, Embedding: []float32{0, 1, 0}},
		{ID: "m3", ChatID: "c1", Content: "x|x", SentBy: "u1", SentTo: "c1", CreatedAt: 3, Embedding: []float32{1, 1}},
	}
	if err := messages.AddBatch(ctx, s, fragments); err != nil {
		t.Fatal(err)
	}

	got, err := messages.SimilaritySearch(ctx, s.DB(), "c1", []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	// m3 has a mismatched dimension and is skipped.
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].ID != "m1" {
		t.Fatalf("nearest is %s, want m1", got[0].ID)
	}
}

func TestMessages_DeleteByChat(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	messages := NewMessages()

	fragments := []Message{
		{ID: "m1", ChatID: "c1", Content: "x|x", SentBy: "u1", SentTo: "c1", CreatedAt: 1},
		{ID: "m2", ChatID: "c2", Content: "x|x", SentBy: "u1", SentTo: "c2", CreatedAt: 1},
	}
	if err := messages.AddBatch(ctx, s, fragments); err != nil {
		t.Fatal(err)
	}

	err := s.ExecTx(ctx, func(q Queryer) error {
		return messages.DeleteByChat(ctx, q, "c1")
	})
	if err != nil {
		t.Fatal(err)
	}

	if n, _ := messages.CountByChat(ctx, s.DB(), "c1"); n != 0 {
		t.Fatalf("c1 still has %d fragments", n)
	}
	if n, _ := messages.CountByChat(ctx, s.DB(), "c2"); n != 1 {
		t.Fatalf("c2 has %d fragments, want 1", n)
	}
}
