// Package summarize answers on-demand summary requests: it resolves a
// human time expression into a query range, assembles the decrypted
// transcript and invokes the model with bounded retry.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/groupscribe/groupscribe/internal/bus"
	"github.com/groupscribe/groupscribe/internal/command"
	"github.com/groupscribe/groupscribe/internal/crypt"
	"github.com/groupscribe/groupscribe/internal/provider"
	"github.com/groupscribe/groupscribe/internal/store"
	"github.com/groupscribe/groupscribe/internal/timerange"
)

// User-facing replies. Kept as constants so tests and handlers agree on
// the exact wording.
const (
	FormatHelp = "I could not understand that period. Try \"today\", \"yesterday\", " +
		"\"last month\", a date like 14/03/2024, or a range like 14/03/2024 - 20/03/2024."
	NothingToSummarize = "There is nothing to summarize for that period."
	Apology            = "Sorry, I could not produce a summary right now. Please try again later."
)

const styleInstruction = `You summarize group chat transcripts. Keep the summary under 300 words, group related topics together, attribute notable statements to their speakers, and preserve the overall tone of the conversation. Reply in the language the conversation uses.`

// NameResolver turns a sender JID into a display name. The transport
// provides it; an empty result falls back to the phone number.
type NameResolver interface {
	ContactName(ctx context.Context, jid string) string
}

// Engine builds transcripts and calls the model.
type Engine struct {
	store       *store.Store
	chats       *store.Chats
	messages    *store.Messages
	enc         *crypt.Encrypter
	chat        provider.ChatProvider
	names       NameResolver
	replies     func(*bus.Reply)
	maxAttempts int
	retryDelay  time.Duration
}

// NewEngine wires the summarization pipeline. maxAttempts counts total
// model calls, not retries.
func NewEngine(s *store.Store, enc *crypt.Encrypter, chat provider.ChatProvider, names NameResolver, replies func(*bus.Reply), maxAttempts int, retryDelay time.Duration) *Engine {
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	if retryDelay <= 0 {
		retryDelay = 300 * time.Millisecond
	}
	return &Engine{
		store:       s,
		chats:       store.NewChats(),
		messages:    store.NewMessages(),
		enc:         enc,
		chat:        chat,
		names:       names,
		replies:     replies,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
	}
}

// Resolve implements command.Handler. Every outcome, including failure,
// becomes a chat reply; errors never escape the summarization boundary.
func (e *Engine) Resolve(ctx context.Context, p command.Payload) error {
	e.reply(p, e.run(ctx, p))
	return nil
}

// run produces the reply text for one request.
func (e *Engine) run(ctx context.Context, p command.Payload) string {
	if strings.TrimSpace(p.Action) == "" {
		return FormatHelp
	}
	r := timerange.Resolve(p.Action)
	if r == nil {
		return FormatHelp
	}

	// Retired chats do not get summaries, even when fragments somehow
	// survived the leave purge.
	chat, err := e.chats.Get(ctx, e.store.DB(), p.ChatID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("summarize: check chat %s: %v", p.ChatID, err)
		return Apology
	}
	if chat != nil && chat.IsDeleted {
		return NothingToSummarize
	}

	fragments, err := e.messages.RangeByChat(ctx, e.store.DB(), p.ChatID, r.From, r.To)
	if err != nil {
		log.Printf("summarize: range query for %s: %v", p.ChatID, err)
		return Apology
	}
	if len(fragments) == 0 {
		return NothingToSummarize
	}

	transcript, err := e.buildTranscript(ctx, fragments)
	if err != nil {
		log.Printf("summarize: transcript for %s: %v", p.ChatID, err)
		return Apology
	}

	resp := e.callWithRetry(ctx, &provider.ChatRequest{
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: styleInstruction},
			{Role: provider.RoleUser, Content: transcript},
		},
	})
	if resp == nil {
		return Apology
	}
	return resp.Content
}

// buildTranscript renders one line per source message. Fragments arrive
// chronological with chunks of the same message in index order, so
// same-id chunks concatenate by appending.
func (e *Engine) buildTranscript(ctx context.Context, fragments []store.Message) (string, error) {
	names := make(map[string]string)
	displayName := func(jid string) string {
		if name, ok := names[jid]; ok {
			return name
		}
		name := ""
		if e.names != nil {
			name = e.names.ContactName(ctx, jid)
		}
		if name == "" {
			name = phoneOf(jid)
		}
		names[jid] = name
		return name
	}

	var b strings.Builder
	lastID := ""
	for _, f := range fragments {
		plain, err := e.enc.Decrypt(f.Content)
		if err != nil {
			if errors.Is(err, crypt.ErrMalformed) {
				log.Printf("summarize: skipping malformed fragment %s/%d", f.ID, f.ChunkIndex)
				continue
			}
			return "", fmt.Errorf("decrypt fragment %s/%d: %w", f.ID, f.ChunkIndex, err)
		}
		if f.ID == lastID {
			b.WriteString(" ")
			b.WriteString(plain)
			continue
		}
		if lastID != "" {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "At %s: @%s with name %s said %s",
			timerange.FormatDate(f.CreatedAt), phoneOf(f.SentBy), displayName(f.SentBy), plain)
		lastID = f.ID
	}
	return b.String(), nil
}

// callWithRetry makes up to maxAttempts sequential model calls with a
// fixed delay between them. Exhaustion yields nil, never an error.
func (e *Engine) callWithRetry(ctx context.Context, req *provider.ChatRequest) *provider.ChatResponse {
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		resp, err := e.chat.Chat(ctx, req)
		if err == nil {
			return resp
		}
		log.Printf("summarize: model call attempt %d/%d: %v", attempt+1, e.maxAttempts, err)
		if attempt == e.maxAttempts-1 {
			break
		}
		select {
		case <-time.After(e.retryDelay):
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

func (e *Engine) reply(p command.Payload, text string) {
	if e.replies == nil {
		return
	}
	e.replies(&bus.Reply{BotPhone: p.BotPhone, ChatID: p.ChatID, Content: text})
}

// phoneOf strips the server part of a JID, leaving the phone digits.
func phoneOf(jid string) string {
	phone, _, _ := strings.Cut(jid, "@")
	return phone
}
