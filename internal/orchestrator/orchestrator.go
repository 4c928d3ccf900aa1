// Package orchestrator runs the per-tenant session loop: it consumes
// group events from the bus and routes them to admission, command
// dispatch or ingestion. A failure while handling one event is contained
// to that event.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/groupscribe/groupscribe/internal/admission"
	"github.com/groupscribe/groupscribe/internal/bus"
	"github.com/groupscribe/groupscribe/internal/command"
	"github.com/groupscribe/groupscribe/internal/ingest"
	"github.com/groupscribe/groupscribe/internal/store"
)

// Orchestrator wires the session event loop.
type Orchestrator struct {
	bus        *bus.EventBus
	admission  *admission.Controller
	pipeline   *ingest.Pipeline
	dispatcher admission.Dispatcher
	store      *store.Store
	clients    *store.BotClients
}

// New creates the orchestrator for one tenant session.
func New(eventBus *bus.EventBus, ctrl *admission.Controller, pipeline *ingest.Pipeline, dispatcher admission.Dispatcher, s *store.Store) *Orchestrator {
	return &Orchestrator{
		bus:        eventBus,
		admission:  ctrl,
		pipeline:   pipeline,
		dispatcher: dispatcher,
		store:      s,
		clients:    store.NewBotClients(),
	}
}

// Run consumes events until the context is cancelled. Event handling
// errors are logged, never returned: one bad message must not take the
// session down.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		ev, err := o.bus.ConsumeEvent(ctx)
		if err != nil {
			return err
		}
		o.handle(ctx, ev)
	}
}

func (o *Orchestrator) handle(ctx context.Context, ev *bus.GroupEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("orchestrator: panic handling %s event for chat %s: %v", ev.Kind, ev.ChatID, rec)
		}
	}()

	var err error
	switch ev.Kind {
	case bus.KindJoin:
		err = o.admission.Join(ctx, ev)
	case bus.KindLeave:
		err = o.admission.Leave(ctx, ev)
	case bus.KindMessage:
		err = o.routeMessage(ctx, ev)
	default:
		log.Printf("orchestrator: unknown event kind %q", ev.Kind)
		return
	}
	if err != nil {
		log.Printf("orchestrator: %s event for chat %s: %v", ev.Kind, ev.ChatID, err)
	}
}

// routeMessage decides whether a message is a command addressed to this
// bot or ordinary conversation. Commands addressed to other numbers are
// conversation too.
func (o *Orchestrator) routeMessage(ctx context.Context, ev *bus.GroupEvent) error {
	text := ingest.Sanitize(ev.Content)
	inv, ok := command.Parse(text)
	if !ok || inv.Phone != ev.BotPhone {
		return o.pipeline.Ingest(ctx, ev)
	}
	if ev.FromSelf {
		return nil
	}

	client, err := o.clients.GetByPhone(ctx, o.store.DB(), ev.BotPhone)
	if errors.Is(err, store.ErrNotFound) {
		o.bus.PublishReply(&bus.Reply{
			BotPhone: ev.BotPhone,
			ChatID:   ev.ChatID,
			Content:  "I am not provisioned for this number yet. Please contact support.",
		})
		return admission.ErrNoClientRegistered
	}
	if err != nil {
		return err
	}

	name := inv.Command
	if name == "" {
		name = command.Help
	}
	payload := command.Payload{
		BotID:      client.BotID,
		BotPhone:   ev.BotPhone,
		ChatID:     ev.ChatID,
		SenderJID:  ev.SenderJID,
		Action:     inv.Action,
		AdminEmail: client.Email,
	}
	if err := o.dispatcher.Dispatch(ctx, name, payload); err != nil {
		return fmt.Errorf("dispatch %s: %w", name, err)
	}
	return nil
}
