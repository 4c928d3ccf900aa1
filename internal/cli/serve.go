package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/groupscribe/groupscribe/internal/admission"
	"github.com/groupscribe/groupscribe/internal/bus"
	"github.com/groupscribe/groupscribe/internal/command"
	"github.com/groupscribe/groupscribe/internal/config"
	"github.com/groupscribe/groupscribe/internal/crypt"
	"github.com/groupscribe/groupscribe/internal/ingest"
	"github.com/groupscribe/groupscribe/internal/notify"
	"github.com/groupscribe/groupscribe/internal/orchestrator"
	"github.com/groupscribe/groupscribe/internal/provider"
	"github.com/groupscribe/groupscribe/internal/queue"
	"github.com/groupscribe/groupscribe/internal/session"
	"github.com/groupscribe/groupscribe/internal/store"
	"github.com/groupscribe/groupscribe/internal/summarize"
	"github.com/groupscribe/groupscribe/internal/transport"
)

var serveAdminEmail string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tenant session (WhatsApp connection + event loop)",
	Run:   runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAdminEmail, "admin-email", "", "Email address for pairing QR codes")
}

func runServe(cmd *cobra.Command, args []string) {
	printHeader("📡 groupscribe serve")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}

	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		fmt.Printf("Store error: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	enc, err := crypt.New(cfg.Crypto.MessageKey)
	if err != nil {
		fmt.Printf("Encryption error: %v (set GROUPSCRIBE_MESSAGE_KEY)\n", err)
		os.Exit(1)
	}

	prov := provider.NewOpenAIProvider(cfg.Provider.APIKey, cfg.Provider.APIBase,
		cfg.Provider.ChatModel, cfg.Provider.EmbeddingModel)

	eventBus := bus.NewEventBus()
	mailer := notify.NewMailer(cfg.SMTP)
	sessions := session.NewRegistry()

	wa := transport.NewWhatsApp(cfg.WhatsApp, eventBus, mailer, serveAdminEmail)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := wa.Start(ctx); err != nil {
		fmt.Printf("WhatsApp error: %v\n", err)
		os.Exit(1)
	}
	defer wa.Stop()

	phone := wa.Phone()
	if phone == "" {
		if !cfg.WhatsApp.Enabled {
			fmt.Println("WhatsApp transport is disabled in the config, exiting")
		} else {
			fmt.Println("WhatsApp pairing incomplete, exiting")
		}
		os.Exit(1)
	}

	registerSession(ctx, s, sessions, phone)

	pipeline := ingest.NewPipeline(s, enc, prov)
	engine := summarize.NewEngine(s, enc, prov, wa, eventBus.PublishReply,
		cfg.Summarize.MaxAttempts, cfg.Summarize.RetryDelay)

	registry := command.NewRegistry()
	registry.Register(command.Help, command.HelpHandler(eventBus.PublishReply))
	registry.Register(command.Summarize, engine)
	registry.Register(command.Initialize, ingest.NewInitializer(s, pipeline, wa))

	var dispatcher admission.Dispatcher = registry
	if cfg.Queue.Enabled {
		publisher := queue.NewPublisher(cfg.Queue.Brokers, cfg.Queue.Topic)
		defer publisher.Close()
		consumer := queue.NewConsumer(cfg.Queue.Brokers, cfg.Queue.ConsumerGroup, cfg.Queue.Topic, registry)
		defer consumer.Close()
		go consumer.Run(ctx)
		dispatcher = publisher
		fmt.Printf("Queue:   ✓ Kafka dispatch via %s\n", cfg.Queue.Brokers)
	}

	ctrl := admission.NewController(s, sessions, dispatcher, mailer, eventBus.PublishReply)
	orch := orchestrator.New(eventBus, ctrl, pipeline, dispatcher, s)

	go eventBus.DispatchReplies(ctx)
	go orch.Run(ctx)

	fmt.Printf("Serving bot %s, press Ctrl+C to stop\n", phone)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	fmt.Println("\nShutting down")
}

// registerSession creates the live session for the paired phone and
// re-attaches chats the bot was already admitted to.
func registerSession(ctx context.Context, s *store.Store, sessions *session.Registry, phone string) {
	clients := store.NewBotClients()
	chats := store.NewChats()

	botID := ""
	client, err := clients.GetByPhone(ctx, s.DB(), phone)
	if err == nil {
		botID = client.BotID
	} else {
		fmt.Printf("Warning: no bot client provisioned for %s (run 'groupscribe provision')\n", phone)
	}
	sessions.Register(botID, phone)

	if botID == "" {
		return
	}
	active, err := chats.ListActiveByBot(ctx, s.DB(), botID)
	if err != nil {
		fmt.Printf("Warning: list active chats: %v\n", err)
		return
	}
	for _, chat := range active {
		sessions.Attach(phone, chat.ID)
	}
	fmt.Printf("Store:   ✓ %d active chats re-attached\n", len(active))
}
