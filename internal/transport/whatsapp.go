// Package transport adapts the WhatsApp client to the event bus: QR
// pairing, group event translation and outbound delivery for one tenant
// session.
package transport

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/skip2/go-qrcode"

	_ "modernc.org/sqlite"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/groupscribe/groupscribe/internal/bus"
	"github.com/groupscribe/groupscribe/internal/config"
	"github.com/groupscribe/groupscribe/internal/notify"
)

// WhatsApp is the per-tenant WhatsApp connection.
type WhatsApp struct {
	cfg        config.WhatsAppConfig
	client     *whatsmeow.Client
	container  *sqlstore.Container
	bus        *bus.EventBus
	mailer     notify.Notifier
	adminEmail string
	phone      string
}

// NewWhatsApp creates the transport. adminEmail, when set, receives the
// pairing QR code by mail.
func NewWhatsApp(cfg config.WhatsAppConfig, eventBus *bus.EventBus, mailer notify.Notifier, adminEmail string) *WhatsApp {
	return &WhatsApp{
		cfg:        cfg,
		bus:        eventBus,
		mailer:     mailer,
		adminEmail: adminEmail,
	}
}

// Start connects the client, pairing via QR code when no device session
// exists yet. On success the transport subscribes to replies addressed to
// its own phone number.
func (w *WhatsApp) Start(ctx context.Context) error {
	if !w.cfg.Enabled {
		return nil
	}

	dbLog := waLog.Stdout("Database", "WARN", true)
	clientLog := waLog.Stdout("Client", "INFO", true)

	dbPath := w.cfg.DevicePath
	os.MkdirAll(filepath.Dir(dbPath), 0755)

	container, err := sqlstore.New(ctx, "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbLog)
	if err != nil {
		return fmt.Errorf("init whatsapp db: %w", err)
	}
	w.container = container

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("get device: %w", err)
	}

	w.client = whatsmeow.NewClient(deviceStore, clientLog)
	w.client.AddEventHandler(w.eventHandler)

	if w.client.Store.ID == nil {
		qrChan, _ := w.client.GetQRChannel(context.Background())
		if err := w.client.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		fmt.Println("WhatsApp: scan the QR code to pair this device")
		for evt := range qrChan {
			if evt.Event == "code" {
				w.publishQR(evt.Code)
			} else {
				fmt.Println("WhatsApp: login event:", evt.Event)
			}
		}
	} else {
		if err := w.client.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		fmt.Println("WhatsApp: connected")
	}

	if w.client.Store.ID != nil {
		w.phone = w.client.Store.ID.User
	}

	w.bus.Subscribe(w.phone, func(r *bus.Reply) {
		go func() {
			if err := w.SendMessage(context.Background(), r.ChatID, r.Content); err != nil {
				log.Printf("whatsapp: send to %s: %v", r.ChatID, err)
			}
		}()
	})

	return nil
}

// publishQR renders the pairing code as a PNG, saves it and mails it to
// the admin when an address is configured.
func (w *WhatsApp) publishQR(code string) {
	qrPath := w.cfg.QRPath
	if err := qrcode.WriteFile(code, qrcode.Medium, 512, qrPath); err != nil {
		log.Printf("whatsapp: write qr image: %v", err)
		return
	}
	fmt.Printf("WhatsApp: pairing QR code saved to %s\n", qrPath)

	if w.mailer == nil || w.adminEmail == "" {
		return
	}
	png, err := os.ReadFile(qrPath)
	if err != nil {
		log.Printf("whatsapp: read qr image: %v", err)
		return
	}
	err = w.mailer.SendAttachment(w.adminEmail, "WhatsApp pairing code",
		"Scan the attached QR code with the bot's phone to pair the device.",
		"whatsapp-qr.png", png)
	if err != nil {
		log.Printf("whatsapp: mail qr code: %v", err)
	}
}

// Stop disconnects the client.
func (w *WhatsApp) Stop() error {
	if w.client != nil {
		w.client.Disconnect()
	}
	if w.container != nil {
		w.container.Close()
	}
	return nil
}

// Phone returns the paired phone number, empty before Start completes.
func (w *WhatsApp) Phone() string { return w.phone }

// SendMessage delivers text to a chat.
func (w *WhatsApp) SendMessage(ctx context.Context, chatID, text string) error {
	if w.client == nil {
		return fmt.Errorf("client not initialized")
	}
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("invalid JID %q: %w", chatID, err)
	}
	_, err = w.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	return err
}

// History yields past messages for backfill. WhatsApp does not expose
// on-demand history fetches, so admitted chats start from the messages
// received while connected.
func (w *WhatsApp) History(ctx context.Context, chatID string) ([]*bus.GroupEvent, error) {
	log.Printf("whatsapp: history backfill for %s is not available on this platform", chatID)
	return nil, nil
}

// ContactName resolves a display name for a sender JID. Empty when the
// contact is unknown; callers fall back to the phone number.
func (w *WhatsApp) ContactName(ctx context.Context, jid string) string {
	if w.client == nil {
		return ""
	}
	parsed, err := types.ParseJID(jid)
	if err != nil {
		return ""
	}
	contact, err := w.client.Store.Contacts.GetContact(ctx, parsed)
	if err != nil || !contact.Found {
		return ""
	}
	if contact.FullName != "" {
		return contact.FullName
	}
	return contact.PushName
}
