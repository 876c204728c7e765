package connector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/Micjeal/personal-agent/internal/config"
	"github.com/Micjeal/personal-agent/internal/message"
	"github.com/Micjeal/personal-agent/internal/retry"

	_ "github.com/mattn/go-sqlite3"
)

// WhatsAppConnector bridges WhatsApp via the multi-device protocol.
// Session state lives in a local SQLite database; first start prints a
// QR code to link the agent as a companion device.
type WhatsAppConnector struct {
	base
	cfg    config.WhatsAppConfig
	client *whatsmeow.Client
}

// NewWhatsAppConnector creates a WhatsApp connector.
func NewWhatsAppConnector(cfg config.WhatsAppConfig, sink Sink) *WhatsAppConnector {
	return &WhatsAppConnector{
		base: newBase(message.ChannelWhatsApp, sink),
		cfg:  cfg,
	}
}

// Start connects and blocks until the context is cancelled. Incoming
// events arrive on whatsmeow's own goroutines and are routed from the
// event handler.
func (w *WhatsAppConnector) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.StoragePath, 0o755); err != nil {
		return fmt.Errorf("create whatsapp storage directory: %w", err)
	}

	dbPath := fmt.Sprintf("file:%s/whatsapp.db?_foreign_keys=on", w.cfg.StoragePath)
	container, err := sqlstore.New(ctx, "sqlite3", dbPath, waLog.Noop)
	if err != nil {
		return fmt.Errorf("open whatsapp session store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("get whatsapp device: %w", err)
	}

	w.client = whatsmeow.NewClient(device, waLog.Noop)
	w.client.AddEventHandler(func(evt any) {
		if m, ok := evt.(*events.Message); ok {
			w.handleMessage(ctx, m)
		}
	})

	if w.client.Store.ID == nil {
		// Not linked yet: show the QR code and wait for the scan.
		qrChan, _ := w.client.GetQRChannel(ctx)
		if err := w.client.Connect(); err != nil {
			return fmt.Errorf("connect whatsapp: %w", err)
		}
		for evt := range qrChan {
			if evt.Event == "code" {
				fmt.Println("WhatsApp QR code (scan with phone):")
				fmt.Println(evt.Code)
			} else {
				slog.Info("WhatsApp login event", "event", evt.Event)
			}
		}
	} else {
		if err := w.client.Connect(); err != nil {
			return fmt.Errorf("connect whatsapp: %w", err)
		}
	}

	slog.Info("WhatsApp connector started")

	<-ctx.Done()
	return ctx.Err()
}

func (w *WhatsAppConnector) Stop() error {
	if w.client != nil {
		w.client.Disconnect()
	}
	return nil
}

func (w *WhatsAppConnector) handleMessage(ctx context.Context, evt *events.Message) {
	text := extractWhatsAppText(evt.Message)
	if text == "" || evt.Info.IsFromMe {
		return
	}

	m := message.New(message.ChannelWhatsApp, evt.Info.Sender.User, evt.Info.PushName, text)
	m.Metadata["chat_id"] = evt.Info.Chat.String()
	m.Metadata["provider_id"] = string(evt.Info.ID)
	m.Metadata["is_group"] = evt.Info.IsGroup

	w.deliver(ctx, m)
}

func extractWhatsAppText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if msg.Conversation != nil {
		return *msg.Conversation
	}
	if msg.ExtendedTextMessage != nil && msg.ExtendedTextMessage.Text != nil {
		return *msg.ExtendedTextMessage.Text
	}
	return ""
}

// SendMessage delivers text to a WhatsApp user, identified by their
// phone number or full JID.
func (w *WhatsAppConnector) SendMessage(ctx context.Context, recipientID, text string) error {
	if w.client == nil {
		return fmt.Errorf("whatsapp client not connected")
	}

	jid, err := whatsappJID(recipientID)
	if err != nil {
		return err
	}

	out := &waE2E.Message{Conversation: proto.String(text)}
	return retry.Do(ctx, w.policy, "whatsapp send", func(ctx context.Context) error {
		_, err := w.client.SendMessage(ctx, jid, out)
		return err
	})
}

func whatsappJID(recipientID string) (types.JID, error) {
	if strings.Contains(recipientID, "@") {
		jid, err := types.ParseJID(recipientID)
		if err != nil {
			return types.EmptyJID, fmt.Errorf("invalid whatsapp recipient: %w", err)
		}
		return jid, nil
	}
	return types.NewJID(recipientID, types.DefaultUserServer), nil
}
