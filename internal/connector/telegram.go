package connector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gotd/td/telegram"
	sender "github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"

	"github.com/Micjeal/personal-agent/internal/config"
	"github.com/Micjeal/personal-agent/internal/message"
	"github.com/Micjeal/personal-agent/internal/retry"
)

// TelegramConnector runs a Telegram bot over MTProto. Incoming private
// messages are normalized and routed; replies go back to the sender.
type TelegramConnector struct {
	base
	cfg    config.TelegramConfig
	client *telegram.Client

	// Access hashes learned from incoming updates, required to address
	// a user on the way out.
	peersMu sync.RWMutex
	peers   map[int64]int64
}

// NewTelegramConnector creates a Telegram connector.
func NewTelegramConnector(cfg config.TelegramConfig, sink Sink) *TelegramConnector {
	return &TelegramConnector{
		base:  newBase(message.ChannelTelegram, sink),
		cfg:   cfg,
		peers: make(map[int64]int64),
	}
}

// Start authenticates as a bot and blocks receiving updates until the
// context is cancelled.
func (t *TelegramConnector) Start(ctx context.Context) error {
	if err := os.MkdirAll(t.cfg.DataPath, 0o755); err != nil {
		return fmt.Errorf("create telegram data directory: %w", err)
	}

	dispatcher := tg.NewUpdateDispatcher()
	gaps := updates.New(updates.Config{Handler: dispatcher})

	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewMessage) error {
		msg, ok := update.Message.(*tg.Message)
		if !ok || msg.Out {
			return nil
		}
		t.handleMessage(ctx, e, msg)
		return nil
	})

	t.client = telegram.NewClient(t.cfg.AppID, t.cfg.AppHash, telegram.Options{
		SessionStorage: &telegram.FileSessionStorage{
			Path: filepath.Join(t.cfg.DataPath, "session.json"),
		},
		UpdateHandler: gaps,
	})

	return t.client.Run(ctx, func(ctx context.Context) error {
		status, err := t.client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("telegram auth status: %w", err)
		}
		if !status.Authorized {
			if _, err := t.client.Auth().Bot(ctx, t.cfg.BotToken); err != nil {
				return fmt.Errorf("telegram bot login: %w", err)
			}
		}

		self, err := t.client.Self(ctx)
		if err != nil {
			return fmt.Errorf("telegram self: %w", err)
		}
		slog.Info("Telegram connector started", "bot", self.Username)

		return gaps.Run(ctx, t.client.API(), self.ID, updates.AuthOptions{IsBot: true})
	})
}

func (t *TelegramConnector) Stop() error {
	// The MTProto client exits on context cancellation.
	return nil
}

func (t *TelegramConnector) handleMessage(ctx context.Context, e tg.Entities, msg *tg.Message) {
	if msg.Message == "" {
		return
	}

	peerUser, ok := msg.PeerID.(*tg.PeerUser)
	if !ok {
		return // only private chats are answered
	}

	senderName := ""
	if user, found := e.Users[peerUser.UserID]; found {
		senderName = telegramDisplayName(user)
		t.peersMu.Lock()
		t.peers[user.ID] = user.AccessHash
		t.peersMu.Unlock()
	}

	m := message.New(message.ChannelTelegram, strconv.FormatInt(peerUser.UserID, 10), senderName, msg.Message)
	m.Metadata["message_id"] = msg.ID
	m.Metadata["chat_id"] = peerUser.UserID

	t.deliver(ctx, m)
}

func telegramDisplayName(user *tg.User) string {
	if user.FirstName != "" {
		name := user.FirstName
		if user.LastName != "" {
			name += " " + user.LastName
		}
		return name
	}
	if user.Username != "" {
		return "@" + user.Username
	}
	return ""
}

// SendMessage delivers text to a Telegram user the bot has heard from.
func (t *TelegramConnector) SendMessage(ctx context.Context, recipientID, text string) error {
	if t.client == nil {
		return fmt.Errorf("telegram client not connected")
	}

	userID, err := strconv.ParseInt(recipientID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram recipient %q: %w", recipientID, err)
	}

	t.peersMu.RLock()
	accessHash, ok := t.peers[userID]
	t.peersMu.RUnlock()
	if !ok {
		return fmt.Errorf("no access hash known for telegram user %d", userID)
	}

	peer := &tg.InputPeerUser{UserID: userID, AccessHash: accessHash}
	s := sender.NewSender(t.client.API())

	return retry.Do(ctx, t.policy, "telegram send", func(ctx context.Context) error {
		_, err := s.To(peer).Text(ctx, text)
		return err
	})
}
