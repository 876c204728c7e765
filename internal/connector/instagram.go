package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Micjeal/personal-agent/internal/config"
	"github.com/Micjeal/personal-agent/internal/message"
	"github.com/Micjeal/personal-agent/internal/retry"
)

const instagramBaseURL = "https://graph.instagram.com/v18.0"

// InstagramConnector polls the Instagram Graph API for direct messages
// and replies through the same API.
type InstagramConnector struct {
	base
	cfg     config.InstagramConfig
	client  *http.Client
	baseURL string
	seen    map[string]struct{}
}

// NewInstagramConnector creates an Instagram connector.
func NewInstagramConnector(cfg config.InstagramConfig, sink Sink) *InstagramConnector {
	return &InstagramConnector{
		base:    newBase(message.ChannelInstagram, sink),
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: instagramBaseURL,
		seen:    make(map[string]struct{}),
	}
}

type instagramConversations struct {
	Data []struct {
		ID       string `json:"id"`
		Messages struct {
			Data []struct {
				ID   string `json:"id"`
				From struct {
					ID       string `json:"id"`
					Username string `json:"username"`
				} `json:"from"`
				Message     string `json:"message"`
				CreatedTime string `json:"created_time"`
			} `json:"data"`
		} `json:"messages"`
	} `json:"data"`
}

// Start polls for DMs until the context is cancelled.
func (i *InstagramConnector) Start(ctx context.Context) error {
	interval := time.Duration(i.cfg.PollInterval) * time.Second
	if interval == 0 {
		interval = time.Minute
	}

	slog.Info("Instagram connector started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := retry.Do(ctx, i.policy, "instagram poll", func(ctx context.Context) error {
				return i.checkMessages(ctx)
			})
			if err != nil && ctx.Err() == nil {
				slog.Error("Failed to check Instagram messages", "error", err)
			}
		}
	}
}

func (i *InstagramConnector) Stop() error {
	// The poll loop exits on context cancellation.
	return nil
}

func (i *InstagramConnector) checkMessages(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/me/conversations?fields=%s&access_token=%s",
		i.baseURL,
		url.QueryEscape("messages{id,from,message,created_time}"),
		url.QueryEscape(i.cfg.AccessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch instagram conversations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("instagram conversations: unexpected status %s", resp.Status)
	}

	var conversations instagramConversations
	if err := json.NewDecoder(resp.Body).Decode(&conversations); err != nil {
		return fmt.Errorf("decode instagram conversations: %w", err)
	}

	for _, conv := range conversations.Data {
		for _, dm := range conv.Messages.Data {
			if dm.Message == "" {
				continue
			}
			if _, ok := i.seen[dm.ID]; ok {
				continue
			}
			i.seen[dm.ID] = struct{}{}

			m := message.New(message.ChannelInstagram, dm.From.ID, dm.From.Username, dm.Message)
			m.Metadata["conversation_id"] = conv.ID
			m.Metadata["provider_id"] = dm.ID

			i.deliver(ctx, m)
		}
	}
	return nil
}

// SendMessage sends an Instagram DM.
func (i *InstagramConnector) SendMessage(ctx context.Context, recipientID, text string) error {
	payload, err := json.Marshal(map[string]any{
		"recipient":    map[string]string{"id": recipientID},
		"message":      map[string]string{"text": text},
		"access_token": i.cfg.AccessToken,
	})
	if err != nil {
		return err
	}

	return retry.Do(ctx, i.policy, "instagram send", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			i.baseURL+"/me/messages", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := i.client.Do(req)
		if err != nil {
			return fmt.Errorf("send instagram message: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return fmt.Errorf("instagram send: unexpected status %s", resp.Status)
		}
		return nil
	})
}
