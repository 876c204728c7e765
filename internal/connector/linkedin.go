package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Micjeal/personal-agent/internal/config"
	"github.com/Micjeal/personal-agent/internal/message"
	"github.com/Micjeal/personal-agent/internal/retry"
)

const linkedinBaseURL = "https://api.linkedin.com/v2"

// LinkedInConnector polls the LinkedIn messaging API for new
// conversation events and posts replies back into the conversation.
type LinkedInConnector struct {
	base
	cfg     config.LinkedInConfig
	client  *http.Client
	baseURL string
	seen    map[string]struct{}
}

// NewLinkedInConnector creates a LinkedIn connector.
func NewLinkedInConnector(cfg config.LinkedInConfig, sink Sink) *LinkedInConnector {
	return &LinkedInConnector{
		base:    newBase(message.ChannelLinkedIn, sink),
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: linkedinBaseURL,
		seen:    make(map[string]struct{}),
	}
}

type linkedinConversations struct {
	Elements []struct {
		EntityURN string `json:"entityUrn"`
		Events    []struct {
			EntityURN string `json:"entityUrn"`
			From      struct {
				Member struct {
					ID   string `json:"id"`
					Name string `json:"localizedName"`
				} `json:"member"`
			} `json:"from"`
			CreatedAt int64 `json:"createdAt"`
			Content   struct {
				Message struct {
					Body string `json:"body"`
				} `json:"message"`
			} `json:"eventContent"`
		} `json:"events"`
	} `json:"elements"`
}

// Start polls for conversation events until the context is cancelled.
func (l *LinkedInConnector) Start(ctx context.Context) error {
	interval := time.Duration(l.cfg.PollInterval) * time.Second
	if interval == 0 {
		interval = time.Minute
	}

	slog.Info("LinkedIn connector started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := retry.Do(ctx, l.policy, "linkedin poll", func(ctx context.Context) error {
				return l.checkMessages(ctx)
			})
			if err != nil && ctx.Err() == nil {
				slog.Error("Failed to check LinkedIn messages", "error", err)
			}
		}
	}
}

func (l *LinkedInConnector) Stop() error {
	// The poll loop exits on context cancellation.
	return nil
}

func (l *LinkedInConnector) checkMessages(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/messaging/conversations", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+l.cfg.AccessToken)

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch linkedin conversations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("linkedin conversations: unexpected status %s", resp.Status)
	}

	var conversations linkedinConversations
	if err := json.NewDecoder(resp.Body).Decode(&conversations); err != nil {
		return fmt.Errorf("decode linkedin conversations: %w", err)
	}

	for _, conv := range conversations.Elements {
		for _, event := range conv.Events {
			if event.Content.Message.Body == "" {
				continue
			}
			if _, ok := l.seen[event.EntityURN]; ok {
				continue
			}
			l.seen[event.EntityURN] = struct{}{}

			m := message.New(
				message.ChannelLinkedIn,
				event.From.Member.ID,
				event.From.Member.Name,
				event.Content.Message.Body,
			)
			m.Metadata["conversation_urn"] = conv.EntityURN
			m.Metadata["event_urn"] = event.EntityURN

			l.deliver(ctx, m)
		}
	}
	return nil
}

// SendMessage sends a LinkedIn message to a member.
func (l *LinkedInConnector) SendMessage(ctx context.Context, recipientID, text string) error {
	payload, err := json.Marshal(map[string]any{
		"recipients": []string{recipientID},
		"message":    map[string]string{"body": text},
	})
	if err != nil {
		return err
	}

	return retry.Do(ctx, l.policy, "linkedin send", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			l.baseURL+"/messaging/conversations", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+l.cfg.AccessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := l.client.Do(req)
		if err != nil {
			return fmt.Errorf("send linkedin message: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return fmt.Errorf("linkedin send: unexpected status %s", resp.Status)
		}
		return nil
	})
}
