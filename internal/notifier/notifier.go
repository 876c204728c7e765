// Package notifier pushes selected messages to the agent's owner so
// complaints and other escalations are not lost in the auto-reply flow.
package notifier

import (
	"fmt"
	"log/slog"

	"github.com/gregdel/pushover"

	"github.com/Micjeal/personal-agent/internal/message"
)

// Notifier forwards a message to the owner's attention.
type Notifier interface {
	Notify(msg *message.Message, reason string) error
}

// PushoverNotifier delivers owner alerts through Pushover.
type PushoverNotifier struct {
	app       *pushover.Pushover
	recipient *pushover.Recipient
}

// NewPushoverNotifier creates a Pushover-backed notifier.
func NewPushoverNotifier(appToken, userToken string) *PushoverNotifier {
	return &PushoverNotifier{
		app:       pushover.New(appToken),
		recipient: pushover.NewRecipient(userToken),
	}
}

// Notify sends a push alert describing the message and why it escalated.
func (p *PushoverNotifier) Notify(msg *message.Message, reason string) error {
	body := msg.Text
	if len(body) > 500 {
		body = body[:497] + "..."
	}

	notification := &pushover.Message{
		Title:    fmt.Sprintf("[%s] %s from %s", reason, msg.Channel, msg.SenderName),
		Message:  body,
		Priority: pushover.PriorityHigh,
	}

	resp, err := p.app.SendMessage(notification, p.recipient)
	if err != nil {
		return fmt.Errorf("send pushover notification: %w", err)
	}

	slog.Info("Owner notification sent",
		"channel", msg.Channel,
		"reason", reason,
		"status", resp.Status)
	return nil
}

// MockNotifier logs alerts instead of delivering them; used in dry-run
// mode and tests.
type MockNotifier struct {
	Sent []*message.Message
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(msg *message.Message, reason string) error {
	m.Sent = append(m.Sent, msg)
	slog.Info("Mock owner notification",
		"channel", msg.Channel,
		"sender", msg.SenderName,
		"reason", reason)
	return nil
}
