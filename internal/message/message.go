package message

import (
	"time"

	"github.com/Micjeal/personal-agent/internal/security"
)

// Channel identifies the communication medium a message arrived on.
// The set is extended by registering a connector for a new channel,
// not by changing this package.
type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelTelegram  Channel = "telegram"
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelSlack     Channel = "slack"
	ChannelLinkedIn  Channel = "linkedin"
	ChannelInstagram Channel = "instagram"
)

// DefaultSenderName is used when a channel cannot provide a display name.
const DefaultSenderName = "Unknown"

// Message is the normalized form of an inbound message from any channel.
// A Message is never mutated after construction; every consumer treats
// it as read-only.
type Message struct {
	ID          string         `json:"id"`
	Channel     Channel        `json:"channel"`
	SenderID    string         `json:"sender_id"`
	SenderName  string         `json:"sender_name"`
	Text        string         `json:"text"`
	Attachments []string       `json:"attachments"`
	ReceivedAt  time.Time      `json:"received_at"`
	Metadata    map[string]any `json:"metadata"`
}

// New builds a normalized message: it assigns a random ID, sanitizes
// the text, and stamps the time of normalization. An empty sender name
// falls back to DefaultSenderName.
func New(channel Channel, senderID, senderName, text string) *Message {
	if senderName == "" {
		senderName = DefaultSenderName
	}
	return &Message{
		ID:          security.NewMessageID(),
		Channel:     channel,
		SenderID:    senderID,
		SenderName:  senderName,
		Text:        security.Sanitize(text),
		Attachments: []string{},
		ReceivedAt:  time.Now(),
		Metadata:    make(map[string]any),
	}
}
