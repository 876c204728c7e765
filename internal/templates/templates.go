// Package templates generates canned replies keyed by intent, with
// channel-specific formatting applied on top. Selection among the
// variants of one intent is uniformly random.
package templates

import (
	"fmt"
	"math/rand"

	"github.com/Micjeal/personal-agent/internal/message"
	"github.com/Micjeal/personal-agent/internal/nlp"
)

// Fallback is returned by the processing pipeline when reply generation
// fails unexpectedly.
const Fallback = "I'm sorry, I encountered an error processing your message. Please try again."

var replies = map[string][]string{
	nlp.IntentGreeting: {
		"Hello! How can I help you today?",
		"Hi there! What can I do for you?",
		"Hey! I'm here to assist you.",
	},
	nlp.IntentQuestion: {
		"That's a great question! Let me help you with that.",
		"I'd be happy to help answer your question.",
		"Let me look into that for you.",
	},
	nlp.IntentRequest: {
		"I'll do my best to help you with that request.",
		"Sure, I can help you with that.",
		"Let me assist you with that.",
	},
	nlp.IntentComplaint: {
		"I'm sorry to hear about this issue. Let me help resolve it.",
		"I understand your concern. Let's work on fixing this.",
		"Thank you for bringing this to my attention.",
	},
	nlp.IntentThanks: {
		"You're welcome! Happy to help!",
		"Glad I could assist you!",
		"No problem at all!",
	},
	nlp.IntentGoodbye: {
		"Goodbye! Have a great day!",
		"See you later! Take care!",
		"Bye! Feel free to reach out anytime.",
	},
	nlp.IntentUnknown: {
		"I'm not sure I understand. Could you please clarify?",
		"Can you provide more details about what you need?",
		"I'd like to help, but I need more information.",
	},
}

var autoReplies = map[message.Channel]string{
	message.ChannelEmail:     "Thank you for your email. I've received your message and will respond shortly.",
	message.ChannelTelegram:  "🤖 Thanks for your message! I'm processing it now.",
	message.ChannelWhatsApp:  "Hi! I've received your message and will get back to you soon.",
	message.ChannelLinkedIn:  "Thank you for reaching out on LinkedIn. I'll respond to your message shortly.",
	message.ChannelInstagram: "Thanks for your DM! I'll get back to you as soon as possible.",
}

const defaultAutoReply = "Thank you for your message. I'll respond soon."

// Responder picks reply templates. The random source is injectable so
// tests can pin the choice.
type Responder struct {
	pick func(n int) int
}

// NewResponder creates a responder using the shared math/rand source.
func NewResponder() *Responder {
	return &Responder{pick: rand.Intn}
}

// Response returns a reply for the intent, formatted for the channel.
// Unrecognized intents fall back to the unknown-intent templates.
func (r *Responder) Response(intent string, channel message.Channel) string {
	variants, ok := replies[intent]
	if !ok {
		variants = replies[nlp.IntentUnknown]
	}
	text := variants[r.pick(len(variants))]

	switch channel {
	case message.ChannelEmail:
		return fmt.Sprintf("Dear valued customer,\n\n%s\n\nBest regards,\nAgent Michael", text)
	case message.ChannelTelegram:
		return "🤖 " + text
	default:
		return text
	}
}

// AutoReply returns the acknowledgement text configured for a channel.
func (r *Responder) AutoReply(channel message.Channel) string {
	if reply, ok := autoReplies[channel]; ok {
		return reply
	}
	return defaultAutoReply
}
