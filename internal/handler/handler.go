// Package handler implements the message processing pipeline: persist,
// classify, reply.
package handler

import (
	"context"
	"log/slog"

	"github.com/Micjeal/personal-agent/internal/message"
	"github.com/Micjeal/personal-agent/internal/nlp"
	"github.com/Micjeal/personal-agent/internal/notifier"
	"github.com/Micjeal/personal-agent/internal/store"
	"github.com/Micjeal/personal-agent/internal/templates"
)

// Handler runs the processing pipeline for one normalized message.
type Handler struct {
	store     *store.Store
	detector  *nlp.Detector
	responder *templates.Responder
	notifier  notifier.Notifier // optional owner escalation
}

// New creates a handler. The notifier may be nil, in which case no
// owner escalation happens.
func New(st *store.Store, n notifier.Notifier) *Handler {
	return &Handler{
		store:     st,
		detector:  nlp.NewDetector(),
		responder: templates.NewResponder(),
		notifier:  n,
	}
}

// Process persists the message, classifies its intent, and returns the
// generated reply. Persistence is best-effort: a store failure is logged
// and does not block the reply. Any panic during processing yields the
// fixed fallback reply instead of propagating.
func (h *Handler) Process(ctx context.Context, msg *message.Message) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Message processing panicked",
				"channel", msg.Channel,
				"message_id", msg.ID,
				"panic", r)
			reply = templates.Fallback
		}
	}()

	if err := h.store.Save(msg); err != nil {
		slog.Error("Failed to persist message",
			"channel", msg.Channel,
			"message_id", msg.ID,
			"error", err)
	}
	slog.Info("Processed message",
		"channel", msg.Channel,
		"sender", msg.SenderName)

	result := h.detector.Detect(msg.Text)
	slog.Debug("Detected intent",
		"intent", result.Primary,
		"confidence", result.Confidence)

	if result.Primary == nlp.IntentComplaint && h.notifier != nil {
		if err := h.notifier.Notify(msg, "complaint"); err != nil {
			slog.Warn("Owner notification failed", "error", err)
		}
	}

	return h.responder.Response(result.Primary, msg.Channel)
}

// AutoReply returns the acknowledgement text for a channel.
func (h *Handler) AutoReply(channel message.Channel) string {
	return h.responder.AutoReply(channel)
}
