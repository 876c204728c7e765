// Package connector defines the uniform channel adapter boundary and
// the concrete adapters bridging each provider to the normalized
// message shape.
package connector

import (
	"context"

	"github.com/Micjeal/personal-agent/internal/message"
	"github.com/Micjeal/personal-agent/internal/retry"
)

// Connector is the capability every channel adapter implements.
type Connector interface {
	// Name returns the channel this connector serves.
	Name() message.Channel

	// Start begins receiving messages. Poll-driven connectors block
	// until the context is cancelled or Stop is called; webhook-driven
	// connectors may return once their registration is complete.
	Start(ctx context.Context) error

	// Stop signals a running loop to exit at its next suspension
	// point. It is idempotent.
	Stop() error

	// SendMessage delivers text to a channel-scoped recipient,
	// retrying transient failures per the shared policy. The final
	// error is returned; the router logs and swallows it.
	SendMessage(ctx context.Context, recipientID, text string) error
}

// Sink is the inbound path from a connector into the router. A nil
// sink drops inbound events, which keeps connectors unit-testable.
type Sink interface {
	RouteMessage(ctx context.Context, msg *message.Message)
}

// base carries the fields shared by every connector.
type base struct {
	channel message.Channel
	sink    Sink
	policy  retry.Policy
}

func newBase(channel message.Channel, sink Sink) base {
	return base{
		channel: channel,
		sink:    sink,
		policy:  retry.DefaultPolicy(),
	}
}

func (b *base) Name() message.Channel {
	return b.channel
}

// deliver hands a normalized message to the router, dropping it when no
// sink is attached.
func (b *base) deliver(ctx context.Context, msg *message.Message) {
	if b.sink == nil {
		return
	}
	b.sink.RouteMessage(ctx, msg)
}
