// Package router owns the channel adapter registry, supervises the
// concurrent adapter lifecycles, and moves each inbound message through
// the processing pipeline and back out the originating channel.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Micjeal/personal-agent/internal/connector"
	"github.com/Micjeal/personal-agent/internal/handler"
	"github.com/Micjeal/personal-agent/internal/message"
	"github.com/Micjeal/personal-agent/internal/ratelimit"
	"github.com/Micjeal/personal-agent/internal/security"
	"github.com/Micjeal/personal-agent/internal/status"
)

// Router routes messages between connectors and the processing
// pipeline. Register all connectors before calling Start; registration
// after Start is undefined behavior.
type Router struct {
	handler *handler.Handler
	limiter *ratelimit.Limiter
	status  *status.Tracker

	mu         sync.RWMutex
	connectors map[message.Channel]connector.Connector
}

// New creates a router. The status tracker may be nil when no dashboard
// is wired up.
func New(h *handler.Handler, limiter *ratelimit.Limiter, st *status.Tracker) *Router {
	if st == nil {
		st = status.NewTracker()
	}
	return &Router{
		handler:    h,
		limiter:    limiter,
		status:     st,
		connectors: make(map[message.Channel]connector.Connector),
	}
}

// Register inserts a connector into the registry under its channel name.
func (r *Router) Register(channel message.Channel, c connector.Connector) {
	r.mu.Lock()
	r.connectors[channel] = c
	r.mu.Unlock()
	r.status.SetOnline(channel, false)
	slog.Info("Registered connector", "channel", channel)
}

// Start launches every registered connector concurrently and blocks
// until all of them have exited. A connector that fails or panics is
// isolated: its siblings and the router keep running.
func (r *Router) Start(ctx context.Context) {
	r.mu.RLock()
	connectors := make(map[message.Channel]connector.Connector, len(r.connectors))
	for ch, c := range r.connectors {
		connectors[ch] = c
	}
	r.mu.RUnlock()

	slog.Info("Message router started", "connectors", len(connectors))

	var wg sync.WaitGroup
	for ch, c := range connectors {
		wg.Add(1)
		go func(ch message.Channel, c connector.Connector) {
			defer wg.Done()
			r.status.SetOnline(ch, true)
			defer r.status.SetOnline(ch, false)

			if err := r.runConnector(ctx, c); err != nil && ctx.Err() == nil {
				slog.Error("Connector failed", "channel", ch, "error", err)
			}
			slog.Info("Connector stopped", "channel", ch)
		}(ch, c)
	}
	wg.Wait()
}

// runConnector converts a connector panic into an error so one bad
// adapter cannot take down the process.
func (r *Router) runConnector(ctx context.Context, c connector.Connector) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("connector panicked: %v", rec)
		}
	}()
	return c.Start(ctx)
}

// RouteMessage processes one inbound message and sends the generated
// reply back through the originating channel. Failures are logged and
// never propagate; concurrent calls from different connectors are safe.
func (r *Router) RouteMessage(ctx context.Context, msg *message.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Message routing panicked",
				"channel", msg.Channel,
				"message_id", msg.ID,
				"panic", rec)
		}
	}()

	if r.limiter != nil {
		key := string(msg.Channel) + ":" + msg.SenderID
		if !r.limiter.Allow(key) {
			slog.Warn("Rate limit exceeded, dropping message",
				"channel", msg.Channel,
				"sender", security.HashSenderID(msg.SenderID, ""))
			r.status.RecordDropped(msg.Channel)
			return
		}
	}

	r.status.RecordMessage(msg.Channel)

	reply := r.handler.Process(ctx, msg)
	if reply == "" {
		return
	}

	r.mu.RLock()
	c, ok := r.connectors[msg.Channel]
	r.mu.RUnlock()
	if !ok {
		slog.Debug("No connector registered for reply", "channel", msg.Channel)
		return
	}

	if err := c.SendMessage(ctx, msg.SenderID, reply); err != nil {
		slog.Error("Failed to send reply",
			"channel", msg.Channel,
			"sender", security.HashSenderID(msg.SenderID, ""),
			"error", err)
		return
	}
	slog.Info("Sent reply", "channel", msg.Channel)
}

// Stop signals every registered connector to stop. Shutdown is
// cooperative: in-flight work is not cancelled here, only the loops.
func (r *Router) Stop() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for ch, c := range r.connectors {
		if err := c.Stop(); err != nil {
			slog.Warn("Failed to stop connector", "channel", ch, "error", err)
		}
	}
	slog.Info("Message router stopped")
}
