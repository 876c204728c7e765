// Package status keeps an in-memory snapshot of channel health for the
// read-only dashboard surface.
package status

import (
	"sync"
	"time"

	"github.com/Micjeal/personal-agent/internal/message"
)

// ChannelStatus describes one registered channel.
type ChannelStatus struct {
	Channel      message.Channel `json:"channel"`
	Online       bool            `json:"online"`
	MessageCount int             `json:"message_count"`
	DroppedCount int             `json:"dropped_count"`
	LastMessage  *time.Time      `json:"last_message,omitempty"`
}

// Stats holds aggregate counters across all channels.
type Stats struct {
	TotalMessages int                     `json:"total_messages"`
	TotalDropped  int                     `json:"total_dropped"`
	ByChannel     map[message.Channel]int `json:"by_channel"`
}

// Tracker is a thread-safe registry of channel statuses.
type Tracker struct {
	mu       sync.RWMutex
	channels map[message.Channel]*ChannelStatus
	stats    Stats
}

func NewTracker() *Tracker {
	return &Tracker{
		channels: make(map[message.Channel]*ChannelStatus),
		stats:    Stats{ByChannel: make(map[message.Channel]int)},
	}
}

// SetOnline records a channel as online or offline, registering it on
// first sight.
func (t *Tracker) SetOnline(channel message.Channel, online bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cs, ok := t.channels[channel]
	if !ok {
		cs = &ChannelStatus{Channel: channel}
		t.channels[channel] = cs
	}
	cs.Online = online
}

// RecordMessage counts one routed message for the channel.
func (t *Tracker) RecordMessage(channel message.Channel) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cs, ok := t.channels[channel]
	if !ok {
		cs = &ChannelStatus{Channel: channel}
		t.channels[channel] = cs
	}
	now := time.Now()
	cs.MessageCount++
	cs.LastMessage = &now
	t.stats.TotalMessages++
	t.stats.ByChannel[channel]++
}

// RecordDropped counts one rate-limited (dropped) message.
func (t *Tracker) RecordDropped(channel message.Channel) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cs, ok := t.channels[channel]; ok {
		cs.DroppedCount++
	}
	t.stats.TotalDropped++
}

// Channels returns a snapshot of all channel statuses.
func (t *Tracker) Channels() []ChannelStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]ChannelStatus, 0, len(t.channels))
	for _, cs := range t.channels {
		cp := *cs
		result = append(result, cp)
	}
	return result
}

// Stats returns a copy of the aggregate counters.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cp := t.stats
	cp.ByChannel = make(map[message.Channel]int, len(t.stats.ByChannel))
	for k, v := range t.stats.ByChannel {
		cp.ByChannel[k] = v
	}
	return cp
}
