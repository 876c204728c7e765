// Package store persists normalized messages as an append-ordered JSON
// log on disk. It favors simple durable-log semantics over throughput:
// each append rewrites the file, and the whole history fits in memory.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/Micjeal/personal-agent/internal/message"
)

const DefaultPath = "messages.json"

// Store is a file-backed message log. Writes are serialized by a mutex
// so concurrent routing goroutines cannot interleave partial writes.
type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a store backed by the file at path, creating an empty log
// when the file does not exist yet.
func New(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	s := &Store{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write(nil); err != nil {
			return nil, fmt.Errorf("initialize message store: %w", err)
		}
	}
	return s, nil
}

// Save appends one message to the log. A subsequent LoadAll is
// guaranteed to include it.
func (s *Store) Save(msg *message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.read()
	msgs = append(msgs, *msg)
	if err := s.write(msgs); err != nil {
		return fmt.Errorf("save message %s: %w", msg.ID, err)
	}
	return nil
}

// LoadAll returns every persisted message in insertion order. A missing
// or corrupt backing file yields an empty slice rather than an error.
func (s *Store) LoadAll() []message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// ByChannel returns the persisted messages for one channel, preserving
// insertion order.
func (s *Store) ByChannel(channel message.Channel) []message.Message {
	all := s.LoadAll()
	filtered := make([]message.Message, 0)
	for _, m := range all {
		if m.Channel == channel {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// Recent returns up to limit messages sorted by receipt time, newest
// first. It backs the read-only status surface.
func (s *Store) Recent(limit int) []message.Message {
	all := s.LoadAll()
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].ReceivedAt.After(all[j].ReceivedAt)
	})
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

func (s *Store) read() []message.Message {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read message store", "path", s.path, "error", err)
		}
		return []message.Message{}
	}

	var msgs []message.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		slog.Warn("Message store is corrupt, treating as empty", "path", s.path, "error", err)
		return []message.Message{}
	}
	return msgs
}

func (s *Store) write(msgs []message.Message) error {
	if msgs == nil {
		msgs = []message.Message{}
	}
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
