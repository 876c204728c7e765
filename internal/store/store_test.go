package store

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/Micjeal/personal-agent/internal/message"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "messages.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func testMessage(channel message.Channel, senderID, text string) *message.Message {
	m := message.New(channel, senderID, "Test User", text)
	// Truncate for stable comparison across the JSON round trip.
	m.ReceivedAt = m.ReceivedAt.Truncate(time.Second)
	return m
}

func TestSaveAndLoadAll(t *testing.T) {
	s := newTestStore(t)
	m := testMessage(message.ChannelTelegram, "u1", "hello")
	m.Metadata["chat_id"] = "42"

	if err := s.Save(m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := s.LoadAll()
	if len(got) != 1 {
		t.Fatalf("LoadAll returned %d messages, want 1", len(got))
	}
	loaded := got[0]
	if loaded.ID != m.ID || loaded.Channel != m.Channel ||
		loaded.SenderID != m.SenderID || loaded.SenderName != m.SenderName ||
		loaded.Text != m.Text {
		t.Errorf("loaded message %+v does not match saved %+v", loaded, *m)
	}
	if !loaded.ReceivedAt.Equal(m.ReceivedAt) {
		t.Errorf("ReceivedAt = %v, want %v", loaded.ReceivedAt, m.ReceivedAt)
	}
	if !reflect.DeepEqual(loaded.Attachments, m.Attachments) {
		t.Errorf("Attachments = %v, want %v", loaded.Attachments, m.Attachments)
	}
	if loaded.Metadata["chat_id"] != "42" {
		t.Errorf("Metadata[chat_id] = %v, want %q", loaded.Metadata["chat_id"], "42")
	}
}

func TestLoadAll_InsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		m := testMessage(message.ChannelEmail, "a@b.co", "msg")
		ids = append(ids, m.ID)
		if err := s.Save(m); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got := s.LoadAll()
	if len(got) != 5 {
		t.Fatalf("LoadAll returned %d messages, want 5", len(got))
	}
	for i, m := range got {
		if m.ID != ids[i] {
			t.Errorf("message %d has ID %s, want %s", i, m.ID, ids[i])
		}
	}
}

func TestByChannel(t *testing.T) {
	s := newTestStore(t)
	s.Save(testMessage(message.ChannelEmail, "a@b.co", "one"))
	s.Save(testMessage(message.ChannelTelegram, "u1", "two"))
	s.Save(testMessage(message.ChannelEmail, "c@d.co", "three"))

	got := s.ByChannel(message.ChannelEmail)
	if len(got) != 2 {
		t.Fatalf("ByChannel returned %d messages, want 2", len(got))
	}
	if got[0].Text != "one" || got[1].Text != "three" {
		t.Errorf("channel filter broke insertion order: %q, %q", got[0].Text, got[1].Text)
	}

	if got := s.ByChannel(message.ChannelWhatsApp); len(got) != 0 {
		t.Errorf("ByChannel for unused channel returned %d messages, want 0", len(got))
	}
}

func TestRecent(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().Truncate(time.Second)
	for i := 0; i < 4; i++ {
		m := testMessage(message.ChannelSlack, "C1", "msg")
		m.ReceivedAt = base.Add(time.Duration(i) * time.Minute)
		m.Text = []string{"oldest", "older", "newer", "newest"}[i]
		if err := s.Save(m); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got := s.Recent(2)
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d messages, want 2", len(got))
	}
	if got[0].Text != "newest" || got[1].Text != "newer" {
		t.Errorf("Recent order = %q, %q; want newest, newer", got[0].Text, got[1].Text)
	}
}

func TestLoadAll_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	s1, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m := testMessage(message.ChannelEmail, "a@b.co", "durable")
	if err := s1.Save(m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	s2, err := New(path)
	if err != nil {
		t.Fatalf("New after restart: %v", err)
	}
	got := s2.LoadAll()
	if len(got) != 1 || got[0].ID != m.ID {
		t.Errorf("message did not survive reopen: %+v", got)
	}
}

func TestLoadAll_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := s.LoadAll(); len(got) != 0 {
		t.Errorf("LoadAll on corrupt file returned %d messages, want 0", len(got))
	}

	// Writes must still succeed after corruption.
	if err := s.Save(testMessage(message.ChannelEmail, "a@b.co", "after")); err != nil {
		t.Fatalf("Save after corruption: %v", err)
	}
	if got := s.LoadAll(); len(got) != 1 {
		t.Errorf("LoadAll after recovery returned %d messages, want 1", len(got))
	}
}

func TestSave_Concurrent(t *testing.T) {
	s := newTestStore(t)
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 10; j++ {
				if err := s.Save(testMessage(message.ChannelEmail, "a@b.co", "x")); err != nil {
					t.Errorf("Save: %v", err)
				}
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	if got := len(s.LoadAll()); got != 40 {
		t.Errorf("LoadAll returned %d messages, want 40", got)
	}
}
