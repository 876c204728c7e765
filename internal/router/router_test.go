package router

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Micjeal/personal-agent/internal/handler"
	"github.com/Micjeal/personal-agent/internal/message"
	"github.com/Micjeal/personal-agent/internal/ratelimit"
	"github.com/Micjeal/personal-agent/internal/store"
)

// mockConnector records sends and can be told to misbehave on Start.
type mockConnector struct {
	channel message.Channel

	mu    sync.Mutex
	sends []send

	startErr   error
	startPanic bool
	sendErr    error
	stopped    chan struct{}
}

type send struct {
	recipientID string
	text        string
}

func newMockConnector(channel message.Channel) *mockConnector {
	return &mockConnector{channel: channel, stopped: make(chan struct{})}
}

func (m *mockConnector) Name() message.Channel { return m.channel }

func (m *mockConnector) Start(ctx context.Context) error {
	if m.startPanic {
		panic("connector blew up")
	}
	if m.startErr != nil {
		return m.startErr
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stopped:
		return nil
	}
}

func (m *mockConnector) Stop() error {
	select {
	case <-m.stopped:
	default:
		close(m.stopped)
	}
	return nil
}

func (m *mockConnector) SendMessage(_ context.Context, recipientID, text string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.mu.Lock()
	m.sends = append(m.sends, send{recipientID, text})
	m.mu.Unlock()
	return nil
}

func (m *mockConnector) sentTo() []send {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]send(nil), m.sends...)
}

func newTestRouter(t *testing.T, limiter *ratelimit.Limiter) *Router {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "messages.json"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return New(handler.New(st, nil), limiter, nil)
}

func testMessage(channel message.Channel, senderID string) *message.Message {
	return message.New(channel, senderID, "Test User", "hello, this is a test message")
}

func TestRouteMessage_RoundTrip(t *testing.T) {
	r := newTestRouter(t, nil)
	mock := newMockConnector("test")
	r.Register("test", mock)

	r.RouteMessage(context.Background(), testMessage("test", "u1"))

	sends := mock.sentTo()
	if len(sends) != 1 {
		t.Fatalf("SendMessage called %d times, want 1", len(sends))
	}
	if sends[0].recipientID != "u1" {
		t.Errorf("recipient = %q, want %q", sends[0].recipientID, "u1")
	}
	if sends[0].text == "" {
		t.Error("reply text is empty")
	}
}

func TestRouteMessage_NoConnector(t *testing.T) {
	r := newTestRouter(t, nil)

	// Must complete without panicking and without a send.
	r.RouteMessage(context.Background(), testMessage("ghost", "u1"))
}

func TestRouteMessage_SendErrorSwallowed(t *testing.T) {
	r := newTestRouter(t, nil)
	mock := newMockConnector("test")
	mock.sendErr = errors.New("provider down")
	r.Register("test", mock)

	// The error must be logged, not propagated.
	r.RouteMessage(context.Background(), testMessage("test", "u1"))
}

func TestRouteMessage_RateLimited(t *testing.T) {
	limiter := ratelimit.New(2, time.Minute)
	r := newTestRouter(t, limiter)
	mock := newMockConnector("test")
	r.Register("test", mock)

	for i := 0; i < 5; i++ {
		r.RouteMessage(context.Background(), testMessage("test", "flooder"))
	}

	if got := len(mock.sentTo()); got != 2 {
		t.Errorf("SendMessage called %d times, want 2 (rest rate limited)", got)
	}
}

func TestRouteMessage_RateLimitPerSender(t *testing.T) {
	limiter := ratelimit.New(1, time.Minute)
	r := newTestRouter(t, limiter)
	mock := newMockConnector("test")
	r.Register("test", mock)

	r.RouteMessage(context.Background(), testMessage("test", "u1"))
	r.RouteMessage(context.Background(), testMessage("test", "u2"))

	if got := len(mock.sentTo()); got != 2 {
		t.Errorf("SendMessage called %d times, want 2 (limits are per sender)", got)
	}
}

func TestStart_FailingConnectorIsolated(t *testing.T) {
	r := newTestRouter(t, nil)
	failing := newMockConnector("broken")
	failing.startErr = errors.New("bad credentials")
	healthy := newMockConnector("ok")
	r.Register("broken", failing)
	r.Register("ok", healthy)

	started := make(chan struct{})
	go func() {
		r.Start(context.Background())
		close(started)
	}()

	// The healthy connector must still be running after its sibling
	// failed; give the failing one time to exit, then route through
	// the healthy channel.
	time.Sleep(50 * time.Millisecond)
	select {
	case <-started:
		t.Fatal("Start returned while the healthy connector was still running")
	default:
	}

	r.RouteMessage(context.Background(), testMessage("ok", "u1"))
	if got := len(healthy.sentTo()); got != 1 {
		t.Errorf("healthy connector sends = %d, want 1", got)
	}

	healthy.Stop()
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after all connectors stopped")
	}
}

func TestStart_PanickingConnectorIsolated(t *testing.T) {
	r := newTestRouter(t, nil)
	panicking := newMockConnector("panics")
	panicking.startPanic = true
	healthy := newMockConnector("ok")
	r.Register("panics", panicking)
	r.Register("ok", healthy)

	done := make(chan struct{})
	go func() {
		r.Start(context.Background())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	healthy.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not survive a panicking connector")
	}
}

func TestStart_BlocksUntilAllExit(t *testing.T) {
	r := newTestRouter(t, nil)
	a := newMockConnector("a")
	b := newMockConnector("b")
	r.Register("a", a)
	r.Register("b", b)

	done := make(chan struct{})
	go func() {
		r.Start(context.Background())
		close(done)
	}()

	a.Stop()
	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Start returned before every connector exited")
	default:
	}

	b.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after all connectors exited")
	}
}

func TestStop_SignalsAllConnectors(t *testing.T) {
	r := newTestRouter(t, nil)
	a := newMockConnector("a")
	b := newMockConnector("b")
	r.Register("a", a)
	r.Register("b", b)

	done := make(chan struct{})
	go func() {
		r.Start(context.Background())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	r.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("connectors did not stop after Router.Stop")
	}
}

func TestRouteMessage_ConcurrentEntry(t *testing.T) {
	r := newTestRouter(t, ratelimit.New(1000, time.Minute))
	a := newMockConnector("a")
	b := newMockConnector("b")
	r.Register("a", a)
	r.Register("b", b)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.RouteMessage(context.Background(), testMessage("a", "u1"))
		}()
		go func() {
			defer wg.Done()
			r.RouteMessage(context.Background(), testMessage("b", "u2"))
		}()
	}
	wg.Wait()

	if got := len(a.sentTo()); got != 10 {
		t.Errorf("connector a sends = %d, want 10", got)
	}
	if got := len(b.sentTo()); got != 10 {
		t.Errorf("connector b sends = %d, want 10", got)
	}
}
