package connector

import (
	"context"
	"log/slog"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/Micjeal/personal-agent/internal/config"
	"github.com/Micjeal/personal-agent/internal/message"
	"github.com/Micjeal/personal-agent/internal/retry"
)

// SlackConnector receives messages over Socket Mode and replies into
// the conversation they came from. The sender identifier is the
// conversation ID, which is also the reply target; the user ID rides
// along in metadata.
type SlackConnector struct {
	base
	cfg    config.SlackConfig
	api    *slack.Client
	socket *socketmode.Client

	cacheMu   sync.Mutex
	userCache map[string]string
}

// NewSlackConnector creates a Slack connector.
func NewSlackConnector(cfg config.SlackConfig, sink Sink) *SlackConnector {
	return &SlackConnector{
		base:      newBase(message.ChannelSlack, sink),
		cfg:       cfg,
		userCache: make(map[string]string),
	}
}

// Start runs the Socket Mode client until the context is cancelled.
func (s *SlackConnector) Start(ctx context.Context) error {
	s.api = slack.New(
		s.cfg.BotToken,
		slack.OptionAppLevelToken(s.cfg.AppToken),
	)
	s.socket = socketmode.New(s.api)

	go s.handleEvents(ctx)

	slog.Info("Slack connector started (Socket Mode)")
	return s.socket.RunContext(ctx)
}

func (s *SlackConnector) Stop() error {
	// The socket client exits on context cancellation.
	return nil
}

func (s *SlackConnector) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-s.socket.Events:
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			s.socket.Ack(*evt.Request)

			if apiEvent.Type != slackevents.CallbackEvent {
				continue
			}
			if ev, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent); ok {
				s.handleMessage(ctx, ev)
			}
		}
	}
}

func (s *SlackConnector) handleMessage(ctx context.Context, ev *slackevents.MessageEvent) {
	// Skip bot echoes and edits.
	if ev.BotID != "" || ev.SubType != "" || ev.Text == "" {
		return
	}

	m := message.New(message.ChannelSlack, ev.Channel, s.resolveUser(ev.User), ev.Text)
	m.Metadata["user_id"] = ev.User
	m.Metadata["channel_type"] = ev.ChannelType
	m.Metadata["thread_ts"] = ev.ThreadTimeStamp

	s.deliver(ctx, m)
}

func (s *SlackConnector) resolveUser(userID string) string {
	s.cacheMu.Lock()
	name, ok := s.userCache[userID]
	s.cacheMu.Unlock()
	if ok {
		return name
	}

	user, err := s.api.GetUserInfo(userID)
	if err != nil {
		slog.Warn("Failed to resolve Slack user", "user_id", userID, "error", err)
		return userID
	}

	name = user.RealName
	if name == "" {
		name = user.Name
	}

	s.cacheMu.Lock()
	s.userCache[userID] = name
	s.cacheMu.Unlock()
	return name
}

// SendMessage posts text into a Slack conversation.
func (s *SlackConnector) SendMessage(ctx context.Context, recipientID, text string) error {
	return retry.Do(ctx, s.policy, "slack send", func(ctx context.Context) error {
		_, _, err := s.api.PostMessageContext(ctx, recipientID, slack.MsgOptionText(text, false))
		return err
	})
}
