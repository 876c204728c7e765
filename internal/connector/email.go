package connector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/Micjeal/personal-agent/internal/config"
	"github.com/Micjeal/personal-agent/internal/message"
	"github.com/Micjeal/personal-agent/internal/retry"
	"github.com/Micjeal/personal-agent/internal/security"
)

const replySubject = "Auto Reply"

// EmailConnector polls an IMAP inbox for unseen messages and replies
// over SMTP.
type EmailConnector struct {
	base
	cfg config.EmailConfig
}

// NewEmailConnector creates an email connector. A nil sink drops
// inbound mail, which keeps the connector testable in isolation.
func NewEmailConnector(cfg config.EmailConfig, sink Sink) *EmailConnector {
	return &EmailConnector{
		base: newBase(message.ChannelEmail, sink),
		cfg:  cfg,
	}
}

// Start polls the inbox until the context is cancelled. Poll failures
// are retried with backoff, then logged; the loop keeps going.
func (e *EmailConnector) Start(ctx context.Context) error {
	interval := time.Duration(e.cfg.PollInterval) * time.Second
	if interval == 0 {
		interval = 30 * time.Second
	}

	slog.Info("Email connector started", "host", e.cfg.IMAPHost, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := retry.Do(ctx, e.policy, "email poll", func(ctx context.Context) error {
				return e.checkMail(ctx)
			})
			if err != nil && ctx.Err() == nil {
				slog.Error("Failed to check email", "error", err)
			}
		}
	}
}

func (e *EmailConnector) Stop() error {
	// The poll loop exits on context cancellation.
	return nil
}

// checkMail fetches unseen messages, normalizes them, routes them, and
// marks them seen.
func (e *EmailConnector) checkMail(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", e.cfg.IMAPHost, e.cfg.IMAPPort)
	client, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("dial imap %s: %w", addr, err)
	}
	defer client.Close()

	if err := client.Login(e.cfg.Username, e.cfg.Password).Wait(); err != nil {
		return fmt.Errorf("imap login: %w", err)
	}
	defer client.Logout()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return fmt.Errorf("select inbox: %w", err)
	}

	criteria := &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}
	data, err := client.Search(criteria, nil).Wait()
	if err != nil {
		return fmt.Errorf("search unseen: %w", err)
	}

	seqNums := data.AllSeqNums()
	if len(seqNums) == 0 {
		return nil
	}

	bodySection := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierText}
	fetchOptions := &imap.FetchOptions{
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}
	msgs, err := client.Fetch(imap.SeqSetNum(seqNums...), fetchOptions).Collect()
	if err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}

	for _, m := range msgs {
		if m.Envelope == nil || len(m.Envelope.From) == 0 {
			continue
		}
		from := m.Envelope.From[0]

		msg := message.New(
			message.ChannelEmail,
			from.Addr(),
			from.Name,
			string(m.FindBodySection(bodySection)),
		)
		msg.Metadata["subject"] = m.Envelope.Subject

		e.deliver(ctx, msg)
	}

	storeFlags := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}
	if err := client.Store(imap.SeqSetNum(seqNums...), storeFlags, nil).Close(); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// SendMessage delivers a reply over SMTP, retrying transient failures.
func (e *EmailConnector) SendMessage(ctx context.Context, recipientID, text string) error {
	if !security.ValidEmail(recipientID) {
		return fmt.Errorf("invalid email recipient %q", security.HashSenderID(recipientID, ""))
	}

	raw, err := e.composeReply(recipientID, text)
	if err != nil {
		return fmt.Errorf("compose reply: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", e.cfg.SMTPHost, e.cfg.SMTPPort)
	auth := sasl.NewPlainClient("", e.cfg.Username, e.cfg.Password)

	return retry.Do(ctx, e.policy, "email send", func(context.Context) error {
		return smtp.SendMail(addr, auth, e.cfg.Username, []string{recipientID}, bytes.NewReader(raw))
	})
}

func (e *EmailConnector) composeReply(to, text string) ([]byte, error) {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Address: e.cfg.Username}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(replySubject)

	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, text); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
