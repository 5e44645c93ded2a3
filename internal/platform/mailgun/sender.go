// Package mailgun delivers messages through the Mailgun HTTP API.
package mailgun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/phrazzld/scheduled-mail-api/internal/config"
	"github.com/phrazzld/scheduled-mail-api/internal/mail"
)

// client is the subset of the Mailgun SDK used by Sender.
type client interface {
	NewMessage(from, subject, text string, to ...string) *mailgun.Message
	Send(ctx context.Context, m *mailgun.Message) (string, string, error)
}

// Sender implements mail.Sender.
type Sender struct {
	mg     client
	logger *slog.Logger
}

var _ mail.Sender = (*Sender)(nil)

// NewSender creates a Sender for the configured domain.
func NewSender(cfg config.MailgunConfig, logger *slog.Logger) (*Sender, error) {
	if cfg.Domain == "" || cfg.APIKey == "" {
		return nil, errors.New("mailgun domain and api key are required")
	}
	mg := mailgun.NewMailgun(cfg.Domain, cfg.APIKey)
	if cfg.APIBase != "" {
		mg.SetAPIBase(cfg.APIBase)
	}
	return newSender(mg, logger), nil
}

func newSender(mg client, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{mg: mg, logger: logger.With(slog.String("component", "mailgun_sender"))}
}

// Send implements mail.Sender.
func (s *Sender) Send(ctx context.Context, msg *mail.Message) (string, error) {
	m := s.mg.NewMessage(msg.From, msg.Subject, msg.Text, msg.To)
	if msg.HTML != "" {
		m.SetHtml(msg.HTML)
	}
	if msg.InReplyTo != "" {
		m.AddHeader("In-Reply-To", msg.InReplyTo)
		m.AddHeader("References", msg.InReplyTo)
	}

	_, id, err := s.mg.Send(ctx, m)
	if err != nil {
		return "", fmt.Errorf("%w: mailgun: %w", mail.ErrDelivery, err)
	}

	s.logger.DebugContext(ctx, "message accepted by mailgun", slog.String("delivery_id", id))
	return id, nil
}
