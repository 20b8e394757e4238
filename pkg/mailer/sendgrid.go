// Package mailer delivers transactional email through SendGrid.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trydo/wts-backend/pkg/config"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("mailer disabled: sendgrid api key not configured")

// Message is a single-recipient email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGrid implements Sender on top of the SendGrid v3 API.
type SendGrid struct {
	api      sendAPI
	from     *mail.Email
	timeout  time.Duration
	disabled bool
}

// NewSendGrid builds a sender from cfg. A missing API key yields a sender that
// always returns ErrDisabled so callers can log and move on.
func NewSendGrid(cfg config.SendgridConfig) *SendGrid {
	s := &SendGrid{
		from:    mail.NewEmail(cfg.FromName, cfg.DefaultFrom),
		timeout: cfg.Timeout,
	}
	if !cfg.Enabled() {
		s.disabled = true
		return s
	}
	s.api = sendgrid.NewSendClient(strings.TrimSpace(cfg.APIKey))
	return s
}

// Send delivers msg, bounded by the configured timeout.
func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if s == nil || s.disabled || s.api == nil {
		return ErrDisabled
	}
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("recipient address is required")
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	to := mail.NewEmail(msg.ToName, msg.To)
	email := mail.NewSingleEmail(s.from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := s.api.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, truncate(resp.Body, 256))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
