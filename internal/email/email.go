package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gokulp/beyond-stars-api/internal/domain"
	"github.com/resend/resend-go/v2"
)

// sendTimeout bounds the outbound provider call. There are no retries; a
// failed delivery fails the whole request.
const sendTimeout = 10 * time.Second

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender logs emails instead of sending them — used in ENV=local.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.InfoContext(ctx, "email (local dev)", "to", to, "subject", subject, "body", body)
	return nil
}

// ResendSender sends emails via the Resend API — used in staging/production.
type ResendSender struct {
	client *resend.Client
	from   string
}

func (s *ResendSender) Send(ctx context.Context, to, subject, body string) error {
	if s.client == nil {
		return domain.ErrEmailUnconfigured
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEmailRejected, err)
	}
	return nil
}

// NewSender returns a LogSender for ENV=local, ResendSender otherwise.
// An empty API key outside local leaves the sender unconfigured; every
// Send then fails with domain.ErrEmailUnconfigured.
func NewSender(env, apiKey, from string, logger *slog.Logger) Sender {
	if env == "local" {
		return &LogSender{logger: logger}
	}
	s := &ResendSender{from: from}
	if apiKey != "" {
		s.client = resend.NewClient(apiKey)
	}
	return s
}
