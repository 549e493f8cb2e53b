package mailer

import (
	"context"
	"log/slog"
	"strings"
)

// ConsoleMailer writes mail to the log instead of sending it. It is the
// default backend for local development.
type ConsoleMailer struct {
	log *slog.Logger
}

func NewConsoleMailer(log *slog.Logger) *ConsoleMailer {
	return &ConsoleMailer{log: log}
}

func (m *ConsoleMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	m.log.InfoContext(ctx, "mail.console",
		"from", msg.From,
		"to", strings.Join(msg.To, ", "),
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
