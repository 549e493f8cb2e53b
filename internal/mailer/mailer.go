package mailer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/insighthub/internal/config"
)

var ErrNoRecipients = errors.New("mail has no recipients")

type Message struct {
	From    string
	To      []string
	Subject string
	Body    string // plain text
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New picks the backend from cfg and wraps it with a timeout and circuit breaker.
func New(cfg config.MailConfig, log *slog.Logger) Mailer {
	var inner Mailer

	switch cfg.Backend {
	case "smtp":
		inner = NewSMTPMailer(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			TLS:      cfg.SMTPTLS,
		})
	default:
		inner = NewConsoleMailer(log)
	}

	return NewProtectedMailer(inner, ProtectedMailerConfig{Timeout: cfg.Timeout})
}
