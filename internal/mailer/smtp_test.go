package mailer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/wneessen/go-mail"
)

func TestNewMsgHeaders(t *testing.T) {
	msg := Message{
		From:    "InsightHub <noreply@insighthub.local>",
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "[InsightHub] Task created: ship\r\nBcc: evil@example.com",
		Body:    "Task: ship\n",
	}

	mm, err := newMsg(msg)
	if err != nil {
		t.Fatalf("newMsg: %v", err)
	}

	var buf bytes.Buffer
	if _, err := mm.WriteTo(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}

	head, body, ok := strings.Cut(buf.String(), "\r\n\r\n")
	if !ok {
		t.Fatalf("no header/body separator in %q", buf.String())
	}

	if strings.Contains(head, "\r\nBcc:") || strings.Contains(head, "evil@example.com") {
		t.Fatalf("subject injected a header: %q", head)
	}
	if strings.Contains(head, "a@example.com") {
		t.Fatalf("recipients disclosed in headers: %q", head)
	}
	if !strings.Contains(head, "Message-ID:") || !strings.Contains(head, "Date:") {
		t.Fatalf("missing Message-ID or Date: %q", head)
	}
	if !strings.Contains(body, "Task: ship") {
		t.Fatalf("body = %q", body)
	}

	rcpts, err := mm.GetRecipients()
	if err != nil || len(rcpts) != 2 {
		t.Fatalf("envelope recipients = %v, %v", rcpts, err)
	}
}

func TestNewMsgRejectsBadAddress(t *testing.T) {
	if _, err := newMsg(Message{From: "not an address", To: []string{"a@example.com"}}); err == nil {
		t.Fatalf("expected from address error")
	}
	if _, err := newMsg(Message{From: "noreply@insighthub.local", To: []string{"@@"}}); err == nil {
		t.Fatalf("expected recipient address error")
	}
}

func TestTLSPolicy(t *testing.T) {
	tests := map[string]mail.TLSPolicy{
		"mandatory": mail.TLSMandatory,
		"NONE":      mail.NoTLS,
		"":          mail.TLSOpportunistic,
		"whatever":  mail.TLSOpportunistic,
	}
	for in, want := range tests {
		if got := tlsPolicy(in); got != want {
			t.Errorf("tlsPolicy(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSMTPMailerWithoutRecipients(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 2525})
	if err := m.Send(context.Background(), Message{From: "noreply@insighthub.local"}); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("err = %v, want ErrNoRecipients", err)
	}
}

func TestConsoleMailer(t *testing.T) {
	m := NewConsoleMailer(slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := m.Send(context.Background(), Message{Subject: "x"}); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("err = %v, want ErrNoRecipients", err)
	}
	if err := m.Send(context.Background(), testMsg); err != nil {
		t.Fatalf("send: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Send(ctx, testMsg); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want canceled", err)
	}
}
