package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/notify"
)

// Mailer delivers a document notification to its recipients.
type Mailer interface {
	Deliver(ctx context.Context, msg notify.Message) error
}

// SMTPMailer sends plain-text mail through a relay.
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSMTPMailer constructs a mailer. username may be empty for
// unauthenticated relays.
func NewSMTPMailer(host string, port int, from, username, password string) *SMTPMailer {
	m := &SMTPMailer{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
	}
	if username != "" {
		m.auth = smtp.PlainAuth("", username, password, host)
	}
	return m
}

// Deliver sends the message.
func (m *SMTPMailer) Deliver(_ context.Context, msg notify.Message) error {
	if len(msg.Recipients) == 0 {
		return nil
	}
	body := msg.Body
	if body == "" {
		body = fmt.Sprintf("Please find document %s attached to your account.", msg.Document)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)

	if err := smtp.SendMail(m.addr, m.auth, m.from, msg.Recipients, []byte(b.String())); err != nil {
		return fmt.Errorf("jobs: send mail: %w", err)
	}
	return nil
}

// LogMailer records deliveries without sending them. Used when no relay is
// configured.
type LogMailer struct {
	Logger *slog.Logger
}

// Deliver logs the message.
func (m *LogMailer) Deliver(_ context.Context, msg notify.Message) error {
	if m.Logger != nil {
		m.Logger.Info("document notification (no relay configured)",
			slog.String("document", msg.Document),
			slog.String("subject", msg.Subject),
			slog.Int("recipients", len(msg.Recipients)))
	}
	return nil
}
