package sender

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/smtp"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// SMTPMailer отправляет письма через SMTP-транспорт.
type SMTPMailer struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// NewSMTPMailer создаёт SMTPMailer.
func NewSMTPMailer(transport smtp.TransportInterface, log *slog.Logger) *SMTPMailer {
	return &SMTPMailer{transport: transport, log: log}
}

// Name возвращает метку транспорта для метрик.
func (m *SMTPMailer) Name() string {
	return "smtp"
}

// Send отправляет HTML-письмо одному получателю.
func (m *SMTPMailer) Send(ctx context.Context, msg models.EmailMessage) error {
	const op = "sender.SMTPMailer.Send"
	from := m.transport.GetSMTPUser()

	client, err := m.transport.Connect(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			m.log.Debug("failed to close SMTP client", sl.Err(err))
		}
	}()

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("%s: MAIL FROM: %w", op, err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("%s: RCPT TO: %w", op, err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("%s: DATA: %w", op, err)
	}
	if _, err := wc.Write([]byte(buildMIME(from, msg))); err != nil {
		_ = wc.Close()
		return fmt.Errorf("%s: write body: %w", op, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("%s: close body: %w", op, err)
	}
	if err := client.Quit(); err != nil {
		return fmt.Errorf("%s: QUIT: %w", op, err)
	}
	return nil
}

func buildMIME(from string, msg models.EmailMessage) string {
	return strings.Join([]string{
		"From: " + from,
		"To: " + msg.To,
		"Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
		"",
		msg.HTML,
	}, "\r\n")
}
