package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"github.com/magabrotheeeer/subscription-billing/internal/config"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
)

const dialTimeout = 10 * time.Second

// ErrNoStartTLS: сервер не поддерживает STARTTLS, отправка без шифрования запрещена.
var ErrNoStartTLS = errors.New("smtp server does not support STARTTLS")

// Transport реализует TransportInterface поверх net/smtp.
type Transport struct {
	cfg config.SMTP
	log *slog.Logger
}

// NewTransport создает Transport.
func NewTransport(cfg config.SMTP, log *slog.Logger) *Transport {
	return &Transport{cfg: cfg, log: log}
}

// Connect подключается к серверу, включает STARTTLS и проходит PLAIN-аутентификацию.
func (t *Transport) Connect(ctx context.Context) (Client, error) {
	const op = "smtp.Connect"
	addr := net.JoinHostPort(t.cfg.Host, t.cfg.Port)

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to dial SMTP server: %w", op, err)
	}

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			t.log.Error("failed to close connection", sl.Err(closeErr))
		}
		return nil, fmt.Errorf("%s: failed to create SMTP client: %w", op, err)
	}

	fail := func(err error) (Client, error) {
		if closeErr := client.Close(); closeErr != nil {
			t.log.Error("failed to close client", sl.Err(closeErr))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if ok, _ := client.Extension("STARTTLS"); !ok {
		return fail(ErrNoStartTLS)
	}
	tlsConfig := &tls.Config{
		ServerName: t.cfg.Host,
		MinVersion: tls.VersionTLS12,
	}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fail(fmt.Errorf("failed to start TLS: %w", err))
	}

	auth := smtp.PlainAuth("", t.cfg.User, t.cfg.Pass, t.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fail(fmt.Errorf("smtp auth failed: %w", err))
	}

	return client, nil
}

// GetSMTPUser возвращает имя пользователя SMTP, оно же адрес отправителя.
func (t *Transport) GetSMTPUser() string {
	return t.cfg.User
}
