// Package smtp: STARTTLS-транспорт для отправки писем через SMTP.
package smtp

import (
	"context"
	"io"
)

// Client: часть *smtp.Client, нужная для отправки одного письма.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// TransportInterface открывает аутентифицированные SMTP-сессии.
type TransportInterface interface {
	Connect(ctx context.Context) (Client, error)
	GetSMTPUser() string
}
