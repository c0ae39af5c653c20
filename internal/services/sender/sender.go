// Package sender доставляет письма из очереди уведомлений через SMTP или AWS SES.
package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/metrics"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

const sendTimeout = 30 * time.Second

// ErrNoRecipient: в сообщении не указан адрес получателя.
var ErrNoRecipient = errors.New("email message has no recipient")

// Mailer отправляет одно письмо.
type Mailer interface {
	Send(ctx context.Context, msg models.EmailMessage) error
	Name() string
}

// Service разбирает сообщения очереди и передаёт их Mailer.
type Service struct {
	mailer Mailer
	log    *slog.Logger
}

// New создаёт Service.
func New(mailer Mailer, log *slog.Logger) *Service {
	return &Service{
		mailer: mailer,
		log:    log,
	}
}

// HandleMessage: обработчик для rabbitmq.ConsumeMessages.
func (s *Service) HandleMessage(body []byte) error {
	const op = "sender.HandleMessage"

	var msg models.EmailMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w", op, err)
	}
	if msg.To == "" {
		return fmt.Errorf("%s: %w", op, ErrNoRecipient)
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := s.mailer.Send(ctx, msg); err != nil {
		metrics.EmailsSent.WithLabelValues(s.mailer.Name(), metrics.OutcomeFailure).Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.EmailsSent.WithLabelValues(s.mailer.Name(), metrics.OutcomeSuccess).Inc()
	s.log.Info("email sent successfully", slog.String("to", msg.To), slog.String("subject", msg.Subject))
	return nil
}
