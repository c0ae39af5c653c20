// Package notifier публикует транзакционные письма в очередь уведомлений.
// Отправка не блокирует и не отменяет операцию, которая её вызвала.
package notifier

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/metrics"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// Publisher публикует письма в RabbitMQ.
type Publisher struct {
	ch  rabbitmq.Publisher
	log *slog.Logger
}

// New создаёт Publisher поверх канала с объявленным обменником уведомлений.
func New(ch rabbitmq.Publisher, log *slog.Logger) *Publisher {
	return &Publisher{ch: ch, log: log}
}

// Send ставит письмо в очередь. Ошибки только логируются.
func (p *Publisher) Send(ctx context.Context, subject, email, html string) {
	log := p.log.With(slog.String("op", "notifier.Send"), slog.String("subject", subject))
	if email == "" {
		log.Warn("notification skipped: empty recipient")
		metrics.NotificationsPublished.WithLabelValues(metrics.OutcomeIgnored).Inc()
		return
	}
	if ctx.Err() != nil {
		log.Warn("notification skipped: context done", sl.Err(ctx.Err()))
		metrics.NotificationsPublished.WithLabelValues(metrics.OutcomeIgnored).Inc()
		return
	}

	msg := models.EmailMessage{To: email, Subject: subject, HTML: html}
	if err := rabbitmq.PublishMessage(p.ch, rabbitmq.Exchange, rabbitmq.EmailRoutingKey, msg); err != nil {
		log.Error("failed to publish notification", sl.Err(err))
		metrics.NotificationsPublished.WithLabelValues(metrics.OutcomeFailure).Inc()
		return
	}
	metrics.NotificationsPublished.WithLabelValues(metrics.OutcomeSuccess).Inc()
}
