// Package sender запускает доставку писем из очереди уведомлений.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-billing/internal/config"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/aws"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/subscription-billing/internal/services/sender"
)

// App: потребитель очереди писем.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	logger        *slog.Logger
}

// New подключается к брокеру и выбирает транспорт: SES, если включён, иначе SMTP.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	mailer, err := newMailer(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	logger.Info("mail transport selected", slog.String("transport", mailer.Name()))
	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderservice.New(mailer, logger),
		logger:        logger,
	}, nil
}

func newMailer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (senderservice.Mailer, error) {
	if cfg.SES.Enabled {
		client, err := aws.NewSESClient(ctx, cfg.SES.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to init SES client: %w", err)
		}
		return senderservice.NewSESMailer(client, cfg.SES.FromEmail), nil
	}
	return senderservice.NewSMTPMailer(smtp.NewTransport(cfg.SMTP, logger), logger), nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
}

// Run потребляет очередь писем до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumeMessages(ctx, a.logger, a.ch, rabbitmq.EmailQueue, a.senderService.HandleMessage)
	if err != nil {
		a.logger.Error("failed to start email consumer", sl.Err(err))
		closeResources(a.ch, a.conn, a.logger)
		return err
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")
	closeResources(a.ch, a.conn, a.logger)
	return nil
}
