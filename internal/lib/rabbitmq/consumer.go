package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
)

// prefetch ограничивает и QoS канала, и число одновременно обрабатываемых сообщений.
const prefetch = 10

// ConsumeMessages запускает обработку очереди в фоне до отмены ctx.
// Успешно обработанное сообщение подтверждается. При ошибке handler сообщение
// возвращается в очередь один раз, повторная ошибка его отбрасывает.
func ConsumeMessages(ctx context.Context, log *slog.Logger, ch *amqp.Channel, queueName string, handler func([]byte) error) error {
	const op = "rabbitmq.ConsumeMessages"
	delivery, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sem := make(chan struct{}, prefetch)
	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				go func(d amqp.Delivery) {
					defer func() { <-sem }()
					if err := handler(d.Body); err != nil {
						log.Error("failed to handle message", slog.String("queue", queueName), sl.Err(err))
						if nackErr := d.Nack(false, !d.Redelivered); nackErr != nil {
							log.Error("failed to nack message", sl.Err(nackErr))
						}
						return
					}
					if ackErr := d.Ack(false); ackErr != nil {
						log.Error("failed to ack message", sl.Err(ackErr))
					}
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
