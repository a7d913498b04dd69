package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"
)

// ConsumeMessages подписывается на очередь и обрабатывает сообщения
// переданным обработчиком. Неудачно обработанные сообщения возвращаются
// в очередь. Обработка идет параллельно, но не более десяти сообщений
// одновременно.
func ConsumeMessages(ctx context.Context, ch *amqp.Channel, log *slog.Logger, queueName string, handler func([]byte) error) error {
	const op = "rabbitmq.ConsumeMessages"

	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sem := make(chan struct{}, 10)
	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				go func(delivery amqp.Delivery) {
					defer func() { <-sem }()
					if err := handler(delivery.Body); err != nil {
						if nackErr := delivery.Nack(false, true); nackErr != nil {
							log.Error("failed to nack message", slog.Any("err", nackErr))
						}
						return
					}
					if ackErr := delivery.Ack(false); ackErr != nil {
						log.Error("failed to ack message", slog.Any("err", ackErr))
					}
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
