package rabbitmq

// Имена очередей и ключи маршрутизации уведомлений.
const (
	PaymentFailedQueue      = "notifications.payment_failed"
	PaymentFailedRoutingKey = "payment.failed"
)

// QueueConfig описывает очередь и ключ маршрутизации для биндинга.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди уведомлений сервиса.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: PaymentFailedQueue, RoutingKey: PaymentFailedRoutingKey},
	}
}
