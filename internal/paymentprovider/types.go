// Package paymentprovider реализует клиента внешней биллинговой системы
// и проверку подписи её webhook-уведомлений. Провайдер — единственный
// источник истины о состоянии подписки; локальное состояние лишь зеркалирует его.
package paymentprovider

import "encoding/json"

// Типы событий, которые доставляет провайдер через webhook.
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventPaymentSucceeded    = "invoice.payment_succeeded"
	EventPaymentFailed       = "invoice.payment_failed"
)

// KnownEventType сообщает, обрабатывается ли тип события реконсиляцией.
// Неизвестные типы подтверждаются без обработки.
func KnownEventType(eventType string) bool {
	switch eventType {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted,
		EventPaymentSucceeded, EventPaymentFailed:
		return true
	}
	return false
}

// Event представляет webhook-событие провайдера. Поле Data.Object
// разбирается по месту в зависимости от типа события.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Subscription представляет подписку в терминах провайдера.
// Временные границы периода приходят unix-таймстемпами.
type Subscription struct {
	ID                 string `json:"id"`
	CustomerID         string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
}

// Invoice представляет счет провайдера. Для реконсиляции важна только
// ссылка на подписку.
type Invoice struct {
	ID             string `json:"id"`
	CustomerID     string `json:"customer"`
	SubscriptionID string `json:"subscription"`
}

// Customer представляет клиента у провайдера.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// CheckoutSession представляет сессию оформления подписки.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PortalSession представляет сессию личного кабинета биллинга.
type PortalSession struct {
	URL string `json:"url"`
}
