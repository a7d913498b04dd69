package models

import "time"

// SubscriptionRecord — отдельная запись о подписке, зеркало последнего
// известного состояния во внешней биллинговой системе. Связана с пользователем
// один к одному, создается и обновляется только реконсилятором через upsert,
// поэтому повторная доставка одного и того же события безопасна.
type SubscriptionRecord struct {
	UserUID            string    // Идентификатор пользователя-владельца
	CustomerID         string    // Идентификатор клиента у провайдера
	SubscriptionID     string    // Идентификатор подписки у провайдера
	Status             string    // Статус: active, inactive, cancelled или past_due
	CurrentPeriodStart time.Time // Начало оплаченного периода
	CurrentPeriodEnd   time.Time // Конец оплаченного периода
	CancelAtPeriodEnd  bool      // Отмена в конце периода
	UpdatedAt          time.Time
}
