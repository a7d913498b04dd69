package models

// PaymentFailureNotice — сообщение для очереди уведомлений о неуспешном
// списании. Публикуется реконсилятором, потребляется сервисом отправки писем.
type PaymentFailureNotice struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
