// Package models содержит доменные модели платформы уроков:
// пользователей со встроенным снимком подписки, записи подписок
// и уроки. Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// Возможные статусы подписки пользователя.
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusInactive  = "inactive"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusPastDue   = "past_due"
)

// Роли пользователей.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// SubscriptionSnapshot — встроенный в пользователя снимок состояния подписки.
// Обновляется только при регистрации и при обработке событий платежного
// провайдера, никогда — в запросах на чтение контента.
type SubscriptionSnapshot struct {
	Status           string     // Статус: active, inactive, cancelled или past_due
	CustomerID       string     // Идентификатор клиента у платежного провайдера
	SubscriptionID   string     // Идентификатор подписки у платежного провайдера
	CurrentPeriodEnd *time.Time // Конец оплаченного периода, nil если подписки не было
}

// User представляет зарегистрированного пользователя платформы.
type User struct {
	UID           string               // Уникальный идентификатор пользователя
	Email         string               // Электронная почта (уникальная, в нижнем регистре)
	PasswordHash  string               // bcrypt-хэш пароля
	FirstName     string               // Имя
	LastName      string               // Фамилия
	Role          string               // Роль пользователя, admin или user
	Subscription  SubscriptionSnapshot // Снимок состояния подписки
	RefreshTokens []string             // Множество действительных refresh-токенов
	CreatedAt     time.Time
}

// SanitizedUser — представление пользователя для ответов API,
// без хэша пароля и без набора refresh-токенов.
type SanitizedUser struct {
	UID              string     `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Role             string     `json:"role"`
	Status           string     `json:"subscription_status"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}

// Sanitize возвращает представление пользователя без чувствительных полей.
func (u *User) Sanitize() SanitizedUser {
	return SanitizedUser{
		UID:              u.UID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Role:             u.Role,
		Status:           u.Subscription.Status,
		CurrentPeriodEnd: u.Subscription.CurrentPeriodEnd,
	}
}

// TokenPair — пара выданных токенов: короткоживущий access
// и долгоживущий refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
