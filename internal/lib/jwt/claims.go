// Package jwt реализует генерацию и парсинг пары JWT токенов:
// короткоживущего access и долгоживущего refresh.
//
// Maker определяет интерфейс для выпуска и проверки обоих классов токенов.
// PairMaker — конкретная реализация с двумя раздельными секретами:
// компрометация секрета одного класса токенов не позволяет подделать другой.
package jwt

import (
	"time"
)

// Maker описывает интерфейс для выпуска и парсинга пары JWT токенов.
type Maker interface {
	// GenerateAccessToken выпускает access-токен с user_uid, email и role.
	GenerateAccessToken(userUID, email, role string) (string, error)
	// GenerateRefreshToken выпускает refresh-токен, несущий только user_uid.
	GenerateRefreshToken(userUID string) (string, error)
	// ParseAccessToken возвращает *AccessClaims, если токен корректен и не истек.
	ParseAccessToken(tokenStr string) (*AccessClaims, error)
	// ParseRefreshToken возвращает *RefreshClaims, если токен корректен и не истек.
	ParseRefreshToken(tokenStr string) (*RefreshClaims, error)
}

// PairMaker реализует интерфейс Maker. Access и refresh токены подписываются
// разными секретами и имеют разное время жизни (минуты против дней).
type PairMaker struct {
	accessSecret  string        // Секрет для подписи access-токенов
	refreshSecret string        // Секрет для подписи refresh-токенов
	accessTTL     time.Duration // Время жизни access-токена
	refreshTTL    time.Duration // Время жизни refresh-токена
}

// NewPairMaker создаёт новый экземпляр PairMaker.
func NewPairMaker(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *PairMaker {
	return &PairMaker{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}
