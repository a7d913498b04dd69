// Package repository реализует хранилище данных на основе PostgreSQL
// для пользователей, записей подписок и уроков. Предоставляет методы
// создания, чтения, обновления и удаления записей, а также атомарные
// операции над набором refresh-токенов пользователя.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Ошибки уровня хранилища. Сервисы сопоставляют их со своими
// доменными ошибками через errors.Is.
var (
	// ErrUserNotFound возвращается, когда пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateEmail возвращается при нарушении уникальности email.
	ErrDuplicateEmail = errors.New("duplicate email")
	// ErrLessonNotFound возвращается, когда урок не найден.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrSubscriptionNotFound возвращается, когда запись подписки отсутствует.
	ErrSubscriptionNotFound = errors.New("subscription record not found")
)

// Storage инкапсулирует соединение с базой данных PostgreSQL
// и реализует методы работы с пользователями, подписками и уроками.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его доступность.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}
