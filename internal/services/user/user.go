// Package user содержит бизнес-логику управления пользователями:
// обновление собственного профиля и административные операции
// просмотра и удаления учетных записей.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/lesson-platform/internal/models"
	authservice "github.com/magabrotheeeer/lesson-platform/internal/services/auth"
	"github.com/magabrotheeeer/lesson-platform/internal/storage/repository"
)

// Доменные ошибки сервиса пользователей.
var (
	// ErrUserNotFound возвращается, когда пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken возвращается при смене email на занятый.
	ErrEmailTaken = errors.New("user with this email already exists")
)

// Repository описывает контракт для работы с пользователями в базе данных.
type Repository interface {
	// GetUser возвращает пользователя по UID.
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	// UpdateUserProfile обновляет изменяемые поля профиля; пустая строка
	// означает «поле не менять».
	UpdateUserProfile(ctx context.Context, userUID, email, firstName, lastName string) (*models.User, error)
	// ListUsers возвращает страницу пользователей и их общее количество.
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error)
	// DeleteUser удаляет пользователя.
	DeleteUser(ctx context.Context, userUID string) error
}

// Service реализует операции управления пользователями.
type Service struct {
	users Repository
	log   *slog.Logger
}

// New создает новый экземпляр Service.
func New(users Repository, log *slog.Logger) *Service {
	return &Service{users: users, log: log}
}

// UpdateProfile обновляет профиль пользователя. Пароль, роль и состояние
// подписки этим путем не меняются. Email приводится к каноническому виду.
func (s *Service) UpdateProfile(ctx context.Context, userUID, email, firstName, lastName string) (*models.User, error) {
	const op = "user.UpdateProfile"

	user, err := s.users.UpdateUserProfile(ctx, userUID,
		authservice.NormalizeEmail(email), firstName, lastName)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user profile updated", slog.String("user_uid", userUID))
	return user, nil
}

// List возвращает страницу пользователей и их общее количество.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	const op = "user.List"

	users, total, err := s.users.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return users, total, nil
}

// Get возвращает пользователя по UID.
func (s *Service) Get(ctx context.Context, userUID string) (*models.User, error) {
	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user.Get: %w", err)
	}
	return user, nil
}

// Delete удаляет учетную запись пользователя.
func (s *Service) Delete(ctx context.Context, userUID string) error {
	const op = "user.Delete"

	if err := s.users.DeleteUser(ctx, userUID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user deleted", slog.String("user_uid", userUID))
	return nil
}
