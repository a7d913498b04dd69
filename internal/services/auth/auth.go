// Package auth содержит логику бизнес-уровня для управления сессиями:
// регистрацию, вход, обновление пары токенов, выход и чтение профиля.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/lesson-platform/internal/lib/jwt"
	"github.com/magabrotheeeer/lesson-platform/internal/lib/password"
	"github.com/magabrotheeeer/lesson-platform/internal/models"
	"github.com/magabrotheeeer/lesson-platform/internal/storage/repository"
)

// Доменные ошибки сервиса сессий. Тексты ошибок аутентификации намеренно
// не различают причину: отсутствие пользователя, неверный пароль, истекший
// или отозванный токен выглядят для клиента одинаково.
var (
	// ErrEmailTaken возвращается при регистрации на занятый email.
	ErrEmailTaken = errors.New("user with this email already exists")
	// ErrInvalidCredentials возвращается при неверном email или пароле.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidRefreshToken возвращается при любой проблеме с refresh-токеном.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrUserNotFound возвращается, когда пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// RegisterUser сохраняет нового пользователя и возвращает его UID.
	RegisterUser(ctx context.Context, user models.User) (string, error)
	// GetUserByEmail возвращает пользователя по email или ошибку, если не найден.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUser возвращает пользователя по UID.
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	// AppendRefreshToken добавляет токен в набор действительных refresh-токенов.
	AppendRefreshToken(ctx context.Context, userUID, token string) error
	// RotateRefreshToken атомарно заменяет старый токен новым.
	RotateRefreshToken(ctx context.Context, userUID, oldToken, newToken string) (bool, error)
	// RemoveRefreshToken удаляет токен у владеющего им пользователя.
	RemoveRefreshToken(ctx context.Context, token string) error
}

// AuthService отвечает за жизненный цикл сессий и ротацию refresh-токенов.
type AuthService struct {
	users  UserRepository
	tokens jwt.Maker
	log    *slog.Logger
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, tokens jwt.Maker, log *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		log:    log,
	}
}

// NormalizeEmail приводит email к каноническому виду для уникальности.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) issuePair(user *models.User) (*models.TokenPair, error) {
	access, err := s.tokens.GenerateAccessToken(user.UID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.GenerateRefreshToken(user.UID)
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Register создает нового пользователя с хэшированием пароля и дефолтной
// ролью "user", выдает пару токенов и сохраняет refresh-токен в наборе.
func (s *AuthService) Register(ctx context.Context, email, rawPassword, firstName, lastName string) (*models.User, *models.TokenPair, error) {
	const op = "auth.Register"

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	user := models.User{
		Email:        NormalizeEmail(email),
		PasswordHash: hashed,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         models.RoleUser,
		Subscription: models.SubscriptionSnapshot{Status: models.SubscriptionStatusInactive},
	}
	uid, err := s.users.RegisterUser(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, nil, ErrEmailTaken
		}
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	user.UID = uid

	pair, err := s.issuePair(&user)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.AppendRefreshToken(ctx, uid, pair.RefreshToken); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("registered new user", slog.String("user_uid", uid))
	return &user, pair, nil
}

// Login проверяет пароль пользователя и выдает новую пару токенов.
// Отсутствующий email и неверный пароль дают один и тот же результат.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string) (*models.User, *models.TokenPair, error) {
	const op = "auth.Login"

	user, err := s.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.AppendRefreshToken(ctx, user.UID, pair.RefreshToken); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user logged in", slog.String("user_uid", user.UID))
	return user, pair, nil
}

// Refresh проверяет предъявленный refresh-токен и выдает новую пару.
// Ротация выполняется одним атомарным обновлением: старый токен удаляется
// из набора и новый добавляется только если старый все еще был членом набора.
// Повторное предъявление уже ротированного токена завершается ошибкой.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	const op = "auth.Refresh"

	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	user, err := s.users.GetUser(ctx, claims.UserUID)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rotated, err := s.users.RotateRefreshToken(ctx, user.UID, refreshToken, pair.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !rotated {
		return nil, ErrInvalidRefreshToken
	}
	s.log.Info("refresh token rotated", slog.String("user_uid", user.UID))
	return pair, nil
}

// Logout удаляет предъявленный refresh-токен у владеющего им пользователя.
// Повторный выход с тем же токеном также успешен: отсутствие токена
// не раскрывается клиенту.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	const op = "auth.Logout"

	if err := s.users.RemoveRefreshToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Profile возвращает пользователя по UID.
func (s *AuthService) Profile(ctx context.Context, userUID string) (*models.User, error) {
	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
