package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	libjwt "github.com/magabrotheeeer/lesson-platform/internal/lib/jwt"
	"github.com/magabrotheeeer/lesson-platform/internal/lib/password"
	"github.com/magabrotheeeer/lesson-platform/internal/models"
	"github.com/magabrotheeeer/lesson-platform/internal/storage/repository"
)

type UsersMock struct{ mock.Mock }

func (m *UsersMock) RegisterUser(ctx context.Context, user models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}
func (m *UsersMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *UsersMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *UsersMock) AppendRefreshToken(ctx context.Context, userUID, token string) error {
	return m.Called(ctx, userUID, token).Error(0)
}
func (m *UsersMock) RotateRefreshToken(ctx context.Context, userUID, oldToken, newToken string) (bool, error) {
	args := m.Called(ctx, userUID, oldToken, newToken)
	return args.Bool(0), args.Error(1)
}
func (m *UsersMock) RemoveRefreshToken(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newTestService(users *UsersMock) *AuthService {
	tokens := libjwt.NewPairMaker("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	return NewAuthService(users, tokens, newNoopLogger())
}

func TestAuthService_Register(t *testing.T) {
	users := new(UsersMock)
	users.On("RegisterUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
		return u.Email == "user@example.com" &&
			u.Role == models.RoleUser &&
			u.Subscription.Status == models.SubscriptionStatusInactive &&
			u.PasswordHash != "secret123"
	})).Return("uid-1", nil).Once()
	users.On("AppendRefreshToken", mock.Anything, "uid-1", mock.Anything).Return(nil).Once()

	svc := newTestService(users)
	user, pair, err := svc.Register(context.Background(), "  User@Example.COM ", "secret123", "Ivan", "Petrov")

	require.NoError(t, err)
	assert.Equal(t, "uid-1", user.UID)
	assert.Equal(t, "user@example.com", user.Email)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	users.AssertExpectations(t)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	users := new(UsersMock)
	users.On("RegisterUser", mock.Anything, mock.Anything).
		Return("", repository.ErrDuplicateEmail).Once()

	svc := newTestService(users)
	_, _, err := svc.Register(context.Background(), "user@example.com", "secret123", "Ivan", "Petrov")

	assert.ErrorIs(t, err, ErrEmailTaken)
	users.AssertExpectations(t)
}

func TestAuthService_Login(t *testing.T) {
	hash, err := password.GetHash("secret123")
	require.NoError(t, err)
	stored := &models.User{UID: "uid-1", Email: "user@example.com", PasswordHash: hash, Role: models.RoleUser}

	tests := []struct {
		name       string
		setupMocks func(u *UsersMock)
		email      string
		password   string
		wantErr    error
	}{
		{
			name: "success login",
			setupMocks: func(u *UsersMock) {
				u.On("GetUserByEmail", mock.Anything, "user@example.com").Return(stored, nil).Once()
				u.On("AppendRefreshToken", mock.Anything, "uid-1", mock.Anything).Return(nil).Once()
			},
			email:    "User@Example.com",
			password: "secret123",
		},
		{
			name: "unknown email",
			setupMocks: func(u *UsersMock) {
				u.On("GetUserByEmail", mock.Anything, "ghost@example.com").
					Return(nil, repository.ErrUserNotFound).Once()
			},
			email:    "ghost@example.com",
			password: "secret123",
			wantErr:  ErrInvalidCredentials,
		},
		{
			name: "wrong password",
			setupMocks: func(u *UsersMock) {
				u.On("GetUserByEmail", mock.Anything, "user@example.com").Return(stored, nil).Once()
			},
			email:    "user@example.com",
			password: "not-the-password",
			wantErr:  ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(UsersMock)
			tt.setupMocks(users)
			svc := newTestService(users)

			user, pair, err := svc.Login(context.Background(), tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				assert.Nil(t, pair)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "uid-1", user.UID)
				assert.NotEmpty(t, pair.RefreshToken)
			}
			users.AssertExpectations(t)
		})
	}
}

func TestAuthService_Refresh(t *testing.T) {
	tokens := libjwt.NewPairMaker("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	stored := &models.User{UID: "uid-1", Email: "user@example.com", Role: models.RoleUser}

	refreshToken, err := tokens.GenerateRefreshToken("uid-1")
	require.NoError(t, err)

	t.Run("success rotation", func(t *testing.T) {
		users := new(UsersMock)
		users.On("GetUser", mock.Anything, "uid-1").Return(stored, nil).Once()
		users.On("RotateRefreshToken", mock.Anything, "uid-1", refreshToken, mock.Anything).
			Return(true, nil).Once()

		svc := NewAuthService(users, tokens, newNoopLogger())
		pair, err := svc.Refresh(context.Background(), refreshToken)

		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEqual(t, refreshToken, pair.RefreshToken)
		users.AssertExpectations(t)
	})

	t.Run("already rotated token is rejected", func(t *testing.T) {
		users := new(UsersMock)
		users.On("GetUser", mock.Anything, "uid-1").Return(stored, nil).Once()
		users.On("RotateRefreshToken", mock.Anything, "uid-1", refreshToken, mock.Anything).
			Return(false, nil).Once()

		svc := NewAuthService(users, tokens, newNoopLogger())
		_, err := svc.Refresh(context.Background(), refreshToken)

		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
		users.AssertExpectations(t)
	})

	t.Run("malformed token", func(t *testing.T) {
		users := new(UsersMock)
		svc := NewAuthService(users, tokens, newNoopLogger())

		_, err := svc.Refresh(context.Background(), "not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("token of deleted user", func(t *testing.T) {
		users := new(UsersMock)
		users.On("GetUser", mock.Anything, "uid-1").
			Return(nil, repository.ErrUserNotFound).Once()

		svc := NewAuthService(users, tokens, newNoopLogger())
		_, err := svc.Refresh(context.Background(), refreshToken)

		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
		users.AssertExpectations(t)
	})
}

func TestAuthService_Logout(t *testing.T) {
	t.Run("logout is idempotent", func(t *testing.T) {
		users := new(UsersMock)
		users.On("RemoveRefreshToken", mock.Anything, "some-token").Return(nil).Twice()

		svc := newTestService(users)
		assert.NoError(t, svc.Logout(context.Background(), "some-token"))
		assert.NoError(t, svc.Logout(context.Background(), "some-token"))
		users.AssertExpectations(t)
	})

	t.Run("storage error is returned", func(t *testing.T) {
		users := new(UsersMock)
		users.On("RemoveRefreshToken", mock.Anything, "some-token").
			Return(errors.New("db down")).Once()

		svc := newTestService(users)
		assert.Error(t, svc.Logout(context.Background(), "some-token"))
	})
}

func TestAuthService_Profile(t *testing.T) {
	users := new(UsersMock)
	users.On("GetUser", mock.Anything, "uid-1").
		Return(&models.User{UID: "uid-1", Email: "user@example.com"}, nil).Once()
	users.On("GetUser", mock.Anything, "ghost").
		Return(nil, repository.ErrUserNotFound).Once()

	svc := newTestService(users)

	user, err := svc.Profile(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)

	_, err = svc.Profile(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
	users.AssertExpectations(t)
}
