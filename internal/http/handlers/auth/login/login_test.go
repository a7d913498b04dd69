package login

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/lesson-platform/internal/http/response"
	"github.com/magabrotheeeer/lesson-platform/internal/models"
	authservice "github.com/magabrotheeeer/lesson-platform/internal/services/auth"
)

type ServiceMock struct{ mock.Mock }

func (m *ServiceMock) Login(ctx context.Context, email, rawPassword string) (*models.User, *models.TokenPair, error) {
	args := m.Called(ctx, email, rawPassword)
	var user *models.User
	var pair *models.TokenPair
	if args.Get(0) != nil {
		user = args.Get(0).(*models.User)
	}
	if args.Get(1) != nil {
		pair = args.Get(1).(*models.TokenPair)
	}
	return user, pair, args.Error(2)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestLoginHandler(t *testing.T) {
	user := &models.User{UID: "uid-1", Email: "user@example.com", Role: models.RoleUser}
	pair := &models.TokenPair{AccessToken: "access", RefreshToken: "refresh"}

	tests := []struct {
		name        string
		body        string
		setupMocks  func(s *ServiceMock)
		wantCode    int
		wantStatus  string
		wantMessage string
	}{
		{
			name: "success login",
			body: `{"email":"user@example.com","password":"secret123"}`,
			setupMocks: func(s *ServiceMock) {
				s.On("Login", mock.Anything, "user@example.com", "secret123").
					Return(user, pair, nil).Once()
			},
			wantCode:   http.StatusOK,
			wantStatus: response.StatusOK,
		},
		{
			name: "invalid credentials",
			body: `{"email":"user@example.com","password":"wrong"}`,
			setupMocks: func(s *ServiceMock) {
				s.On("Login", mock.Anything, "user@example.com", "wrong").
					Return(nil, nil, authservice.ErrInvalidCredentials).Once()
			},
			wantCode:    http.StatusUnauthorized,
			wantStatus:  response.StatusError,
			wantMessage: "invalid email or password",
		},
		{
			name:       "malformed json",
			body:       `{"email":`,
			setupMocks: func(_ *ServiceMock) {},
			wantCode:   http.StatusBadRequest,
			wantStatus: response.StatusError,
		},
		{
			name:       "missing password",
			body:       `{"email":"user@example.com"}`,
			setupMocks: func(_ *ServiceMock) {},
			wantCode:   http.StatusUnprocessableEntity,
			wantStatus: response.StatusError,
		},
		{
			name:       "invalid email format",
			body:       `{"email":"not-an-email","password":"secret123"}`,
			setupMocks: func(_ *ServiceMock) {},
			wantCode:   http.StatusUnprocessableEntity,
			wantStatus: response.StatusError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(ServiceMock)
			tt.setupMocks(service)
			handler := New(newNoopLogger(), service)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)

			var resp response.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, resp.Error)
			}
			service.AssertExpectations(t)
		})
	}
}

func TestLoginHandler_ResponseBody(t *testing.T) {
	user := &models.User{UID: "uid-1", Email: "user@example.com", Role: models.RoleUser, PasswordHash: "hash"}
	pair := &models.TokenPair{AccessToken: "access", RefreshToken: "refresh"}

	service := new(ServiceMock)
	service.On("Login", mock.Anything, "user@example.com", "secret123").
		Return(user, pair, nil).Once()
	handler := New(newNoopLogger(), service)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		bytes.NewBufferString(`{"email":"user@example.com","password":"secret123"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"access_token":"access"`)
	assert.Contains(t, body, `"refresh_token":"refresh"`)
	// Хэш пароля никогда не попадает в ответ.
	assert.NotContains(t, body, "hash")
}
