package read

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/lesson-platform/internal/http/response"
	"github.com/magabrotheeeer/lesson-platform/internal/models"
	lessonservice "github.com/magabrotheeeer/lesson-platform/internal/services/lesson"
)

type ServiceMock struct{ mock.Mock }

func (m *ServiceMock) Read(ctx context.Context, uid string, entitled bool) (*models.Lesson, error) {
	args := m.Called(ctx, uid, entitled)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lesson), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newReadRequest(uid string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/lessons/"+uid, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("uid", uid)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestReadHandler(t *testing.T) {
	lesson := &models.Lesson{UID: "l-1", Title: "Intro", IsPremium: false}

	tests := []struct {
		name       string
		uid        string
		setupMocks func(s *ServiceMock)
		wantCode   int
		wantStatus string
	}{
		{
			name: "success read",
			uid:  "l-1",
			setupMocks: func(s *ServiceMock) {
				s.On("Read", mock.Anything, "l-1", false).Return(lesson, nil).Once()
			},
			wantCode:   http.StatusOK,
			wantStatus: response.StatusOK,
		},
		{
			name: "lesson not found",
			uid:  "ghost",
			setupMocks: func(s *ServiceMock) {
				s.On("Read", mock.Anything, "ghost", false).
					Return(nil, lessonservice.ErrLessonNotFound).Once()
			},
			wantCode:   http.StatusNotFound,
			wantStatus: response.StatusError,
		},
		{
			name: "premium lesson without subscription",
			uid:  "l-2",
			setupMocks: func(s *ServiceMock) {
				s.On("Read", mock.Anything, "l-2", false).
					Return(nil, lessonservice.ErrPremiumRequired).Once()
			},
			wantCode:   http.StatusForbidden,
			wantStatus: response.StatusError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(ServiceMock)
			tt.setupMocks(service)
			handler := New(newNoopLogger(), service)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, newReadRequest(tt.uid))

			assert.Equal(t, tt.wantCode, rec.Code)

			var resp response.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			service.AssertExpectations(t)
		})
	}
}
