package lesson

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

	"github.com/magabrotheeeer/lesson-platform/internal/models"
	"github.com/magabrotheeeer/lesson-platform/internal/storage/repository"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CreateLesson(ctx context.Context, lesson models.Lesson) error {
	return m.Called(ctx, lesson).Error(0)
}
func (m *RepoMock) ReadLesson(ctx context.Context, uid string) (*models.Lesson, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lesson), args.Error(1)
}
func (m *RepoMock) UpdateLesson(ctx context.Context, lesson models.Lesson) (int, error) {
	args := m.Called(ctx, lesson)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) RemoveLesson(ctx context.Context, uid string) (int, error) {
	args := m.Called(ctx, uid)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) ListLessons(ctx context.Context, filter models.LessonFilter) ([]*models.Lesson, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*models.Lesson), args.Int(1), args.Error(2)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}
func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}
func (m *CacheMock) Invalidate(key string) error {
	return m.Called(key).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestService_Create(t *testing.T) {
	repo := new(RepoMock)
	repo.On("CreateLesson", mock.Anything, mock.MatchedBy(func(l models.Lesson) bool {
		return l.UID != "" && l.Title == "Intro" && l.Tags != nil
	})).Return(nil).Once()

	svc := New(repo, new(CacheMock), newNoopLogger())
	uid, err := svc.Create(context.Background(), models.DummyLesson{
		Title:    "Intro",
		Duration: 30,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, uid)
	repo.AssertExpectations(t)
}

func TestService_Read(t *testing.T) {
	freeLesson := &models.Lesson{UID: "l-1", Title: "Free", IsPremium: false}
	premiumLesson := &models.Lesson{UID: "l-2", Title: "Premium", IsPremium: true}

	tests := []struct {
		name       string
		uid        string
		entitled   bool
		setupMocks func(r *RepoMock, c *CacheMock)
		want       *models.Lesson
		wantErr    error
	}{
		{
			name:     "free lesson without entitlement",
			uid:      "l-1",
			entitled: false,
			setupMocks: func(r *RepoMock, c *CacheMock) {
				c.On("Get", "lesson:l-1", mock.Anything).Return(false, nil).Once()
				r.On("ReadLesson", mock.Anything, "l-1").Return(freeLesson, nil).Once()
				c.On("Set", "lesson:l-1", freeLesson, time.Hour).Return(nil).Once()
			},
			want: freeLesson,
		},
		{
			name:     "premium lesson with entitlement",
			uid:      "l-2",
			entitled: true,
			setupMocks: func(r *RepoMock, c *CacheMock) {
				c.On("Get", "lesson:l-2", mock.Anything).Return(false, nil).Once()
				r.On("ReadLesson", mock.Anything, "l-2").Return(premiumLesson, nil).Once()
				c.On("Set", "lesson:l-2", premiumLesson, time.Hour).Return(nil).Once()
			},
			want: premiumLesson,
		},
		{
			name:     "premium lesson without entitlement",
			uid:      "l-2",
			entitled: false,
			setupMocks: func(r *RepoMock, c *CacheMock) {
				c.On("Get", "lesson:l-2", mock.Anything).Return(false, nil).Once()
				r.On("ReadLesson", mock.Anything, "l-2").Return(premiumLesson, nil).Once()
				c.On("Set", "lesson:l-2", premiumLesson, time.Hour).Return(nil).Once()
			},
			wantErr: ErrPremiumRequired,
		},
		{
			name:     "lesson not found",
			uid:      "ghost",
			entitled: true,
			setupMocks: func(r *RepoMock, c *CacheMock) {
				c.On("Get", "lesson:ghost", mock.Anything).Return(false, nil).Once()
				r.On("ReadLesson", mock.Anything, "ghost").
					Return(nil, repository.ErrLessonNotFound).Once()
			},
			wantErr: ErrLessonNotFound,
		},
		{
			name:     "cache error falls back to repository",
			uid:      "l-1",
			entitled: false,
			setupMocks: func(r *RepoMock, c *CacheMock) {
				c.On("Get", "lesson:l-1", mock.Anything).Return(false, errors.New("redis down")).Once()
				r.On("ReadLesson", mock.Anything, "l-1").Return(freeLesson, nil).Once()
				c.On("Set", "lesson:l-1", freeLesson, time.Hour).Return(nil).Once()
			},
			want: freeLesson,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			cache := new(CacheMock)
			tt.setupMocks(repo, cache)

			svc := New(repo, cache, newNoopLogger())
			got, err := svc.Read(context.Background(), tt.uid, tt.entitled)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			repo.AssertExpectations(t)
			cache.AssertExpectations(t)
		})
	}
}

func TestService_Update(t *testing.T) {
	t.Run("success update invalidates cache", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("UpdateLesson", mock.Anything, mock.MatchedBy(func(l models.Lesson) bool {
			return l.UID == "l-1" && l.Title == "Renamed"
		})).Return(1, nil).Once()
		cache := new(CacheMock)
		cache.On("Invalidate", "lesson:l-1").Return(nil).Once()

		svc := New(repo, cache, newNoopLogger())
		err := svc.Update(context.Background(), "l-1", models.DummyLesson{Title: "Renamed", Duration: 30})

		require.NoError(t, err)
		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("missing lesson", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("UpdateLesson", mock.Anything, mock.Anything).Return(0, nil).Once()

		svc := New(repo, new(CacheMock), newNoopLogger())
		err := svc.Update(context.Background(), "ghost", models.DummyLesson{Title: "X", Duration: 30})

		assert.ErrorIs(t, err, ErrLessonNotFound)
	})
}

func TestService_Remove(t *testing.T) {
	t.Run("success remove", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("RemoveLesson", mock.Anything, "l-1").Return(1, nil).Once()
		cache := new(CacheMock)
		cache.On("Invalidate", "lesson:l-1").Return(nil).Once()

		svc := New(repo, cache, newNoopLogger())
		assert.NoError(t, svc.Remove(context.Background(), "l-1"))
		repo.AssertExpectations(t)
	})

	t.Run("missing lesson", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("RemoveLesson", mock.Anything, "ghost").Return(0, nil).Once()
		cache := new(CacheMock)
		cache.On("Invalidate", "lesson:ghost").Return(nil).Once()

		svc := New(repo, cache, newNoopLogger())
		assert.ErrorIs(t, svc.Remove(context.Background(), "ghost"), ErrLessonNotFound)
	})
}

func TestService_List(t *testing.T) {
	t.Run("unentitled caller only sees free lessons", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("ListLessons", mock.Anything, mock.MatchedBy(func(f models.LessonFilter) bool {
			return f.IsPremium != nil && !*f.IsPremium && f.Limit == 10
		})).Return([]*models.Lesson{{UID: "l-1"}}, 1, nil).Once()

		svc := New(repo, new(CacheMock), newNoopLogger())
		lessons, total, err := svc.List(context.Background(), models.LessonFilter{}, false)

		require.NoError(t, err)
		assert.Len(t, lessons, 1)
		assert.Equal(t, 1, total)
		repo.AssertExpectations(t)
	})

	t.Run("premium filter of unentitled caller is overridden", func(t *testing.T) {
		premium := true
		repo := new(RepoMock)
		repo.On("ListLessons", mock.Anything, mock.MatchedBy(func(f models.LessonFilter) bool {
			return f.IsPremium != nil && !*f.IsPremium
		})).Return([]*models.Lesson{}, 0, nil).Once()

		svc := New(repo, new(CacheMock), newNoopLogger())
		_, _, err := svc.List(context.Background(), models.LessonFilter{IsPremium: &premium}, false)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("entitled caller keeps requested filter", func(t *testing.T) {
		premium := true
		repo := new(RepoMock)
		repo.On("ListLessons", mock.Anything, mock.MatchedBy(func(f models.LessonFilter) bool {
			return f.IsPremium != nil && *f.IsPremium && f.Category == "go"
		})).Return([]*models.Lesson{{UID: "l-2"}}, 1, nil).Once()

		svc := New(repo, new(CacheMock), newNoopLogger())
		_, _, err := svc.List(context.Background(), models.LessonFilter{IsPremium: &premium, Category: "go", Limit: 10}, true)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}
