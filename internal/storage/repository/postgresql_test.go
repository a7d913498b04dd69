package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/lesson-platform/internal/migrations"
	"github.com/magabrotheeeer/lesson-platform/internal/models"
)

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(dsn)
	require.NoError(t, err, "failed to create storage")
	t.Cleanup(func() { storage.DB.Close() })

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	return storage
}

func createTestUser(t *testing.T, s *Storage, email string) string {
	t.Helper()
	uid, err := s.RegisterUser(context.Background(), models.User{
		Email:        email,
		PasswordHash: "hashed",
		FirstName:    "Ivan",
		LastName:     "Petrov",
		Role:         models.RoleUser,
		Subscription: models.SubscriptionSnapshot{Status: models.SubscriptionStatusInactive},
	})
	require.NoError(t, err)
	return uid
}

func TestStorage_RegisterAndGetUser(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	uid := createTestUser(t, storage, "user@example.com")
	require.NotEmpty(t, uid)

	user, err := storage.GetUser(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Equal(t, models.SubscriptionStatusInactive, user.Subscription.Status)
	assert.Nil(t, user.Subscription.CurrentPeriodEnd)

	byEmail, err := storage.GetUserByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, uid, byEmail.UID)

	_, err = storage.GetUser(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStorage_RegisterUser_DuplicateEmail(t *testing.T) {
	storage := setupTestStorage(t)

	createTestUser(t, storage, "user@example.com")
	_, err := storage.RegisterUser(context.Background(), models.User{
		Email:        "user@example.com",
		PasswordHash: "hashed",
		FirstName:    "Petr",
		LastName:     "Ivanov",
		Role:         models.RoleUser,
		Subscription: models.SubscriptionSnapshot{Status: models.SubscriptionStatusInactive},
	})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestStorage_UserManagement(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	first := createTestUser(t, storage, "first@example.com")
	second := createTestUser(t, storage, "second@example.com")

	t.Run("update profile keeps omitted fields", func(t *testing.T) {
		updated, err := storage.UpdateUserProfile(ctx, first, "", "Petr", "")
		require.NoError(t, err)
		assert.Equal(t, "first@example.com", updated.Email)
		assert.Equal(t, "Petr", updated.FirstName)
		assert.Equal(t, "Petrov", updated.LastName)
	})

	t.Run("update profile rejects taken email", func(t *testing.T) {
		_, err := storage.UpdateUserProfile(ctx, first, "second@example.com", "", "")
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("update profile for missing user", func(t *testing.T) {
		_, err := storage.UpdateUserProfile(ctx, "00000000-0000-0000-0000-000000000000", "", "Petr", "")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("list users with pagination", func(t *testing.T) {
		users, total, err := storage.ListUsers(ctx, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, users, 1)
		assert.Empty(t, users[0].RefreshTokens)

		users, total, err = storage.ListUsers(ctx, 10, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, users, 1)
	})

	t.Run("delete user cascades subscription record", func(t *testing.T) {
		require.NoError(t, storage.UpsertSubscriptionRecord(ctx, models.SubscriptionRecord{
			UserUID:            second,
			CustomerID:         "cus_del",
			SubscriptionID:     "sub_del",
			Status:             models.SubscriptionStatusActive,
			CurrentPeriodStart: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			CurrentPeriodEnd:   time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		}))

		require.NoError(t, storage.DeleteUser(ctx, second))

		_, err := storage.GetUser(ctx, second)
		assert.ErrorIs(t, err, ErrUserNotFound)
		_, err = storage.GetSubscriptionRecord(ctx, second)
		assert.ErrorIs(t, err, ErrSubscriptionNotFound)

		assert.ErrorIs(t, storage.DeleteUser(ctx, second), ErrUserNotFound)
	})
}

func TestStorage_RefreshTokenLifecycle(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()
	uid := createTestUser(t, storage, "user@example.com")

	require.NoError(t, storage.AppendRefreshToken(ctx, uid, "token-1"))

	t.Run("rotation replaces token once", func(t *testing.T) {
		rotated, err := storage.RotateRefreshToken(ctx, uid, "token-1", "token-2")
		require.NoError(t, err)
		assert.True(t, rotated)

		// Старый токен ротирован и больше не член набора.
		rotated, err = storage.RotateRefreshToken(ctx, uid, "token-1", "token-3")
		require.NoError(t, err)
		assert.False(t, rotated)

		rotated, err = storage.RotateRefreshToken(ctx, uid, "token-2", "token-3")
		require.NoError(t, err)
		assert.True(t, rotated)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		require.NoError(t, storage.RemoveRefreshToken(ctx, "token-3"))
		require.NoError(t, storage.RemoveRefreshToken(ctx, "token-3"))

		rotated, err := storage.RotateRefreshToken(ctx, uid, "token-3", "token-4")
		require.NoError(t, err)
		assert.False(t, rotated)
	})

	t.Run("append for missing user fails", func(t *testing.T) {
		err := storage.AppendRefreshToken(ctx, "00000000-0000-0000-0000-000000000000", "token-x")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestStorage_UpdateUserSnapshot_GuardsAgainstStaleEvents(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()
	uid := createTestUser(t, storage, "user@example.com")

	newer := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	older := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, storage.UpdateUserSnapshot(ctx, uid, models.SubscriptionSnapshot{
		Status:           models.SubscriptionStatusActive,
		CustomerID:       "cus_1",
		SubscriptionID:   "sub_1",
		CurrentPeriodEnd: &newer,
	}))

	// Устаревшее событие не откатывает конец периода назад.
	require.NoError(t, storage.UpdateUserSnapshot(ctx, uid, models.SubscriptionSnapshot{
		Status:           models.SubscriptionStatusInactive,
		CustomerID:       "cus_1",
		SubscriptionID:   "sub_1",
		CurrentPeriodEnd: &older,
	}))

	user, err := storage.GetUser(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, user.Subscription.Status)
	require.NotNil(t, user.Subscription.CurrentPeriodEnd)
	assert.True(t, user.Subscription.CurrentPeriodEnd.Equal(newer))

	byCustomer, err := storage.GetUserByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, uid, byCustomer.UID)

	// Отмена терминальна и применяется без защиты от регрессии.
	require.NoError(t, storage.CancelUserSnapshot(ctx, uid))
	user, err = storage.GetUser(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, user.Subscription.Status)

	// Повтор последнего события до отмены (тот же конец периода) не
	// возвращает снимок в active после отмены.
	require.NoError(t, storage.UpdateUserSnapshot(ctx, uid, models.SubscriptionSnapshot{
		Status:           models.SubscriptionStatusActive,
		CustomerID:       "cus_1",
		SubscriptionID:   "sub_1",
		CurrentPeriodEnd: &newer,
	}))
	user, err = storage.GetUser(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, user.Subscription.Status)

	// Строго более новый период (повторное оформление) выводит из cancelled.
	renewed := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, storage.UpdateUserSnapshot(ctx, uid, models.SubscriptionSnapshot{
		Status:           models.SubscriptionStatusActive,
		CustomerID:       "cus_1",
		SubscriptionID:   "sub_2",
		CurrentPeriodEnd: &renewed,
	}))
	user, err = storage.GetUser(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, user.Subscription.Status)
	require.NotNil(t, user.Subscription.CurrentPeriodEnd)
	assert.True(t, user.Subscription.CurrentPeriodEnd.Equal(renewed))
}

func TestStorage_SubscriptionRecords(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()
	uid := createTestUser(t, storage, "user@example.com")

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	laterEnd := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

	rec := models.SubscriptionRecord{
		UserUID:            uid,
		CustomerID:         "cus_1",
		SubscriptionID:     "sub_1",
		Status:             models.SubscriptionStatusActive,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
	}
	require.NoError(t, storage.UpsertSubscriptionRecord(ctx, rec))

	t.Run("redelivery is idempotent", func(t *testing.T) {
		require.NoError(t, storage.UpsertSubscriptionRecord(ctx, rec))

		got, err := storage.GetSubscriptionRecord(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, models.SubscriptionStatusActive, got.Status)
		assert.True(t, got.CurrentPeriodEnd.Equal(end))
	})

	t.Run("newer period advances record", func(t *testing.T) {
		renewed := rec
		renewed.CurrentPeriodStart = end
		renewed.CurrentPeriodEnd = laterEnd
		require.NoError(t, storage.UpsertSubscriptionRecord(ctx, renewed))

		got, err := storage.GetSubscriptionRecord(ctx, uid)
		require.NoError(t, err)
		assert.True(t, got.CurrentPeriodEnd.Equal(laterEnd))
	})

	t.Run("stale event does not roll period back", func(t *testing.T) {
		require.NoError(t, storage.UpsertSubscriptionRecord(ctx, rec))

		got, err := storage.GetSubscriptionRecord(ctx, uid)
		require.NoError(t, err)
		assert.True(t, got.CurrentPeriodEnd.Equal(laterEnd))
		assert.Equal(t, models.SubscriptionStatusActive, got.Status)
	})

	t.Run("cancellation applies regardless of period", func(t *testing.T) {
		require.NoError(t, storage.MarkSubscriptionCancelled(ctx, uid))

		got, err := storage.GetSubscriptionRecord(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, models.SubscriptionStatusCancelled, got.Status)
		assert.True(t, got.CancelAtPeriodEnd)
	})

	t.Run("cancellation is terminal against redelivery", func(t *testing.T) {
		// Повтор последнего события до отмены: тот же конец периода,
		// статус active. Запись остается cancelled.
		duplicate := rec
		duplicate.CurrentPeriodStart = end
		duplicate.CurrentPeriodEnd = laterEnd
		require.NoError(t, storage.UpsertSubscriptionRecord(ctx, duplicate))

		got, err := storage.GetSubscriptionRecord(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, models.SubscriptionStatusCancelled, got.Status)
	})

	t.Run("strictly newer period reactivates record", func(t *testing.T) {
		renewed := rec
		renewed.CurrentPeriodStart = laterEnd
		renewed.CurrentPeriodEnd = laterEnd.AddDate(0, 1, 0)
		require.NoError(t, storage.UpsertSubscriptionRecord(ctx, renewed))

		got, err := storage.GetSubscriptionRecord(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, models.SubscriptionStatusActive, got.Status)
		assert.True(t, got.CurrentPeriodEnd.Equal(laterEnd.AddDate(0, 1, 0)))
	})

	t.Run("missing record", func(t *testing.T) {
		_, err := storage.GetSubscriptionRecord(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	})
}

func TestStorage_Lessons(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	makeLesson := func(i int, premium bool, category string) models.Lesson {
		return models.Lesson{
			UID:         fmt.Sprintf("00000000-0000-0000-0000-%012d", i),
			Title:       fmt.Sprintf("Lesson %d", i),
			Description: "Description",
			Content:     "Content",
			Duration:    30,
			Category:    category,
			Tags:        []string{"beginner"},
			IsPremium:   premium,
			Author:      "Author",
			SortOrder:   i,
		}
	}

	for i := 1; i <= 3; i++ {
		require.NoError(t, storage.CreateLesson(ctx, makeLesson(i, false, "go")))
	}
	require.NoError(t, storage.CreateLesson(ctx, makeLesson(4, true, "go")))
	require.NoError(t, storage.CreateLesson(ctx, makeLesson(5, true, "sql")))

	t.Run("read lesson", func(t *testing.T) {
		lesson, err := storage.ReadLesson(ctx, "00000000-0000-0000-0000-000000000004")
		require.NoError(t, err)
		assert.Equal(t, "Lesson 4", lesson.Title)
		assert.True(t, lesson.IsPremium)
		assert.Equal(t, []string{"beginner"}, lesson.Tags)
	})

	t.Run("read missing lesson", func(t *testing.T) {
		_, err := storage.ReadLesson(ctx, "00000000-0000-0000-0000-999999999999")
		assert.ErrorIs(t, err, ErrLessonNotFound)
	})

	t.Run("list all", func(t *testing.T) {
		lessons, total, err := storage.ListLessons(ctx, models.LessonFilter{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		assert.Len(t, lessons, 5)
	})

	t.Run("list free only", func(t *testing.T) {
		free := false
		lessons, total, err := storage.ListLessons(ctx, models.LessonFilter{IsPremium: &free, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		for _, l := range lessons {
			assert.False(t, l.IsPremium)
		}
	})

	t.Run("list filters by category", func(t *testing.T) {
		_, total, err := storage.ListLessons(ctx, models.LessonFilter{Category: "sql", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("list search matches title", func(t *testing.T) {
		_, total, err := storage.ListLessons(ctx, models.LessonFilter{Search: "Lesson 2", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("pagination", func(t *testing.T) {
		lessons, total, err := storage.ListLessons(ctx, models.LessonFilter{Limit: 2, Offset: 4})
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		assert.Len(t, lessons, 1)
	})

	t.Run("update lesson", func(t *testing.T) {
		updated := makeLesson(1, false, "go")
		updated.Title = "Renamed"
		count, err := storage.UpdateLesson(ctx, updated)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		lesson, err := storage.ReadLesson(ctx, updated.UID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", lesson.Title)
	})

	t.Run("remove lesson", func(t *testing.T) {
		count, err := storage.RemoveLesson(ctx, "00000000-0000-0000-0000-000000000005")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = storage.RemoveLesson(ctx, "00000000-0000-0000-0000-000000000005")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}
