// Package lesson содержит бизнес-логику каталога уроков, включая кеширование
// и серверное ограничение выдачи платного контента.
package lesson

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/lesson-platform/internal/models"
	"github.com/magabrotheeeer/lesson-platform/internal/storage/repository"
)

// Доменные ошибки каталога.
var (
	// ErrLessonNotFound возвращается, когда урок не найден.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrPremiumRequired возвращается при попытке прочитать платный урок
	// без активной подписки. Текст фиксирован для всех причин отказа.
	ErrPremiumRequired = errors.New("premium subscription required to access this lesson")
)

// LessonRepository определяет методы для работы с уроками в хранилище.
type LessonRepository interface {
	CreateLesson(ctx context.Context, lesson models.Lesson) error
	ReadLesson(ctx context.Context, uid string) (*models.Lesson, error)
	UpdateLesson(ctx context.Context, lesson models.Lesson) (int, error)
	RemoveLesson(ctx context.Context, uid string) (int, error)
	ListLessons(ctx context.Context, filter models.LessonFilter) ([]*models.Lesson, int, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// Service реализует бизнес-логику каталога уроков.
type Service struct {
	repo  LessonRepository
	cache Cache
	log   *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo LessonRepository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Create сохраняет новый урок и возвращает его UID.
func (s *Service) Create(ctx context.Context, req models.DummyLesson) (string, error) {
	l := models.Lesson{
		UID:          uuid.NewString(),
		Title:        req.Title,
		Description:  req.Description,
		Content:      req.Content,
		VideoURL:     req.VideoURL,
		ThumbnailURL: req.ThumbnailURL,
		Duration:     req.Duration,
		Category:     req.Category,
		Tags:         req.Tags,
		IsPremium:    req.IsPremium,
		Author:       req.Author,
		SortOrder:    req.SortOrder,
	}
	if l.Tags == nil {
		l.Tags = []string{}
	}
	if err := s.repo.CreateLesson(ctx, l); err != nil {
		return "", err
	}
	s.log.Info("created new lesson", slog.String("lesson_uid", l.UID))
	return l.UID, nil
}

// Read возвращает урок по UID, используя кеш или репозиторий. Платный урок
// отдается только вызывающему с действующим правом доступа; решение о праве
// принимается вызывающей стороной по свежему снимку подписки и передается
// сюда готовым флагом.
func (s *Service) Read(ctx context.Context, uid string, entitled bool) (*models.Lesson, error) {
	var result *models.Lesson
	cacheKey := fmt.Sprintf("lesson:%s", uid)
	found, err := s.cache.Get(cacheKey, &result)
	if err != nil {
		s.log.Warn("cache lookup failed", slog.String("key", cacheKey), slog.Any("err", err))
		found = false
	}
	if !found {
		result, err = s.repo.ReadLesson(ctx, uid)
		if err != nil {
			if errors.Is(err, repository.ErrLessonNotFound) {
				return nil, ErrLessonNotFound
			}
			return nil, err
		}
		if err := s.cache.Set(cacheKey, result, time.Hour); err != nil {
			s.log.Warn("failed to cache lesson", slog.String("key", cacheKey), slog.Any("err", err))
		}
	}

	if result.IsPremium && !entitled {
		return nil, ErrPremiumRequired
	}
	return result, nil
}

// Update обновляет урок и инвалидирует кеш.
func (s *Service) Update(ctx context.Context, uid string, req models.DummyLesson) error {
	l := models.Lesson{
		UID:          uid,
		Title:        req.Title,
		Description:  req.Description,
		Content:      req.Content,
		VideoURL:     req.VideoURL,
		ThumbnailURL: req.ThumbnailURL,
		Duration:     req.Duration,
		Category:     req.Category,
		Tags:         req.Tags,
		IsPremium:    req.IsPremium,
		Author:       req.Author,
		SortOrder:    req.SortOrder,
	}
	if l.Tags == nil {
		l.Tags = []string{}
	}
	count, err := s.repo.UpdateLesson(ctx, l)
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrLessonNotFound
	}

	cacheKey := fmt.Sprintf("lesson:%s", uid)
	if err := s.cache.Invalidate(cacheKey); err != nil {
		s.log.Warn("failed to invalidate cache", slog.String("key", cacheKey), slog.Any("err", err))
	}
	return nil
}

// Remove удаляет урок по UID и инвалидирует кеш.
func (s *Service) Remove(ctx context.Context, uid string) error {
	cacheKey := fmt.Sprintf("lesson:%s", uid)
	if err := s.cache.Invalidate(cacheKey); err != nil {
		s.log.Warn("failed to invalidate cache", slog.String("key", cacheKey), slog.Any("err", err))
	}

	count, err := s.repo.RemoveLesson(ctx, uid)
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrLessonNotFound
	}
	return nil
}

// List возвращает страницу каталога. Для вызывающего без права на платный
// контент фильтр принудительно сужается до isPremium=false на стороне
// сервера: параметр запроса не может это обойти.
func (s *Service) List(ctx context.Context, filter models.LessonFilter, entitled bool) ([]*models.Lesson, int, error) {
	if !entitled {
		free := false
		filter.IsPremium = &free
	}
	if filter.Limit <= 0 {
		filter.Limit = 10
	}
	return s.repo.ListLessons(ctx, filter)
}
