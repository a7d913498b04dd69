// Package list реализует HTTP-обработчик листинга каталога уроков.
//
// Листинг доступен без аутентификации: анонимный вызывающий и пользователь
// без действующей подписки получают только бесплатные уроки, фильтр
// isPremium в запросе не может это обойти.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/lesson-platform/internal/http/middlewarectx"
	"github.com/magabrotheeeer/lesson-platform/internal/http/response"
	"github.com/magabrotheeeer/lesson-platform/internal/lib/entitlement"
	"github.com/magabrotheeeer/lesson-platform/internal/lib/sl"
	"github.com/magabrotheeeer/lesson-platform/internal/models"
)

// Service описывает интерфейс листинга каталога.
type Service interface {
	List(ctx context.Context, filter models.LessonFilter, entitled bool) ([]*models.Lesson, int, error)
}

// Handler обрабатывает HTTP-запросы на листинг уроков.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.lesson.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	filter := parseFilter(r)

	entitled := false
	if user, ok := middlewarectx.UserFromContext(r.Context()); ok {
		entitled = entitlement.IsActive(user.Subscription, time.Now())
	}

	lessons, total, err := h.service.List(r.Context(), filter, entitled)
	if err != nil {
		log.Error("failed to list lessons", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal server error"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"lessons": lessons,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	}))
}

func parseFilter(r *http.Request) models.LessonFilter {
	q := r.URL.Query()

	filter := models.LessonFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Limit:    10,
	}
	if raw := q.Get("isPremium"); raw != "" {
		if premium, err := strconv.ParseBool(raw); err == nil {
			filter.IsPremium = &premium
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	return filter
}
