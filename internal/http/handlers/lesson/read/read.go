// Package read реализует HTTP-обработчик чтения урока.
//
// Право на платный урок проверяется по свежему снимку подписки на каждый
// запрос. Отказ в доступе (403) и отсутствие урока (404) различаются:
// существование урока не скрывается.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/lesson-platform/internal/http/middlewarectx"
	"github.com/magabrotheeeer/lesson-platform/internal/http/response"
	"github.com/magabrotheeeer/lesson-platform/internal/lib/entitlement"
	"github.com/magabrotheeeer/lesson-platform/internal/lib/sl"
	"github.com/magabrotheeeer/lesson-platform/internal/models"
	lessonservice "github.com/magabrotheeeer/lesson-platform/internal/services/lesson"
)

// Service описывает интерфейс чтения урока.
type Service interface {
	Read(ctx context.Context, uid string, entitled bool) (*models.Lesson, error)
}

// Handler обрабатывает HTTP-запросы на чтение урока.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.lesson.read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	uid := chi.URLParam(r, "uid")
	if uid == "" {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing lesson uid"))
		return
	}

	entitled := false
	if user, ok := middlewarectx.UserFromContext(r.Context()); ok {
		entitled = entitlement.IsActive(user.Subscription, time.Now())
	}

	lesson, err := h.service.Read(r.Context(), uid, entitled)
	if err != nil {
		switch {
		case errors.Is(err, lessonservice.ErrLessonNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("lesson not found"))
		case errors.Is(err, lessonservice.ErrPremiumRequired):
			log.Info("premium lesson denied", slog.String("lesson_uid", uid))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(lessonservice.ErrPremiumRequired.Error()))
		default:
			log.Error("failed to read lesson", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal server error"))
		}
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"lesson": lesson,
	}))
}
