// Package remove реализует HTTP-обработчик удаления урока.
package remove

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/lesson-platform/internal/http/response"
	"github.com/magabrotheeeer/lesson-platform/internal/lib/sl"
	lessonservice "github.com/magabrotheeeer/lesson-platform/internal/services/lesson"
)

// Service описывает интерфейс удаления урока.
type Service interface {
	Remove(ctx context.Context, uid string) error
}

// Handler обрабатывает HTTP-запросы на удаление урока.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.lesson.remove"

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

	if err := h.service.Remove(r.Context(), uid); err != nil {
		if errors.Is(err, lessonservice.ErrLessonNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("lesson not found"))
			return
		}
		log.Error("failed to remove lesson", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal server error"))
		return
	}

	log.Info("lesson removed", slog.String("lesson_uid", uid))
	render.JSON(w, r, response.OK())
}
