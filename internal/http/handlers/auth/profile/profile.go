// Package profile реализует HTTP-обработчик получения профиля пользователя.
package profile

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/lesson-platform/internal/http/middlewarectx"
	"github.com/magabrotheeeer/lesson-platform/internal/http/response"
	"github.com/magabrotheeeer/lesson-platform/internal/lib/sl"
	"github.com/magabrotheeeer/lesson-platform/internal/models"
	authservice "github.com/magabrotheeeer/lesson-platform/internal/services/auth"
)

// Service описывает интерфейс получения профиля.
type Service interface {
	Profile(ctx context.Context, userUID string) (*models.User, error)
}

// Handler обрабатывает HTTP-запросы на получение профиля.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.profile"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	identity, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		log.Error("missing user identity in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	user, err := h.service.Profile(r.Context(), identity.UID)
	if err != nil {
		if errors.Is(err, authservice.ErrUserNotFound) {
			log.Error("user not found", slog.String("user_uid", identity.UID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		}
		log.Error("failed to load profile", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal server error"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"user": user.Sanitize(),
	}))
}
