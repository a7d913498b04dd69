// Package cancel реализует HTTP-обработчик отмены подписки. Отмена
// откладывается до конца оплаченного периода: доступ сохраняется до его
// истечения.
package cancel

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
	subservice "github.com/magabrotheeeer/lesson-platform/internal/services/subscription"
)

// Service описывает интерфейс отмены подписки.
type Service interface {
	Cancel(ctx context.Context, userUID string) (*subservice.Status, error)
}

// Handler обрабатывает HTTP-запросы на отмену подписки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	status, err := h.service.Cancel(r.Context(), user.UID)
	if err != nil {
		switch {
		case errors.Is(err, subservice.ErrNoSubscription):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("no active subscription"))
		case errors.Is(err, subservice.ErrPaymentProvider):
			log.Error("payment provider request failed", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error("payment provider unavailable"))
		default:
			log.Error("failed to cancel subscription", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal server error"))
		}
		return
	}

	log.Info("subscription cancel requested", slog.String("user_uid", user.UID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"subscription": status,
	}))
}
