// Package portal реализует HTTP-обработчик создания сессии личного кабинета
// биллинга у платежного провайдера.
package portal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/lesson-platform/internal/http/middlewarectx"
	"github.com/magabrotheeeer/lesson-platform/internal/http/response"
	"github.com/magabrotheeeer/lesson-platform/internal/lib/sl"
	"github.com/magabrotheeeer/lesson-platform/internal/paymentprovider"
	subservice "github.com/magabrotheeeer/lesson-platform/internal/services/subscription"
)

// Request — входные данные для создания сессии личного кабинета.
type Request struct {
	ReturnURL string `json:"return_url" validate:"required,url"`
}

// Service описывает интерфейс создания сессии личного кабинета.
type Service interface {
	CreateBillingPortalSession(ctx context.Context, userUID, returnURL string) (*paymentprovider.PortalSession, error)
}

// Handler обрабатывает HTTP-запросы на доступ к личному кабинету биллинга.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.portal"

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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	session, err := h.service.CreateBillingPortalSession(r.Context(), user.UID, req.ReturnURL)
	if err != nil {
		switch {
		case errors.Is(err, subservice.ErrNoSubscription):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("no billing account for user"))
		case errors.Is(err, subservice.ErrPaymentProvider):
			log.Error("payment provider request failed", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error("payment provider unavailable"))
		default:
			log.Error("failed to create portal session", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal server error"))
		}
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"url": session.URL,
	}))
}
