// Package webhook реализует HTTP-обработчик событий платежного провайдера.
//
// Подпись проверяется по сырому телу запроса до разбора JSON. События с
// нарушением целостности (неизвестный клиент) подтверждаются ответом 200,
// чтобы провайдер не ретраил заведомо необрабатываемое событие; сбои
// хранилища возвращают 500 и событие будет доставлено повторно.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/lesson-platform/internal/http/response"
	"github.com/magabrotheeeer/lesson-platform/internal/lib/sl"
	"github.com/magabrotheeeer/lesson-platform/internal/metrics"
	"github.com/magabrotheeeer/lesson-platform/internal/paymentprovider"
	subservice "github.com/magabrotheeeer/lesson-platform/internal/services/subscription"
)

// Тело webhook-запроса ограничено, чтобы не читать произвольно большой
// payload в память.
const maxBodySize = 1 << 20

// Service описывает интерфейс обработки события провайдера.
type Service interface {
	HandleEvent(ctx context.Context, event *paymentprovider.Event) error
}

// Handler обрабатывает webhook-запросы платежного провайдера.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, webhookSecret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: webhookSecret,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.webhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error("failed to read request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	header := r.Header.Get(paymentprovider.SignatureHeader)
	if err := paymentprovider.VerifySignature(payload, header, h.webhookSecret, time.Now()); err != nil {
		metrics.WebhookSignatureFailures.Inc()
		log.Warn("webhook signature rejected", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	var event paymentprovider.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Error("failed to decode event", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid event payload"))
		return
	}

	log = log.With(slog.String("event_id", event.ID), slog.String("event_type", event.Type))

	if err := h.service.HandleEvent(r.Context(), &event); err != nil {
		if errors.Is(err, subservice.ErrUserNotFound) {
			// Клиент провайдера не сопоставлен ни с одним пользователем:
			// ретраи провайдера это не исправят, событие подтверждается.
			metrics.WebhookEvents.WithLabelValues(event.Type, metrics.ResultIntegrity).Inc()
			log.Error("webhook event for unknown customer", sl.Err(err))
			render.JSON(w, r, response.OK())
			return
		}
		metrics.WebhookEvents.WithLabelValues(event.Type, metrics.ResultFailed).Inc()
		log.Error("failed to handle webhook event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal server error"))
		return
	}

	result := metrics.ResultOK
	if !paymentprovider.KnownEventType(event.Type) {
		result = metrics.ResultIgnored
	}
	metrics.WebhookEvents.WithLabelValues(event.Type, result).Inc()
	log.Info("webhook event processed", slog.String("result", result))
	render.JSON(w, r, response.OK())
}
