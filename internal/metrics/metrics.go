// Package metrics содержит прометеевские счетчики обработки webhook-событий.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты обработки webhook-события для метки result.
const (
	ResultOK        = "ok"
	ResultIgnored   = "ignored"
	ResultIntegrity = "integrity_error"
	ResultFailed    = "failed"
)

// WebhookEvents считает обработанные webhook-события по типу и результату.
var WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "billing_webhook_events_total",
	Help: "Processed billing provider webhook events by type and result.",
}, []string{"event_type", "result"})

// WebhookSignatureFailures считает отклоненные по подписи webhook-запросы.
var WebhookSignatureFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "billing_webhook_signature_failures_total",
	Help: "Webhook requests rejected due to invalid signature.",
})
