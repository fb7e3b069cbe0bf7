package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics counts gateway webhook deliveries by outcome.
type WebhookMetrics struct {
	processed *prometheus.CounterVec
	duplicate *prometheus.CounterVec
	rejected  *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook counters on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_processed",
		Help: "Gateway webhook events applied to payment state.",
	}, []string{"gateway"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_duplicate",
		Help: "Gateway webhook events skipped as replays.",
	}, []string{"gateway"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_rejected",
		Help: "Gateway webhook events rejected before processing.",
	}, []string{"gateway"})
	reg.MustRegister(processed, duplicate, rejected)
	return &WebhookMetrics{
		processed: processed,
		duplicate: duplicate,
		rejected:  rejected,
	}
}

// IncProcessed increments the processed counter for the gateway.
func (m *WebhookMetrics) IncProcessed(gateway string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(gateway)).Inc()
}

// IncDuplicate increments the duplicate counter for the gateway.
func (m *WebhookMetrics) IncDuplicate(gateway string) {
	if m == nil || m.duplicate == nil {
		return
	}
	m.duplicate.WithLabelValues(normalizeLabel(gateway)).Inc()
}

// IncRejected increments the rejected counter for the gateway.
func (m *WebhookMetrics) IncRejected(gateway string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(gateway)).Inc()
}
