package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Batch outcome labels.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Metrics holds the Prometheus collectors for the worker and the API.
// All methods are safe on a nil receiver so components can run without it.
type Metrics struct {
	registry *prometheus.Registry

	BatchesProcessed    *prometheus.CounterVec
	BatchHandlerSeconds prometheus.Histogram
	BatchesPending      prometheus.Gauge
	StoreErrors         prometheus.Counter

	ToolCalls    *prometheus.CounterVec
	TurnRounds   prometheus.Histogram
	GatewayCalls *prometheus.CounterVec

	WebhookMessages *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		BatchesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batches_processed_total",
				Help: "Total number of batches handed to the batch handler, by outcome",
			},
			[]string{"status"},
		),
		BatchHandlerSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "batch_handler_duration_seconds",
				Help:    "Duration of batch handler runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		BatchesPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "batches_pending",
				Help: "Number of customers with a pending batch",
			},
		),
		StoreErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scheduler_store_errors_total",
				Help: "Total number of queue store failures seen by the scheduler",
			},
		),
		ToolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_calls_total",
				Help: "Total number of tool calls executed, by tool and outcome",
			},
			[]string{"tool", "status"},
		),
		TurnRounds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "turn_rounds",
				Help:    "Number of tool rounds used per turn",
				Buckets: []float64{0, 1, 2, 3, 4, 5},
			},
		),
		GatewayCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_calls_total",
				Help: "Total number of language model gateway calls, by outcome",
			},
			[]string{"status"},
		),
		WebhookMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_messages_total",
				Help: "Total number of inbound messages accepted, by channel",
			},
			[]string{"channel"},
		),
	}

	registry.MustRegister(
		m.BatchesProcessed,
		m.BatchHandlerSeconds,
		m.BatchesPending,
		m.StoreErrors,
		m.ToolCalls,
		m.TurnRounds,
		m.GatewayCalls,
		m.WebhookMessages,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveBatch(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.BatchesProcessed.WithLabelValues(status).Inc()
	if status != StatusSkipped {
		m.BatchHandlerSeconds.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.BatchesPending.Set(float64(n))
}

func (m *Metrics) StoreError() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}

func (m *Metrics) ToolCall(tool string, failed bool) {
	if m == nil {
		return
	}
	status := StatusOK
	if failed {
		status = StatusError
	}
	m.ToolCalls.WithLabelValues(tool, status).Inc()
}

func (m *Metrics) ObserveTurn(rounds int) {
	if m == nil {
		return
	}
	m.TurnRounds.Observe(float64(rounds))
}

func (m *Metrics) GatewayCall(err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.GatewayCalls.WithLabelValues(status).Inc()
}

func (m *Metrics) WebhookMessage(channel string) {
	if m == nil {
		return
	}
	m.WebhookMessages.WithLabelValues(channel).Inc()
}
