package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveTurns       prometheus.Gauge
	TurnEvents        *prometheus.CounterVec
	RetrievalEvents   *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	FirstDeltaLatency prometheus.Histogram

	window *turnStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveTurns: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_turns",
			Help:      "Number of conversation turns currently in flight.",
		}),
		TurnEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_events_total",
			Help:      "Turn lifecycle events by type.",
		}, []string{"event"}),
		RetrievalEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_events_total",
			Help:      "Context retrieval events by source and outcome.",
		}, []string{"source", "outcome"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
		FirstDeltaLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_delta_latency_ms",
			Help:      "Latency from send to first streamed assistant delta in milliseconds.",
			Buckets:   []float64{100, 200, 300, 500, 700, 900, 1200, 2000, 4000},
		}),
		window: newTurnStageWindow(256),
	}
}

func (m *Metrics) ObserveFirstDeltaLatency(d time.Duration) {
	m.FirstDeltaLatency.Observe(float64(d.Milliseconds()))
}

// ObserveTurnStage records a stage duration in the rolling window used
// by the perf endpoint.
func (m *Metrics) ObserveTurnStage(stage string, d time.Duration) {
	if m == nil || m.window == nil {
		return
	}
	m.window.Observe(stage, float64(d.Milliseconds()))
}

func (m *Metrics) ObserveTurnIndicator(name string) {
	if m == nil || m.window == nil {
		return
	}
	m.window.ObserveIndicator(name)
}

// SnapshotTurnStages returns the rolling-window percentiles for the
// perf endpoint.
func (m *Metrics) SnapshotTurnStages() TurnStageSnapshot {
	if m == nil || m.window == nil {
		return TurnStageSnapshot{}
	}
	return m.window.Snapshot()
}

func (m *Metrics) ResetTurnStages() {
	if m == nil || m.window == nil {
		return
	}
	m.window.Reset()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
