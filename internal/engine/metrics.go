package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"park-timer-backend/internal/model"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	ticks           prometheus.Counter
	transitions     *prometheus.CounterVec
	alerts          prometheus.Counter
	persistFailures prometheus.Counter
	tickDuration    prometheus.Histogram
}

// NewMetrics creates the engine collectors and registers them with reg
// when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "park_engine_ticks_total",
			Help: "Completed timer recomputation passes",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "park_engine_transitions_total",
			Help: "Visitor status transitions applied by the engine",
		}, []string{"status"}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "park_engine_alerts_total",
			Help: "Expiration alerts handed to the dispatcher",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "park_engine_persist_failures_total",
			Help: "Timer updates that could not be written and will be retried",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "park_engine_tick_duration_seconds",
			Help:    "Duration of one timer recomputation pass",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ticks, m.transitions, m.alerts, m.persistFailures, m.tickDuration)
	}
	return m
}

func (m *Metrics) tick(started time.Time) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) transition(s model.VisitorStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(s)).Inc()
}

func (m *Metrics) alert() {
	if m == nil {
		return
	}
	m.alerts.Inc()
}

func (m *Metrics) persistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}
