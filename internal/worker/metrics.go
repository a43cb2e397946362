package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for processed debit messages.
const (
	OutcomeApplied      = "applied"
	OutcomeDuplicate    = "duplicate"
	OutcomeDropped      = "dropped"
	OutcomeRequeued     = "requeued"
	OutcomeDeadLettered = "dead_lettered"
)

// Metrics holds the consumer's Prometheus collectors.
type Metrics struct {
	Messages *prometheus.CounterVec
	Latency  prometheus.Histogram
	InFlight prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg (skipped when reg is nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet",
			Subsystem: "debit_consumer",
			Name:      "messages_total",
			Help:      "Debit messages settled by the consumer, by outcome.",
		}, []string{"outcome"}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wallet",
			Subsystem: "debit_consumer",
			Name:      "apply_seconds",
			Help:      "Time spent applying a debit, including the wallet lock wait.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wallet",
			Subsystem: "debit_consumer",
			Name:      "in_flight",
			Help:      "Debits currently being applied.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Messages, m.Latency, m.InFlight)
	}
	return m
}

func (m *Metrics) observe(outcome string, started time.Time) {
	m.Messages.WithLabelValues(outcome).Inc()
	if !started.IsZero() {
		m.Latency.Observe(time.Since(started).Seconds())
	}
}
