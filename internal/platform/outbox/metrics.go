package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the outbox relay.
type Metrics struct {
	Published           prometheus.Counter
	PublishFailures     prometheus.Counter
	SkippedCircuitOpen  prometheus.Counter
	BatchDuration       prometheus.Histogram
	CircuitBreakerState prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "welfare_outbox_published_total",
			Help: "Total number of outbox entries published to Kafka",
		}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "welfare_outbox_publish_failures_total",
			Help: "Total number of outbox batches that failed to publish",
		}),
		SkippedCircuitOpen: promauto.NewCounter(prometheus.CounterOpts{
			Name: "welfare_outbox_skipped_circuit_open_total",
			Help: "Total number of relay ticks skipped because the circuit breaker was open",
		}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "welfare_outbox_batch_duration_seconds",
			Help:    "Time spent claiming, publishing and marking one outbox batch",
			Buckets: prometheus.DefBuckets,
		}),
		CircuitBreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "welfare_outbox_circuit_breaker_state",
			Help: "Current relay circuit breaker state (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) SetCircuitBreakerState(open bool) {
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}
