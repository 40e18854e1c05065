package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks audit delivery to the store and the sink.
type Metrics struct {
	Persisted           prometheus.Counter
	PersistFailures     prometheus.Counter
	BufferDropped       prometheus.Counter
	SinkFailures        prometheus.Counter
	SinkSkipped         prometheus.Counter
	CircuitBreakerState prometheus.Gauge
}

func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Persisted: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_audit_persisted_total",
			Help: "Total number of audit events written to the audit store",
		}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_audit_persist_failures_total",
			Help: "Total number of audit events the store rejected",
		}),
		BufferDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_audit_buffer_dropped_total",
			Help: "Total number of audit events rejected because the async buffer was full",
		}),
		SinkFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_audit_sink_failures_total",
			Help: "Total number of audit events the sink failed to publish",
		}),
		SinkSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_audit_sink_skipped_total",
			Help: "Total number of audit events not sent to the sink because the circuit was open",
		}),
		CircuitBreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "intake_audit_sink_circuit_open",
			Help: "Sink circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
	}
}

func (m *Metrics) incPersisted() {
	if m != nil {
		m.Persisted.Inc()
	}
}

func (m *Metrics) incPersistFailures() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) incBufferDropped() {
	if m != nil {
		m.BufferDropped.Inc()
	}
}

func (m *Metrics) incSinkFailures() {
	if m != nil {
		m.SinkFailures.Inc()
	}
}

func (m *Metrics) incSinkSkipped() {
	if m != nil {
		m.SinkSkipped.Inc()
	}
}

func (m *Metrics) setCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}
