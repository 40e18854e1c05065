package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts approval steps as they are created and completed.
type Metrics struct {
	StepsSeeded    prometheus.Counter
	StepsCompleted prometheus.Counter
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StepsSeeded: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_approval_steps_seeded_total",
			Help: "Total number of approval steps created for new requests",
		}),
		StepsCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_approval_steps_completed_total",
			Help: "Total number of approval steps completed",
		}),
	}
}

func (m *Metrics) AddStepsSeeded(n int) {
	if m != nil {
		m.StepsSeeded.Add(float64(n))
	}
}

func (m *Metrics) IncrementStepsCompleted() {
	if m != nil {
		m.StepsCompleted.Inc()
	}
}
