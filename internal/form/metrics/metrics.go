package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for form loading and visibility evaluation.
type Metrics struct {
	FormsRendered   prometheus.Counter
	FieldsHidden    prometheus.Counter
	RenderDuration  prometheus.Histogram
	GetFormDuration prometheus.Histogram
}

// New registers the form metrics with the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the form metrics with reg. Tests pass a fresh registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FormsRendered: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_forms_rendered_total",
			Help: "Total number of visibility evaluation passes over a form",
		}),
		FieldsHidden: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_fields_hidden_total",
			Help: "Total number of fields hidden by condition groups across all renders",
		}),
		RenderDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_form_render_duration_seconds",
			Help:    "Duration of a full visibility re-evaluation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		GetFormDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_get_form_duration_seconds",
			Help:    "Duration of GetForm operations (catalog lookups for one service)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveRender records one render pass and how many fields it hid.
func (m *Metrics) ObserveRender(start time.Time, hidden int) {
	if m == nil {
		return
	}
	m.FormsRendered.Inc()
	m.FieldsHidden.Add(float64(hidden))
	m.RenderDuration.Observe(time.Since(start).Seconds())
}

// ObserveGetForm records the duration of a GetForm operation.
func (m *Metrics) ObserveGetForm(start time.Time) {
	if m == nil {
		return
	}
	m.GetFormDuration.Observe(time.Since(start).Seconds())
}
