package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the request module.
// Tracks request and draft counts and the field-change critical path.
type Metrics struct {
	RequestsCreated     prometheus.Counter
	RequestsUpdated     prometheus.Counter
	DraftsStarted       prometheus.Counter
	DraftsSubmitted     prometheus.Counter
	FieldChangeDuration prometheus.Histogram
	SearchDuration      prometheus.Histogram
}

// New registers the request metrics with the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the request metrics with reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_requests_created_total",
			Help: "Total number of service requests created",
		}),
		RequestsUpdated: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_requests_updated_total",
			Help: "Total number of service request updates",
		}),
		DraftsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_drafts_started_total",
			Help: "Total number of drafts started",
		}),
		DraftsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_drafts_submitted_total",
			Help: "Total number of drafts submitted as service requests",
		}),
		FieldChangeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_field_change_duration_seconds",
			Help:    "Duration of a field change including the visibility re-evaluation",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		SearchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_request_search_duration_seconds",
			Help:    "Duration of request lookups",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementRequestsCreated() {
	if m != nil {
		m.RequestsCreated.Inc()
	}
}

func (m *Metrics) IncrementRequestsUpdated() {
	if m != nil {
		m.RequestsUpdated.Inc()
	}
}

func (m *Metrics) IncrementDraftsStarted() {
	if m != nil {
		m.DraftsStarted.Inc()
	}
}

func (m *Metrics) IncrementDraftsSubmitted() {
	if m != nil {
		m.DraftsSubmitted.Inc()
	}
}

// ObserveFieldChange records the duration of a field change.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveFieldChange(start time.Time) {
	if m != nil {
		m.FieldChangeDuration.Observe(time.Since(start).Seconds())
	}
}

// ObserveSearch records the duration of a request search.
func (m *Metrics) ObserveSearch(start time.Time) {
	if m != nil {
		m.SearchDuration.Observe(time.Since(start).Seconds())
	}
}
