package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks document linking, including retries while a new request
// becomes visible.
type Metrics struct {
	Attached          prometheus.Counter
	LinkRetries       prometheus.Counter
	LinkFailures      prometheus.Counter
	RejectedFileTypes prometheus.Counter
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Attached: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_documents_attached_total",
			Help: "Total number of files linked to service requests",
		}),
		LinkRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_document_link_retries_total",
			Help: "Total number of document link attempts retried",
		}),
		LinkFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_document_link_failures_total",
			Help: "Total number of document links that failed",
		}),
		RejectedFileTypes: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_document_rejected_file_types_total",
			Help: "Total number of uploads rejected for their file type",
		}),
	}
}

func (m *Metrics) IncrementAttached() {
	if m != nil {
		m.Attached.Inc()
	}
}

func (m *Metrics) IncrementLinkRetries() {
	if m != nil {
		m.LinkRetries.Inc()
	}
}

func (m *Metrics) IncrementLinkFailures() {
	if m != nil {
		m.LinkFailures.Inc()
	}
}

func (m *Metrics) IncrementRejectedFileTypes() {
	if m != nil {
		m.RejectedFileTypes.Inc()
	}
}
