package models

import (
	"strings"
	"time"

	"intake/internal/visibility"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
)

// ServiceRequest is a submitted intake form.
type ServiceRequest struct {
	ID          id.ServiceRequestID `json:"id"`
	Name        string              `json:"name"`
	ServiceID   id.ServiceID        `json:"service_id"`
	ServiceName string              `json:"service_name"`
	StatusID    string              `json:"status_id"`
	Values      visibility.Values   `json:"values"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// NewServiceRequest builds a request named after its id when no name is given.
func NewServiceRequest(
	requestID id.ServiceRequestID,
	name string,
	serviceID id.ServiceID,
	serviceName string,
	statusID string,
	values visibility.Values,
	now time.Time,
) (*ServiceRequest, error) {
	if requestID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "request id is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName(requestID)
	}
	if values == nil {
		values = visibility.Values{}
	}
	return &ServiceRequest{
		ID:          requestID,
		Name:        name,
		ServiceID:   serviceID,
		ServiceName: serviceName,
		StatusID:    statusID,
		Values:      values,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// DefaultName derives a short human readable reference, e.g. "SR-1A2B3C4D".
func DefaultName(requestID id.ServiceRequestID) string {
	return "SR-" + strings.ToUpper(requestID.String()[:8])
}

// Apply overwrites the given values and optionally moves the request to a new
// status. Values that are not mentioned are left as they are.
func (r *ServiceRequest) Apply(values visibility.Values, statusID string, now time.Time) {
	if r.Values == nil {
		r.Values = visibility.Values{}
	}
	for k, v := range values {
		r.Values[k] = v
	}
	if statusID != "" {
		r.StatusID = statusID
	}
	r.UpdatedAt = now
}

// SearchLabel is the label shown in the request search lookup. The service
// name and creation date are left out when unknown.
func (r *ServiceRequest) SearchLabel() string {
	var b strings.Builder
	b.WriteString(r.Name)
	if r.ServiceName != "" {
		b.WriteString(" - ")
		b.WriteString(r.ServiceName)
	}
	if !r.CreatedAt.IsZero() {
		b.WriteString(" (")
		b.WriteString(r.CreatedAt.Format(time.DateOnly))
		b.WriteString(")")
	}
	return b.String()
}

// MinSearchLength is the shortest term, after trimming, that triggers a search.
const MinSearchLength = 2

// SearchResult is one entry of a request lookup.
type SearchResult struct {
	ID    id.ServiceRequestID `json:"id"`
	Label string              `json:"label"`
}

// Draft is an in-progress form. Its values change only through the draft store.
type Draft struct {
	ID        id.DraftID        `json:"id"`
	ServiceID id.ServiceID      `json:"service_id"`
	Values    visibility.Values `json:"values"`
	StartedAt time.Time         `json:"started_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
