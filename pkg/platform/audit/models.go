package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers changes to the request record itself: creation,
	// updates and submission. These are kept for the lifetime of the request.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine activity such as drafts being started
	// or documents being linked.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Subject is the identifier of the affected record, usually a service request id.
	Subject   string
	Action    string
	ServiceID string
	Status    string
	Reason    string
	// RequestID is the HTTP correlation id, not the service request.
	RequestID string
}

type AuditEvent string

const (
	// Request events
	EventRequestCreated AuditEvent = "request_created"
	EventRequestUpdated AuditEvent = "request_updated"

	// Draft events
	EventDraftStarted   AuditEvent = "draft_started"
	EventDraftSubmitted AuditEvent = "draft_submitted"

	// Approval events
	EventApprovalCompleted AuditEvent = "approval_completed"

	// Document events
	EventDocumentAttached AuditEvent = "document_attached"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventRequestCreated:    CategoryCompliance,
	EventRequestUpdated:    CategoryCompliance,
	EventDraftSubmitted:    CategoryCompliance,
	EventApprovalCompleted: CategoryCompliance,

	EventDraftStarted:     CategoryOperations,
	EventDocumentAttached: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}

// Sink receives a copy of every persisted event, e.g. a message broker.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}
