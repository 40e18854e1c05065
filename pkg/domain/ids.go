// Package domain holds the typed identifiers shared across modules.
//
// Runtime entities (requests, drafts, approval steps, attachments) are identified by
// UUIDs wrapped in distinct types so they cannot be swapped by accident. Catalog
// entities (services) use operator-chosen slugs.
package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "intake/pkg/domain-errors"
)

type (
	ServiceRequestID uuid.UUID
	DraftID          uuid.UUID
	ApprovalStepID   uuid.UUID
	AttachmentID     uuid.UUID
)

// ServiceID identifies a service in the form catalog.
type ServiceID string

const maxServiceIDLength = 64

var serviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

func (id ServiceRequestID) String() string { return uuid.UUID(id).String() }
func (id DraftID) String() string          { return uuid.UUID(id).String() }
func (id ApprovalStepID) String() string   { return uuid.UUID(id).String() }
func (id AttachmentID) String() string     { return uuid.UUID(id).String() }
func (id ServiceID) String() string        { return string(id) }

// IsNil reports whether the identifier is the zero UUID.
func (id ServiceRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DraftID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id ApprovalStepID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id AttachmentID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// MarshalText encodes identifiers in their canonical string form so they
// appear as strings in JSON.
func (id ServiceRequestID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id DraftID) MarshalText() ([]byte, error)          { return uuid.UUID(id).MarshalText() }
func (id ApprovalStepID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id AttachmentID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }

func (id *ServiceRequestID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DraftID) UnmarshalText(b []byte) error          { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ApprovalStepID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AttachmentID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }

func ParseServiceRequestID(s string) (ServiceRequestID, error) {
	u, err := parseUUID(s, "service request id")
	return ServiceRequestID(u), err
}

func ParseDraftID(s string) (DraftID, error) {
	u, err := parseUUID(s, "draft id")
	return DraftID(u), err
}

func ParseApprovalStepID(s string) (ApprovalStepID, error) {
	u, err := parseUUID(s, "approval step id")
	return ApprovalStepID(u), err
}

func ParseAttachmentID(s string) (AttachmentID, error) {
	u, err := parseUUID(s, "attachment id")
	return AttachmentID(u), err
}

// ParseServiceID validates a catalog slug: non-empty, at most 64 characters,
// letters, digits, '-' and '_' only.
func ParseServiceID(s string) (ServiceID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "service id cannot be empty")
	}
	if len(s) > maxServiceIDLength || !serviceIDPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid service id")
	}
	return ServiceID(s), nil
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
