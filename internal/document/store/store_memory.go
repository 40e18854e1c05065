package store

import (
	"context"
	"slices"
	"sync"

	"intake/internal/document/models"
	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
)

// InMemory keeps attachments per request in attach order.
type InMemory struct {
	mu        sync.RWMutex
	ids       map[id.AttachmentID]struct{}
	byRequest map[id.ServiceRequestID][]models.Attachment
}

func NewInMemory() *InMemory {
	return &InMemory{
		ids:       make(map[id.AttachmentID]struct{}),
		byRequest: make(map[id.ServiceRequestID][]models.Attachment),
	}
}

func (s *InMemory) Create(_ context.Context, a *models.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[a.ID]; ok {
		return sentinel.ErrConflict
	}
	s.ids[a.ID] = struct{}{}
	s.byRequest[a.ServiceRequestID] = append(s.byRequest[a.ServiceRequestID], *a)
	return nil
}

// ListForRequirement returns the attachments of one requirement, oldest first.
// An empty requirementID lists every attachment of the request.
func (s *InMemory) ListForRequirement(_ context.Context, requestID id.ServiceRequestID, requirementID string) ([]models.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Attachment{}
	for _, a := range s.byRequest[requestID] {
		if requirementID == "" || a.RequirementID == requirementID {
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Attachment) int {
		return a.AttachedAt.Compare(b.AttachedAt)
	})
	return out, nil
}
