package store

import (
	"context"
	"sync"

	"intake/internal/approval/models"
	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
)

// InMemory keeps approval steps in a map, indexed by request.
type InMemory struct {
	mu        sync.RWMutex
	steps     map[id.ApprovalStepID]*models.ApprovalStep
	byRequest map[id.ServiceRequestID][]id.ApprovalStepID
}

func NewInMemory() *InMemory {
	return &InMemory{
		steps:     make(map[id.ApprovalStepID]*models.ApprovalStep),
		byRequest: make(map[id.ServiceRequestID][]id.ApprovalStepID),
	}
}

// CreateMany stores all steps or none. A duplicate id returns sentinel.ErrConflict.
func (s *InMemory) CreateMany(_ context.Context, steps []models.ApprovalStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[id.ApprovalStepID]struct{}, len(steps))
	for _, step := range steps {
		if _, ok := s.steps[step.ID]; ok {
			return sentinel.ErrConflict
		}
		if _, ok := seen[step.ID]; ok {
			return sentinel.ErrConflict
		}
		seen[step.ID] = struct{}{}
	}
	for _, step := range steps {
		s.steps[step.ID] = clone(&step)
		s.byRequest[step.ServiceRequestID] = append(s.byRequest[step.ServiceRequestID], step.ID)
	}
	return nil
}

// ListByRequest returns the steps of a request in insertion order.
func (s *InMemory) ListByRequest(_ context.Context, requestID id.ServiceRequestID) ([]models.ApprovalStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byRequest[requestID]
	out := make([]models.ApprovalStep, 0, len(ids))
	for _, stepID := range ids {
		out = append(out, *clone(s.steps[stepID]))
	}
	return out, nil
}

func (s *InMemory) FindByID(_ context.Context, stepID id.ApprovalStepID) (*models.ApprovalStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	step, ok := s.steps[stepID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(step), nil
}

func (s *InMemory) Update(_ context.Context, step *models.ApprovalStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.steps[step.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.steps[step.ID] = clone(step)
	return nil
}

func clone(step *models.ApprovalStep) *models.ApprovalStep {
	c := *step
	if step.CompletedAt != nil {
		t := *step.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
