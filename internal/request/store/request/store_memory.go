package request

import (
	"context"
	"slices"
	"strings"
	"sync"

	"intake/internal/request/models"
	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
)

// InMemory is a map-backed request store used in development and tests.
type InMemory struct {
	mu       sync.RWMutex
	requests map[id.ServiceRequestID]*models.ServiceRequest
}

func NewInMemory() *InMemory {
	return &InMemory{requests: make(map[id.ServiceRequestID]*models.ServiceRequest)}
}

// Create stores a new request. Returns sentinel.ErrConflict if the id is taken.
func (s *InMemory) Create(_ context.Context, req *models.ServiceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; ok {
		return sentinel.ErrConflict
	}
	s.requests[req.ID] = clone(req)
	return nil
}

// Update replaces an existing request.
func (s *InMemory) Update(_ context.Context, req *models.ServiceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.requests[req.ID] = clone(req)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, requestID id.ServiceRequestID) (*models.ServiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(req), nil
}

// Search matches term case-insensitively against the request and service names,
// newest first.
func (s *InMemory) Search(_ context.Context, term string, limit int) ([]*models.ServiceRequest, error) {
	needle := strings.ToLower(term)
	s.mu.RLock()
	var out []*models.ServiceRequest
	for _, req := range s.requests {
		if strings.Contains(strings.ToLower(req.Name), needle) ||
			strings.Contains(strings.ToLower(req.ServiceName), needle) {
			out = append(out, clone(req))
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *models.ServiceRequest) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func clone(req *models.ServiceRequest) *models.ServiceRequest {
	c := *req
	c.Values = req.Values.Clone()
	return &c
}
