package catalog

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"intake/internal/form/models"
	"intake/internal/visibility"
	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
)

// InMemory serves catalog lookups from a loaded catalog. Replace swaps the whole
// catalog atomically so readers never see a partially reloaded file.
type InMemory struct {
	mu       sync.RWMutex
	services map[id.ServiceID]models.Service
}

// NewInMemory indexes the services of c. A nil catalog yields an empty store.
func NewInMemory(c *models.Catalog) *InMemory {
	s := &InMemory{}
	s.Replace(c)
	return s
}

// Replace installs a new catalog.
func (s *InMemory) Replace(c *models.Catalog) {
	services := make(map[id.ServiceID]models.Service)
	if c != nil {
		for _, svc := range c.Services {
			if _, dup := services[svc.ID]; !dup {
				services[svc.ID] = svc
			}
		}
	}
	s.mu.Lock()
	s.services = services
	s.mu.Unlock()
}

// ListServices returns every service ordered by name.
func (s *InMemory) ListServices(_ context.Context) ([]models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Service, 0, len(s.services))
	for _, svc := range s.services {
		out = append(out, svc)
	}
	slices.SortFunc(out, func(a, b models.Service) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// FindService returns sentinel.ErrNotFound for unknown ids.
func (s *InMemory) FindService(_ context.Context, serviceID id.ServiceID) (*models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[serviceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &svc, nil
}

func (s *InMemory) Sections(ctx context.Context, serviceID id.ServiceID) ([]models.Section, error) {
	svc, err := s.FindService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(svc.Sections), nil
}

func (s *InMemory) Statuses(ctx context.Context, serviceID id.ServiceID) ([]models.Status, error) {
	svc, err := s.FindService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(svc.Statuses), nil
}

func (s *InMemory) Documents(ctx context.Context, serviceID id.ServiceID) ([]models.DocumentRequirement, error) {
	svc, err := s.FindService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(svc.Documents), nil
}

func (s *InMemory) ConditionGroups(ctx context.Context, serviceID id.ServiceID) ([]visibility.ConditionGroup, error) {
	svc, err := s.FindService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(svc.ConditionGroups), nil
}
