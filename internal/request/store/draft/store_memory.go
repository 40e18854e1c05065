package draft

import (
	"context"
	"sync"
	"time"

	"intake/internal/request/models"
	"intake/internal/visibility"
	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
)

// InMemory keeps drafts in process. Drafts untouched for longer than the TTL
// are treated as gone.
type InMemory struct {
	mu     sync.RWMutex
	drafts map[id.DraftID]*models.Draft
	ttl    time.Duration
}

// NewInMemory constructs a draft store. A zero ttl keeps drafts forever.
func NewInMemory(ttl time.Duration) *InMemory {
	return &InMemory{drafts: make(map[id.DraftID]*models.Draft), ttl: ttl}
}

func (s *InMemory) Create(_ context.Context, d *models.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drafts[d.ID]; ok {
		return sentinel.ErrConflict
	}
	s.drafts[d.ID] = cloneDraft(d)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, draftID id.DraftID) (*models.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.live(draftID, time.Now())
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneDraft(d), nil
}

// SetValue overwrites one field value and returns the updated draft.
func (s *InMemory) SetValue(_ context.Context, draftID id.DraftID, field string, value visibility.Value, now time.Time) (*models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.live(draftID, now)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if d.Values == nil {
		d.Values = visibility.Values{}
	}
	d.Values[field] = value
	d.UpdatedAt = now
	return cloneDraft(d), nil
}

func (s *InMemory) Delete(_ context.Context, draftID id.DraftID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, draftID)
	return nil
}

// live must be called with the lock held.
func (s *InMemory) live(draftID id.DraftID, now time.Time) (*models.Draft, bool) {
	d, ok := s.drafts[draftID]
	if !ok {
		return nil, false
	}
	if s.ttl > 0 && now.Sub(d.UpdatedAt) > s.ttl {
		return nil, false
	}
	return d, true
}

func cloneDraft(d *models.Draft) *models.Draft {
	c := *d
	c.Values = d.Values.Clone()
	return &c
}
