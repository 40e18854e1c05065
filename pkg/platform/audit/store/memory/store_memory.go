package memory

import (
	"context"
	"slices"
	"sync"

	audit "intake/pkg/platform/audit"
)

// DefaultMaxPerSubject bounds the history kept for one service request when no
// database is configured.
const DefaultMaxPerSubject = 500

// InMemoryStore keeps the most recent audit events of each subject in append
// order. Older events are dropped once a subject exceeds its limit.
type InMemoryStore struct {
	mu            sync.RWMutex
	events        map[string][]audit.Event
	maxPerSubject int
}

func NewInMemoryStore() *InMemoryStore {
	return NewBoundedStore(DefaultMaxPerSubject)
}

// NewBoundedStore keeps at most max events per subject. Non-positive max keeps everything.
func NewBoundedStore(max int) *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]audit.Event), maxPerSubject: max}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := append(s.events[event.Subject], event)
	if s.maxPerSubject > 0 && len(history) > s.maxPerSubject {
		history = slices.Clone(history[len(history)-s.maxPerSubject:])
	}
	s.events[event.Subject] = history
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events[subject]), nil
}
