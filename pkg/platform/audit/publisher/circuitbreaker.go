package publisher

import (
	"sync"
	"time"
)

// CircuitBreaker stops forwarding to the sink while it keeps failing. After
// threshold consecutive failures the circuit opens for cooldown, then lets
// traffic through again.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration
	now       func() time.Time

	failures  int
	openUntil time.Time
	isOpen    bool
}

// NewCircuitBreaker creates a circuit breaker. Non-positive arguments select
// 5 failures and a one minute cooldown.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a call may go through. An open circuit whose cooldown
// has passed closes again.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.isOpen {
		return true
	}
	if cb.now().After(cb.openUntil) {
		cb.isOpen = false
		cb.failures = 0
		return true
	}
	return false
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.isOpen = false
}

// RecordFailure counts a failure and reports whether this one opened the circuit.
func (cb *CircuitBreaker) RecordFailure() (opened bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	if !cb.isOpen && cb.failures >= cb.threshold {
		cb.isOpen = true
		cb.openUntil = cb.now().Add(cb.cooldown)
		return true
	}
	return false
}

func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.isOpen
}
