// Package publisher records audit events in the audit store and forwards them
// to an optional sink such as a message broker.
//
// In sync mode Emit writes before returning. WithAsyncBuffer moves the write
// to a background worker; Close drains whatever is still buffered.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "intake/pkg/platform/audit"
	"intake/pkg/platform/audit/worker"
)

var (
	// ErrBufferFull is returned by Emit in async mode when the buffer has no room.
	ErrBufferFull = errors.New("audit buffer full")
	// ErrClosed is returned by Emit after Close.
	ErrClosed = errors.New("audit publisher closed")
)

// Publisher fans audit events out to the store and the sink.
type Publisher struct {
	store   audit.Store
	sink    audit.Sink
	breaker *CircuitBreaker
	logger  *slog.Logger
	metrics *Metrics

	bufferSize int
	buffer     chan audit.Event
	done       chan struct{}

	mu     sync.RWMutex
	closed bool
}

type Option func(*Publisher)

// WithAsyncBuffer persists events on a background worker with a buffer of n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.bufferSize = n
	}
}

// WithSink forwards every persisted event to sink. Sink failures are logged and
// counted but never fail Emit; the store stays the record of truth.
func WithSink(sink audit.Sink) Option {
	return func(p *Publisher) {
		p.sink = sink
	}
}

// WithCircuitBreaker overrides the breaker guarding the sink.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(p *Publisher) {
		p.breaker = cb
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// NewPublisher constructs a Publisher. Call Close when done.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.breaker == nil {
		p.breaker = NewCircuitBreaker(5, 30*time.Second)
	}
	if p.bufferSize > 0 {
		p.buffer = make(chan audit.Event, p.bufferSize)
		p.done = make(chan struct{})
		w := worker.NewWorker(deliveryStore{p}, p.buffer, p.logger)
		go func() {
			defer close(p.done)
			_ = w.Run(context.Background())
		}()
	}
	return p
}

// Emit records event. A zero timestamp is set to now.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if p.buffer == nil {
		return p.deliver(ctx, event)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.buffer <- event:
		return nil
	default:
		p.metrics.incBufferDropped()
		p.logger.WarnContext(ctx, "audit buffer full, event dropped",
			"action", event.Action,
			"subject", event.Subject,
		)
		return ErrBufferFull
	}
}

// List returns the recorded events of one subject.
func (p *Publisher) List(ctx context.Context, subject string) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

// Close stops accepting events and waits until buffered ones are persisted.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.buffer != nil {
		close(p.buffer)
	}
	p.mu.Unlock()

	if p.done != nil {
		<-p.done
	}
}

func (p *Publisher) deliver(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		p.metrics.incPersistFailures()
		return err
	}
	p.metrics.incPersisted()
	p.forward(ctx, event)
	return nil
}

func (p *Publisher) forward(ctx context.Context, event audit.Event) {
	if p.sink == nil {
		return
	}
	if !p.breaker.Allow() {
		p.metrics.incSinkSkipped()
		return
	}
	if err := p.sink.Publish(ctx, event); err != nil {
		p.metrics.incSinkFailures()
		if p.breaker.RecordFailure() {
			p.metrics.setCircuitOpen(true)
			p.logger.ErrorContext(ctx, "audit sink circuit opened", "error", err)
			return
		}
		p.logger.WarnContext(ctx, "failed to publish audit event",
			"action", event.Action,
			"subject", event.Subject,
			"error", err,
		)
		return
	}
	p.breaker.RecordSuccess()
	p.metrics.setCircuitOpen(false)
}

// deliveryStore lets the worker persist through the publisher's fan-out.
type deliveryStore struct {
	p *Publisher
}

func (d deliveryStore) Append(ctx context.Context, event audit.Event) error {
	return d.p.deliver(ctx, event)
}

func (d deliveryStore) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	return d.p.store.ListBySubject(ctx, subject)
}
