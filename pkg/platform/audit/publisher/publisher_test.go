package publisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	audit "intake/pkg/platform/audit"
	"intake/pkg/platform/audit/store/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (s *recordingSink) Publish(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	subject := uuid.NewString()
	err := pub.Emit(context.Background(), audit.Event{
		Subject: subject,
		Action:  string(audit.EventRequestCreated),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventRequestCreated), events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category, "category derives from the action")
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100), WithLogger(quiet))

	subject := uuid.NewString()
	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{
			Subject: subject,
			Action:  string(audit.EventDraftStarted),
		}))
	}

	pub.Close()

	events, err := store.ListBySubject(context.Background(), subject)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_EmitAfterClose(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(1))
	pub.Close()
	pub.Close()

	err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventRequestUpdated)})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	m := NewMetricsWith(prometheus.NewRegistry())
	pub := NewPublisher(store, WithAsyncBuffer(1), WithLogger(quiet), WithMetrics(m))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		dropped int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{
				Subject: "s",
				Action:  string(audit.EventRequestUpdated),
			})
			if errors.Is(err, ErrBufferFull) {
				mu.Lock()
				dropped++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	pub.Close()

	events, err := store.ListBySubject(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, 50, len(events)+dropped)
	assert.Equal(t, float64(dropped), promtest.ToFloat64(m.BufferDropped))
}

func TestPublisher_CancelledContext(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(1))
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pub.Emit(ctx, audit.Event{Action: string(audit.EventRequestCreated)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublisher_Timestamps(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	before := time.Now()
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Subject: "a", Action: "x"}))
	after := time.Now()

	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Subject: "b", Action: "x", Timestamp: custom}))

	a, err := pub.List(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, a, 1)
	assert.False(t, a[0].Timestamp.Before(before))
	assert.False(t, a[0].Timestamp.After(after))

	b, err := pub.List(context.Background(), "b")
	require.NoError(t, err)
	require.Len(t, b, 1)
	assert.Equal(t, custom, b[0].Timestamp)
}

func TestPublisher_SubjectsAreSeparate(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore())
	defer pub.Close()
	ctx := context.Background()

	require.NoError(t, pub.Emit(ctx, audit.Event{Subject: "r1", Action: string(audit.EventRequestCreated)}))
	require.NoError(t, pub.Emit(ctx, audit.Event{Subject: "r1", Action: string(audit.EventRequestUpdated)}))
	require.NoError(t, pub.Emit(ctx, audit.Event{Subject: "r2", Action: string(audit.EventDocumentAttached)}))

	r1, err := pub.List(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, r1, 2)
	assert.Equal(t, string(audit.EventRequestCreated), r1[0].Action)
	assert.Equal(t, string(audit.EventRequestUpdated), r1[1].Action)

	r2, err := pub.List(ctx, "r2")
	require.NoError(t, err)
	require.Len(t, r2, 1)
	assert.Equal(t, audit.CategoryOperations, r2[0].Category)
}

func TestPublisher_Sink(t *testing.T) {
	ctx := context.Background()

	t.Run("persisted events are forwarded", func(t *testing.T) {
		sink := &recordingSink{}
		pub := NewPublisher(memory.NewInMemoryStore(), WithSink(sink), WithAsyncBuffer(4))
		require.NoError(t, pub.Emit(ctx, audit.Event{Subject: "r", Action: string(audit.EventRequestCreated)}))
		pub.Close()
		assert.Equal(t, 1, sink.count())
	})

	t.Run("sink failures do not fail emit and open the circuit", func(t *testing.T) {
		sink := &recordingSink{err: errors.New("broker down")}
		m := NewMetricsWith(prometheus.NewRegistry())
		store := memory.NewInMemoryStore()
		pub := NewPublisher(store,
			WithSink(sink),
			WithCircuitBreaker(NewCircuitBreaker(2, time.Hour)),
			WithMetrics(m),
			WithLogger(quiet),
		)
		defer pub.Close()

		for range 4 {
			require.NoError(t, pub.Emit(ctx, audit.Event{Subject: "r", Action: string(audit.EventRequestUpdated)}))
		}

		events, err := store.ListBySubject(ctx, "r")
		require.NoError(t, err)
		assert.Len(t, events, 4, "the store still records every event")
		assert.Equal(t, 2.0, promtest.ToFloat64(m.SinkFailures))
		assert.Equal(t, 2.0, promtest.ToFloat64(m.SinkSkipped))
		assert.Equal(t, 1.0, promtest.ToFloat64(m.CircuitBreakerState))
	})
}
