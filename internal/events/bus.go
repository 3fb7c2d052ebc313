package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/leefowlercu/timelapse/internal/metrics"
)

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 64

// Bus carries capture and session events between components.
type Bus interface {
	// Publish queues event for every subscriber interested in its type.
	// Returns ErrBusClosed once the bus is closed.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers handler for the listed event types, or for every
	// type when none are listed. The returned function removes it.
	Subscribe(handler EventHandler, types ...EventType) (unsubscribe func())

	// Close stops accepting events and waits for queued deliveries.
	Close() error
}

// subscriber owns a queue drained by a single goroutine, so one handler
// sees events in publish order.
type subscriber struct {
	id      uint64
	types   map[EventType]struct{} // nil means every type
	handler EventHandler
	queue   chan Event
	once    sync.Once
}

func (s *subscriber) wants(t EventType) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.queue) })
}

// EventBus is the in-process Bus.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[uint64]*subscriber
	nextID      uint64
	closed      bool
	wg          sync.WaitGroup

	published atomic.Uint64
	dropped   atomic.Uint64

	bufferSize int
	logger     *slog.Logger
}

// BusOption configures an EventBus.
type BusOption func(*EventBus)

// WithBufferSize sets the per-subscriber queue length.
func WithBufferSize(size int) BusOption {
	return func(b *EventBus) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

// WithLogger sets the logger used for dropped events and handler panics.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *EventBus) {
		b.logger = logger
	}
}

// NewBus creates an EventBus.
func NewBus(opts ...BusOption) *EventBus {
	b := &EventBus{
		subscribers: make(map[uint64]*subscriber),
		bufferSize:  DefaultBufferSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish never blocks on a slow subscriber: when its queue is full the
// event is dropped for that subscriber and counted.
func (b *EventBus) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}
	b.published.Add(1)

	for _, sub := range b.subscribers {
		if !sub.wants(event.Type) {
			continue
		}

		select {
		case sub.queue <- event:
		default:
			b.dropped.Add(1)
			metrics.EventsDroppedTotal.WithLabelValues(string(event.Type)).Inc()
			b.logger.Warn("subscriber queue full; event dropped",
				"event_type", event.Type,
				"subscriber_id", sub.id,
			)
		}
	}

	return nil
}

// Subscribe registers handler. On a closed bus it registers nothing and
// returns a no-op.
func (b *EventBus) Subscribe(handler EventHandler, types ...EventType) func() {
	sub := &subscriber{
		handler: handler,
		queue:   make(chan Event, b.bufferSize),
	}
	if len(types) > 0 {
		sub.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	b.nextID++
	sub.id = b.nextID
	b.subscribers[sub.id] = sub
	b.wg.Add(1)
	b.mu.Unlock()

	go b.deliver(sub)

	return func() { b.remove(sub.id) }
}

// deliver runs the handler for each queued event until the queue closes.
// Events queued before removal are still delivered.
func (b *EventBus) deliver(sub *subscriber) {
	defer b.wg.Done()
	for event := range sub.queue {
		b.call(sub, event)
	}
}

func (b *EventBus) call(sub *subscriber, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"subscriber_id", sub.id,
				"event_type", event.Type,
				"panic", r,
			)
		}
	}()
	sub.handler(event)
}

// remove is safe to call from inside the subscriber's own handler.
func (b *EventBus) remove(id uint64) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	delete(b.subscribers, id)
	b.mu.Unlock()

	if ok {
		sub.stop()
	}
}

// Close must not be called from inside a handler.
func (b *EventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subscribers
	b.subscribers = make(map[uint64]*subscriber)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	b.wg.Wait()

	return nil
}

// BusStats is a point-in-time view of an EventBus.
type BusStats struct {
	Subscribers int
	Published   uint64
	Dropped     uint64
	Closed      bool
}

// Stats returns the bus counters.
func (b *EventBus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return BusStats{
		Subscribers: len(b.subscribers),
		Published:   b.published.Load(),
		Dropped:     b.dropped.Load(),
		Closed:      b.closed,
	}
}
