// Package eventbus carries session lifecycle events from the session manager
// to the push pipeline. Events are dispatched through a buffered channel and
// processed by a worker pool.
package eventbus

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultWorkers    = 3
	defaultBufferSize = 100
)

// EventBus is the interface for publishing events and managing subscribers.
type EventBus interface {
	// Publish enqueues an event with the given type and payload and reports
	// whether it was accepted. It never blocks: if the buffer is full or the
	// bus is closed, the event is dropped.
	Publish(eventType string, payload map[string]string) bool

	// Subscribe registers a listener that will be called for every published event.
	Subscribe(listener Listener)

	// Dropped returns how many events were discarded.
	Dropped() uint64

	// Close stops accepting new events and waits for pending events to be processed.
	Close()
}

type inMemoryBus struct {
	ch        chan Event
	listeners []Listener
	mu        sync.RWMutex
	wg        sync.WaitGroup
	workers   int
	logger    *slog.Logger

	closeMu sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// New creates a new in-memory EventBus with the specified number of worker goroutines.
// If workers is <= 0, defaultWorkers (3) is used.
func New(workers int, logger *slog.Logger) EventBus {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &inMemoryBus{
		ch:      make(chan Event, defaultBufferSize),
		workers: workers,
		logger:  logger,
	}
	b.startWorkers()
	return b
}

func (b *inMemoryBus) startWorkers() {
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for e := range b.ch {
				b.dispatch(e)
			}
		}()
	}
}

// dispatch calls all registered listeners for the given event. A panicking
// listener does not stop the others.
func (b *inMemoryBus) dispatch(e Event) {
	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event listener panicked", "event_type", e.Type, "panic", r)
				}
			}()
			l(e)
		}()
	}
}

func (b *inMemoryBus) Publish(eventType string, payload map[string]string) bool {
	e := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.closed {
		b.dropped.Add(1)
		b.logger.Warn("event bus closed, dropping event", "event_type", eventType)
		return false
	}

	select {
	case b.ch <- e:
		return true
	default:
		b.dropped.Add(1)
		b.logger.Warn("event bus buffer full, dropping event", "event_type", eventType)
		return false
	}
}

func (b *inMemoryBus) Subscribe(listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, listener)
}

func (b *inMemoryBus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close drains and closes the event channel, then waits for all workers to
// finish. Calling Close twice is safe.
func (b *inMemoryBus) Close() {
	b.closeMu.Lock()
	if b.closed {
		b.closeMu.Unlock()
		return
	}
	b.closed = true
	close(b.ch)
	b.closeMu.Unlock()
	b.wg.Wait()
}
