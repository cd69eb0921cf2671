package notification

import (
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultDedupeWindow is how long an event suppresses identical repeats.
const DefaultDedupeWindow = 10 * time.Second

type dedupeEntry struct {
	key        string
	insertedAt time.Time
}

// DedupeWindow remembers recently sent events so identical repeats inside
// the window are dropped. Entries are kept in insertion order, which is
// also expiry order, so pruning stops at the first live entry.
type DedupeWindow struct {
	clock  clockwork.Clock
	window time.Duration

	mu    sync.Mutex
	seen  map[string]struct{}
	order []dedupeEntry
}

// NewDedupeWindow creates a window of the given length. A nil clock means
// wall-clock time and a non-positive window means DefaultDedupeWindow.
func NewDedupeWindow(clock clockwork.Clock, window time.Duration) *DedupeWindow {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if window <= 0 {
		window = DefaultDedupeWindow
	}
	return &DedupeWindow{
		clock:  clock,
		window: window,
		seen:   make(map[string]struct{}),
	}
}

// DedupeKey builds the composite identity of an event for userID.
func DedupeKey(userID string, p Payload) string {
	return strings.Join([]string{
		userID,
		orDefault(p.EventType, defaultDedupeEventType),
		orDefault(p.Provider, defaultDedupeProvider),
		orDefault(p.SessionID, defaultDedupeSessionID),
		p.Body,
	}, "|")
}

// ShouldSkip reports whether an identical event was recorded within the
// window. When it was not, the event is recorded and false is returned.
// A hit does not extend the first entry's lifetime.
func (w *DedupeWindow) ShouldSkip(userID string, p Payload) bool {
	key := DedupeKey(userID, p)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	w.pruneLocked(now)

	if _, ok := w.seen[key]; ok {
		return true
	}
	w.seen[key] = struct{}{}
	w.order = append(w.order, dedupeEntry{key: key, insertedAt: now})
	return false
}

// Prune drops expired entries and returns how many were removed.
func (w *DedupeWindow) Prune() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pruneLocked(w.clock.Now())
}

// Len returns the number of live entries.
func (w *DedupeWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}

func (w *DedupeWindow) pruneLocked(now time.Time) int {
	n := 0
	for n < len(w.order) && now.Sub(w.order[n].insertedAt) > w.window {
		delete(w.seen, w.order[n].key)
		n++
	}
	if n > 0 {
		w.order = append(w.order[:0:0], w.order[n:]...)
	}
	return n
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
