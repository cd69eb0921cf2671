package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for push delivery. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	factory promauto.Factory

	deliveries    *prometheus.CounterVec
	pruned        prometheus.Counter
	dedupeSkipped prometheus.Counter
	dedupeEntries prometheus.Gauge
}

// NewMetrics registers the push collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		factory: f,
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cloudcli",
			Subsystem: "push",
			Name:      "deliveries_total",
			Help:      "Push delivery attempts by result.",
		}, []string{"result"}),
		pruned: f.NewCounter(prometheus.CounterOpts{
			Namespace: "cloudcli",
			Subsystem: "push",
			Name:      "subscriptions_pruned_total",
			Help:      "Subscriptions removed after the push service reported them gone.",
		}),
		dedupeSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "cloudcli",
			Subsystem: "push",
			Name:      "dedupe_skipped_total",
			Help:      "Notifications suppressed as duplicates.",
		}),
		dedupeEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "cloudcli",
			Subsystem: "push",
			Name:      "dedupe_entries",
			Help:      "Events currently held in the deduplication window.",
		}),
	}
}

func (m *Metrics) delivery(result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) subscriptionPruned() {
	if m == nil {
		return
	}
	m.pruned.Inc()
}

func (m *Metrics) skipped() {
	if m == nil {
		return
	}
	m.dedupeSkipped.Inc()
}

// SetDedupeEntries records the current size of the deduplication window.
func (m *Metrics) SetDedupeEntries(n int) {
	if m == nil {
		return
	}
	m.dedupeEntries.Set(float64(n))
}

// DropCounter reports how many events a queue has discarded.
type DropCounter interface {
	Dropped() uint64
}

// ObserveDroppedEvents exports src's drop count. Call it once per registry.
func (m *Metrics) ObserveDroppedEvents(src DropCounter) {
	if m == nil {
		return
	}
	m.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "cloudcli",
		Subsystem: "push",
		Name:      "events_dropped_total",
		Help:      "Session events discarded because the event bus was full or closed.",
	}, func() float64 {
		return float64(src.Dropped())
	})
}
