package notification

import "github.com/prometheus/client_golang/prometheus"

// DeliveriesCounter exposes the per-result delivery counter for tests.
func DeliveriesCounter(m *Metrics, result string) prometheus.Collector {
	return m.deliveries.WithLabelValues(result)
}
