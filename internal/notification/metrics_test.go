package notification_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/cloudcli-push/internal/eventbus"
	"github.com/shaharia-lab/cloudcli-push/internal/logger"
	"github.com/shaharia-lab/cloudcli-push/internal/notification"
)

func TestMetrics_ObserveDroppedEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := notification.NewMetrics(reg)

	bus := eventbus.New(1, logger.Discard())
	m.ObserveDroppedEvents(bus)
	bus.Close()

	// Publishing on a closed bus drops the event.
	assert.False(t, bus.Publish(notification.EventSessionFinished, nil))
	assert.False(t, bus.Publish(notification.EventSessionFinished, nil))

	expected := `
# HELP cloudcli_push_events_dropped_total Session events discarded because the event bus was full or closed.
# TYPE cloudcli_push_events_dropped_total counter
cloudcli_push_events_dropped_total 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "cloudcli_push_events_dropped_total"))
}

func TestMetrics_NilIsNoOp(t *testing.T) {
	var m *notification.Metrics
	bus := eventbus.New(1, logger.Discard())
	defer bus.Close()

	assert.NotPanics(t, func() {
		m.SetDedupeEntries(3)
		m.ObserveDroppedEvents(bus)
	})
}
