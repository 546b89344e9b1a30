package reconciler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"clusterwatch/internal/cluster"
	"clusterwatch/internal/events"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewMetrics(provider.Meter(MeterName))
	require.NoError(t, err)
	return m, reader
}

// sumOf returns the value of the int64 sum named name for the data point
// carrying attrs.
func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	want := attribute.NewSet(attrs...)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				if dp.Attributes.Equals(&want) {
					return dp.Value
				}
			}
		}
	}
	return 0
}

func TestMetrics_Passes(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordPass([]Trigger{TriggerPeriodic, TriggerFileChanged})
	m.RecordPass([]Trigger{TriggerPeriodic})

	assert.Equal(t, int64(2), sumOf(t, reader, "clusterwatch_reconcile_passes_total", attribute.String("trigger", "Periodic")))
	assert.Equal(t, int64(1), sumOf(t, reader, "clusterwatch_reconcile_passes_total", attribute.String("trigger", "FileChanged")))
}

func TestMetrics_SessionLifecycle(t *testing.T) {
	m, reader := newTestMetrics(t)
	fleet := attribute.String("feed", "fleet")

	m.SessionStarted(events.FeedFleet)
	m.SessionStarted(events.FeedFleet)
	m.SessionClosed(events.FeedFleet)
	m.SessionRestarted(events.FeedFleet)
	m.DecodeError(events.FeedFleet)
	m.NamespaceEvent(events.FeedFocused, cluster.EventAdded)

	assert.Equal(t, int64(2), sumOf(t, reader, "clusterwatch_sessions_started_total", fleet))
	assert.Equal(t, int64(1), sumOf(t, reader, "clusterwatch_sessions_cancelled_total", fleet))
	assert.Equal(t, int64(1), sumOf(t, reader, "clusterwatch_sessions", fleet))
	assert.Equal(t, int64(1), sumOf(t, reader, "clusterwatch_session_restarts_total", fleet))
	assert.Equal(t, int64(1), sumOf(t, reader, "clusterwatch_decode_errors_total", fleet))
	assert.Equal(t, int64(1), sumOf(t, reader, "clusterwatch_namespace_events_total",
		attribute.String("feed", "focused"), attribute.String("type", "Added")))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordPass([]Trigger{TriggerManual})
	m.RecordWarning(events.ReasonConfigInvalid)
}
