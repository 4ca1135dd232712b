package promadapters_test

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore/promadapters"
)

func Test_MetricsCollector_IncrementCounter(t *testing.T) {
	// setup
	registry := prometheus.NewRegistry()
	collector := promadapters.NewMetricsCollector(registry)

	// act
	collector.IncrementCounter("eventstore_version_conflicts_total", map[string]string{"operation": "append"})
	collector.IncrementCounter("eventstore_version_conflicts_total", map[string]string{"operation": "append"})
	collector.IncrementCounter("eventstore_version_conflicts_total", map[string]string{"operation": "commit"})

	// assert
	expected := `
# HELP eventstore_version_conflicts_total Number of event store, dispatch and relay occurrences.
# TYPE eventstore_version_conflicts_total counter
eventstore_version_conflicts_total{operation="append"} 2
eventstore_version_conflicts_total{operation="commit"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "eventstore_version_conflicts_total"))
}

func Test_MetricsCollector_RecordDuration_Observes_Seconds(t *testing.T) {
	// setup
	registry := prometheus.NewRegistry()
	collector := promadapters.NewMetricsCollector(registry, promadapters.WithBuckets([]float64{0.1, 1}))
	labels := map[string]string{"operation": "load", "status": eventstore.StatusSuccess}

	// act
	collector.RecordDuration("eventstore_load_duration_seconds", 50*time.Millisecond, labels)
	collector.RecordDuration("eventstore_load_duration_seconds", 500*time.Millisecond, labels)

	// assert
	expected := `
# HELP eventstore_load_duration_seconds Duration of event store, dispatch and relay operations in seconds.
# TYPE eventstore_load_duration_seconds histogram
eventstore_load_duration_seconds_bucket{operation="load",status="success",le="0.1"} 1
eventstore_load_duration_seconds_bucket{operation="load",status="success",le="1"} 2
eventstore_load_duration_seconds_bucket{operation="load",status="success",le="+Inf"} 2
eventstore_load_duration_seconds_sum{operation="load",status="success"} 0.55
eventstore_load_duration_seconds_count{operation="load",status="success"} 2
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "eventstore_load_duration_seconds"))
}

func Test_MetricsCollector_RecordValue_Sets_The_Gauge(t *testing.T) {
	// setup
	registry := prometheus.NewRegistry()
	collector := promadapters.NewMetricsCollector(registry, promadapters.WithNamespace("library"))

	// act
	collector.RecordValue("dispatcher_staged_batch_size", 3, nil)
	collector.RecordValue("dispatcher_staged_batch_size", 5, nil)

	// assert
	count, err := testutil.GatherAndCount(registry, "library_dispatcher_staged_batch_size")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	families, err := registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.InDelta(t, 5.0, families[0].GetMetric()[0].GetGauge().GetValue(), 0.0001)
}

func Test_MetricsCollector_When_Label_Set_Changes_Then_Keeps_Registered_Labels(t *testing.T) {
	// setup
	registry := prometheus.NewRegistry()
	collector := promadapters.NewMetricsCollector(registry)

	// act
	collector.IncrementCounter("eventstore_database_errors_total", map[string]string{"operation": "append", "error_type": "database"})
	assert.NotPanics(t, func() {
		collector.IncrementCounter("eventstore_database_errors_total", map[string]string{"operation": "load", "extra": "dropped"})
	})

	// assert
	expected := `
# HELP eventstore_database_errors_total Number of event store, dispatch and relay occurrences.
# TYPE eventstore_database_errors_total counter
eventstore_database_errors_total{error_type="",operation="load"} 1
eventstore_database_errors_total{error_type="database",operation="append"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "eventstore_database_errors_total"))
}

func Test_MetricsCollectors_Share_A_Registry(t *testing.T) {
	// setup
	registry := prometheus.NewRegistry()
	first := promadapters.NewMetricsCollector(registry)
	second := promadapters.NewMetricsCollector(registry)
	labels := map[string]string{"subscriber": "lent-books"}

	// act
	first.IncrementCounter("dispatcher_subscriber_failures_total", labels)
	second.IncrementCounter("dispatcher_subscriber_failures_total", labels)

	// assert
	families, err := registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.InDelta(t, 2.0, families[0].GetMetric()[0].GetCounter().GetValue(), 0.0001)
}
