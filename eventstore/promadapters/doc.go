// Package promadapters implements eventstore.MetricsCollector on the Prometheus client library.
//
// Metrics are registered on first use. The label names of a metric are fixed by its first
// observation, as Prometheus requires. Later observations fill missing labels with an empty
// value and drop labels that were not known at registration.
//
//	registry := prometheus.NewRegistry()
//	collector := promadapters.NewMetricsCollector(registry, promadapters.WithNamespace("library"))
//	store, err := postgresengine.NewEventStoreFromPGXPool(pool, postgresengine.WithMetrics(collector))
package promadapters
