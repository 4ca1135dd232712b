// Package oteladapters connects the observability interfaces of the eventstore package to OpenTelemetry.
//
// MetricsCollector maps eventstore.MetricsCollector onto a metric.Meter, TracingCollector maps
// eventstore.TracingCollector onto a trace.Tracer, and SlogBridgeLogger and OTelLogger implement
// eventstore.ContextualLogger, so log records carry the trace and span of the operation.
//
// Every component that accepts these interfaces can be wired with them: the engines,
// repository.Repository, dispatching.Dispatcher and outboxrelay.Relay.
//
//	tracer := otel.Tracer("library")
//	meter := otel.Meter("library")
//
//	store, err := postgresengine.NewEventStoreFromPGXPool(
//		pool,
//		postgresengine.WithTracing(oteladapters.NewTracingCollector(tracer)),
//		postgresengine.WithMetrics(oteladapters.NewMetricsCollector(meter)),
//		postgresengine.WithContextualLogger(oteladapters.NewSlogBridgeLogger("library")),
//	)
package oteladapters
