// Package testdoubles provides spies for the observability interfaces of the eventstore package.
//
// The spies record calls for inspection in tests: LogHandlerSpy is a slog.Handler,
// ContextualLoggerSpy implements eventstore.ContextualLogger, MetricsCollectorSpy implements
// eventstore.MetricsCollector and TracingCollectorSpy implements eventstore.TracingCollector.
// All of them are safe for concurrent use.
package testdoubles
