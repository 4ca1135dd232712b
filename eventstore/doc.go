// Package eventstore provides the storage boundary of the event-sourcing core.
//
// It defines the durable representation of domain events (EventRecord), the outbox staging record
// (OutboxMessage), and the interfaces every storage engine implements:
//   - EventStore: per-stream, append-only storage with optimistic concurrency
//   - Transaction: the unit in which event appends and outbox writes become durable together
//   - OutboxStore: staging of outbox messages inside the appending transaction
//   - OutboxRelayStore: reading and acknowledging staged messages for an external relay
//
// Engines live in sub-packages (memoryengine, postgresengine). Observability is optional and pluggable
// through the Logger, ContextualLogger, MetricsCollector and TracingCollector interfaces.
//
// Typical append flow:
//
//	tx, err := store.BeginTransaction(ctx)
//	if err != nil {
//		return err
//	}
//	defer func() { _ = tx.Rollback(ctx) }()
//
//	if err = store.Append(ctx, tx, record); err != nil {
//		return err // errors.Is(err, eventstore.ErrVersionConflict) => reload and retry
//	}
//
//	return tx.Commit(ctx)
package eventstore
