// Package postgresengine implements the event store, the outbox store and the outbox relay store on PostgreSQL.
//
// Events live in one table (default "events") with a unique index on (stream_key, aggregate_version).
// Outbox messages live in a second table (default "outbox_messages"). Schema returns the reference DDL.
//
// Appends are guarded twice against concurrent writers. The INSERT only selects its row if the stream's
// current maximum version is the record's version minus one, and the unique index rejects a second
// writer that slipped through. Both outcomes are reported as eventstore.ErrVersionConflict.
//
// The store works with *pgxpool.Pool, *sql.DB (lib/pq) and *sqlx.DB. Every constructor has a replica
// variant. LoadStream reads from the replica only if the context was marked with
// eventstore.WithEventualConsistency, everything else runs on the primary.
//
// Logging, metrics and tracing are optional and configured with WithLogger, WithContextualLogger,
// WithMetrics and WithTracing.
package postgresengine
