// Package config provides PostgreSQL connections for EventStore tests and benchmarks.
//
// It creates connections for the three supported drivers (pgx.Pool, sql.DB with lib/pq, sqlx.DB)
// to a single test database or to a primary/replica pair. DSNs default to local docker databases
// and can be overridden with EVENTSTORE_TEST_DSN, EVENTSTORE_PRIMARY_DSN and EVENTSTORE_REPLICA_DSN.
package config
