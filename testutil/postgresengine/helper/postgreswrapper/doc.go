// Package postgreswrapper provides test utilities for abstracting over different PostgreSQL database adapters.
//
// The same test suite runs against pgx.Pool, sql.DB and sqlx.DB. The adapter is selected with the
// ADAPTER_TYPE environment variable ("pgx.pool" is the default, "sql.db" and "sqlx.db" are the others).
// Tests are skipped when the database is not reachable, so unit test runs don't need docker.
//
// Usage:
//
//	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
//	defer wrapper.Close()
//	postgreswrapper.CleanUp(t, wrapper)
//
//	store := wrapper.GetEventStore()
package postgreswrapper
