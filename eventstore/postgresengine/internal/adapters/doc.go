// Package adapters hide the differences between pgxpool.Pool, sql.DB, and sqlx.DB from the postgres engine.
//
// Every adapter runs plain SQL strings on the primary, routes reads to an optional replica when the
// context asks for eventual consistency, and opens transactions that run the same statements.
package adapters
