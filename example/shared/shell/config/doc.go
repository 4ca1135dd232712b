// Package config reads the process configuration of the example: Book circulation in a public library
//
// Values come from environment variables with defaults. The PostgreSQL helpers build connections
// for the three supported drivers (pgx.Pool, sql.DB, sqlx.DB) from a DSN.
package config
