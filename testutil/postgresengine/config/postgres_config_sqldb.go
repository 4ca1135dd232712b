package config

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

// PostgresSQLDBSingleConfig opens and pings a *sql.DB for the single test database.
func PostgresSQLDBSingleConfig(ctx context.Context) (*sql.DB, error) {
	return openSQLDB(ctx, PostgresSingleDSN(), 20)
}

// PostgresSQLDBPrimaryConfig opens and pings a *sql.DB for the primary node.
func PostgresSQLDBPrimaryConfig(ctx context.Context) (*sql.DB, error) {
	return openSQLDB(ctx, PostgresPrimaryDSN(), 60)
}

// PostgresSQLDBReplicaConfig opens and pings a *sql.DB for the replica node.
func PostgresSQLDBReplicaConfig(ctx context.Context) (*sql.DB, error) {
	return openSQLDB(ctx, PostgresReplicaDSN(), 60)
}

func openSQLDB(ctx context.Context, dsn string, maxOpen int) (*sql.DB, error) {
	const defaultMaxIdleConnections = 2
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(defaultMaxIdleConnections)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, pingErr
	}

	return db, nil
}
