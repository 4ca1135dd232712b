package config

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

// PostgresSQLXSingleConfig opens and pings a *sqlx.DB for the single test database.
func PostgresSQLXSingleConfig(ctx context.Context) (*sqlx.DB, error) {
	return openSQLX(ctx, PostgresSingleDSN(), 20)
}

// PostgresSQLXPrimaryConfig opens and pings a *sqlx.DB for the primary node.
func PostgresSQLXPrimaryConfig(ctx context.Context) (*sqlx.DB, error) {
	return openSQLX(ctx, PostgresPrimaryDSN(), 60)
}

// PostgresSQLXReplicaConfig opens and pings a *sqlx.DB for the replica node.
func PostgresSQLXReplicaConfig(ctx context.Context) (*sqlx.DB, error) {
	return openSQLX(ctx, PostgresReplicaDSN(), 60)
}

func openSQLX(ctx context.Context, dsn string, maxOpen int) (*sqlx.DB, error) {
	const defaultMaxIdleConnections = 2
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5

	db, err := sqlx.Open("postgres", dsn)
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
