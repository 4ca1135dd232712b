package config

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPGXPoolSingleConfig creates a pgxpool.Config for the single test database.
func PostgresPGXPoolSingleConfig() (*pgxpool.Config, error) {
	return pgxPoolConfig(PostgresSingleDSN(), 20, 2)
}

// PostgresPGXPoolPrimaryConfig creates a pgxpool.Config for the primary node.
func PostgresPGXPoolPrimaryConfig() (*pgxpool.Config, error) {
	return pgxPoolConfig(PostgresPrimaryDSN(), 60, 2)
}

// PostgresPGXPoolReplicaConfig creates a pgxpool.Config for the replica node.
func PostgresPGXPoolReplicaConfig() (*pgxpool.Config, error) {
	return pgxPoolConfig(PostgresReplicaDSN(), 60, 2)
}

// ConnectPGXPool opens a pool and pings it, so unreachable databases fail here.
func ConnectPGXPool(ctx context.Context, dbConfig *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, err
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

func pgxPoolConfig(dsn string, maxConns int32, minConns int32) (*pgxpool.Config, error) {
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5
	const defaultHealthCheckPeriod = time.Minute
	const defaultConnectTimeout = time.Second * 2

	dbConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	dbConfig.MaxConns = maxConns
	dbConfig.MinConns = minConns
	dbConfig.MaxConnLifetime = defaultMaxConnLifetime
	dbConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	return dbConfig, nil
}
