package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore/memoryengine"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore/postgresengine"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/shell/config"
)

type stores struct {
	eventStore eventstore.EventStore
	outbox     eventstore.OutboxStore
	relayStore eventstore.OutboxRelayStore
	closers    []func()
}

func (s stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(
	ctx context.Context,
	cfg config.Demo,
	logger *slog.Logger,
	metrics eventstore.MetricsCollector,
	tracing eventstore.TracingCollector,
) (stores, error) {
	if cfg.Store == config.StoreMemory {
		es, err := memoryengine.NewEventStore(memoryengine.WithLogger(logger))
		if err != nil {
			return stores{}, err
		}

		logger.Info("using the in-memory event store")

		return stores{eventStore: es, outbox: es.Outbox(), relayStore: es.Outbox()}, nil
	}

	options := []postgresengine.Option{
		postgresengine.WithContextualLogger(logger),
		postgresengine.WithMetrics(metrics),
		postgresengine.WithTracing(tracing),
	}

	es, closers, err := openPostgresEventStore(ctx, cfg, options)
	if err != nil {
		for _, closeFn := range closers {
			closeFn()
		}

		return stores{}, err
	}

	logger.Info("using the postgres event store", "adapter", cfg.Adapter, "replica", cfg.PostgresReplica != "")

	return stores{eventStore: es, outbox: es.Outbox(), relayStore: es.Outbox(), closers: closers}, nil
}

//nolint:gocognit,funlen
func openPostgresEventStore(
	ctx context.Context,
	cfg config.Demo,
	options []postgresengine.Option,
) (*postgresengine.EventStore, []func(), error) {
	var closers []func()

	switch cfg.Adapter {
	case config.AdapterPGXPool:
		pool, err := config.PostgresPGXPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, pool.Close)

		if _, err = pool.Exec(ctx, postgresengine.DefaultSchema()); err != nil {
			return nil, closers, fmt.Errorf("applying schema: %w", err)
		}

		if cfg.PostgresReplica == "" {
			es, err := postgresengine.NewEventStoreFromPGXPool(pool, options...)
			return es, closers, err
		}

		replica, err := config.PostgresPGXPool(ctx, cfg.PostgresReplica)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, replica.Close)

		es, err := postgresengine.NewEventStoreFromPGXPoolAndReplica(pool, replica, options...)

		return es, closers, err

	case config.AdapterSQLDB:
		db, err := config.PostgresSQLDB(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, func() { _ = db.Close() })

		if _, err = db.ExecContext(ctx, postgresengine.DefaultSchema()); err != nil {
			return nil, closers, fmt.Errorf("applying schema: %w", err)
		}

		if cfg.PostgresReplica == "" {
			es, err := postgresengine.NewEventStoreFromSQLDB(db, options...)
			return es, closers, err
		}

		replica, err := config.PostgresSQLDB(ctx, cfg.PostgresReplica)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, func() { _ = replica.Close() })

		es, err := postgresengine.NewEventStoreFromSQLDBAndReplica(db, replica, options...)

		return es, closers, err

	case config.AdapterSQLX:
		db, err := config.PostgresSQLX(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, func() { _ = db.Close() })

		if _, err = db.ExecContext(ctx, postgresengine.DefaultSchema()); err != nil {
			return nil, closers, fmt.Errorf("applying schema: %w", err)
		}

		if cfg.PostgresReplica == "" {
			es, err := postgresengine.NewEventStoreFromSQLX(db, options...)
			return es, closers, err
		}

		replica, err := config.PostgresSQLX(ctx, cfg.PostgresReplica)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, func() { _ = replica.Close() })

		es, err := postgresengine.NewEventStoreFromSQLXAndReplica(db, replica, options...)

		return es, closers, err

	default:
		return nil, closers, fmt.Errorf("unknown adapter type %q", cfg.Adapter)
	}
}
