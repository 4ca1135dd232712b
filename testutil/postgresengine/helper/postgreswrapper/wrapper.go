package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore/postgresengine"
	"github.com/AntonStoeckl/aggregate-eventstore-go/testutil/postgresengine/config"
)

// Adapter type constants, selected with the ADAPTER_TYPE environment variable.
const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"
)

const (
	eventsTable = "events"
	outboxTable = "outbox_messages"

	connectTimeout = 3 * time.Second
)

// Wrapper abstracts over the different database handles behind an EventStore.
type Wrapper interface {
	GetEventStore() *postgresengine.EventStore
	Exec(ctx context.Context, query string) error
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing.
type PGXPoolWrapper struct {
	pool *pgxpool.Pool
	es   *postgresengine.EventStore
}

func (w *PGXPoolWrapper) GetEventStore() *postgresengine.EventStore {
	return w.es
}

func (w *PGXPoolWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.pool.Exec(ctx, query)
	return err
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing.
type SQLDBWrapper struct {
	db *sql.DB
	es *postgresengine.EventStore
}

func (w *SQLDBWrapper) GetEventStore() *postgresengine.EventStore {
	return w.es
}

func (w *SQLDBWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing.
type SQLXWrapper struct {
	db *sqlx.DB
	es *postgresengine.EventStore
}

func (w *SQLXWrapper) GetEventStore() *postgresengine.EventStore {
	return w.es
}

func (w *SQLXWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// CreateWrapperWithTestConfig connects to the test database with the adapter named in ADAPTER_TYPE,
// creates the schema if needed and returns a Wrapper around a fresh EventStore.
// The test is skipped when the database is not reachable.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	wrapper, err := createWrapper(ctx, options)
	if err != nil {
		t.Skipf("postgres is not available: %v", err)
	}

	require.NoError(t, wrapper.Exec(ctx, postgresengine.DefaultSchema()), "error creating the schema in test setup")

	return wrapper
}

func createWrapper(ctx context.Context, options []postgresengine.Option) (Wrapper, error) {
	engineTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	switch engineTypeFromEnv {
	case typePGXPool, "":
		poolConfig, err := config.PostgresPGXPoolSingleConfig()
		if err != nil {
			return nil, err
		}

		pool, err := config.ConnectPGXPool(ctx, poolConfig)
		if err != nil {
			return nil, err
		}

		es, err := postgresengine.NewEventStoreFromPGXPool(pool, options...)
		if err != nil {
			pool.Close()
			return nil, err
		}

		return &PGXPoolWrapper{pool: pool, es: es}, nil

	case typeSQLDB:
		db, err := config.PostgresSQLDBSingleConfig(ctx)
		if err != nil {
			return nil, err
		}

		es, err := postgresengine.NewEventStoreFromSQLDB(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, err
		}

		return &SQLDBWrapper{db: db, es: es}, nil

	case typeSQLXDB:
		db, err := config.PostgresSQLXSingleConfig(ctx)
		if err != nil {
			return nil, err
		}

		es, err := postgresengine.NewEventStoreFromSQLX(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, err
		}

		return &SQLXWrapper{db: db, es: es}, nil

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", engineTypeFromEnv))
	}
}

// CleanUp empties the events and the outbox table.
func CleanUp(t testing.TB, wrapper Wrapper) {
	t.Helper()

	err := wrapper.Exec(context.Background(), fmt.Sprintf("TRUNCATE TABLE %s, %s", eventsTable, outboxTable))
	require.NoError(t, err, "error cleaning up the tables")
}
