package adapters

import (
	"context"
	"errors"
)

// ErrTxDone is returned by DBTx.Commit and DBTx.Rollback once the transaction is resolved,
// whatever the underlying driver reports for that case.
var ErrTxDone = errors.New("transaction already resolved")

// Querier runs SQL statements.
type Querier interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBAdapter defines the database operations needed by the event store.
// Query reads from the replica if one is configured and the context requests eventual consistency.
type DBAdapter interface {
	Querier
	BeginTx(ctx context.Context) (DBTx, error)
}

// DBTx is an open database transaction.
type DBTx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
