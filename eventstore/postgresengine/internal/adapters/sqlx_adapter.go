package adapters

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// NewSQLXAdapter creates a DBAdapter for a sqlx.DB.
func NewSQLXAdapter(db *sqlx.DB) DBAdapter {
	return &sqlxAdapter{stdAdapter: stdAdapter{primary: db}, db: db}
}

// NewSQLXAdapterWithReplica creates a DBAdapter with a primary and a replica sqlx.DB.
func NewSQLXAdapterWithReplica(db *sqlx.DB, replica *sqlx.DB) DBAdapter {
	a := &sqlxAdapter{stdAdapter: stdAdapter{primary: db}, db: db}
	if replica != nil {
		a.replica = replica
	}

	return a
}

// sqlxAdapter opens transactions through sqlx so that sqlx hooks and mappers stay in effect.
type sqlxAdapter struct {
	stdAdapter
	db *sqlx.DB
}

func (s *sqlxAdapter) BeginTx(ctx context.Context) (DBTx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &stdTx{tx: tx.Tx}, nil
}
