package adapters

import (
	"database/sql"
)

// NewSQLAdapter creates a DBAdapter for a sql.DB, typically opened with the lib/pq driver.
func NewSQLAdapter(db *sql.DB) DBAdapter {
	return &stdAdapter{primary: db}
}

// NewSQLAdapterWithReplica creates a DBAdapter with a primary and a replica sql.DB.
func NewSQLAdapterWithReplica(db *sql.DB, replica *sql.DB) DBAdapter {
	a := &stdAdapter{primary: db}
	if replica != nil {
		a.replica = replica
	}

	return a
}
