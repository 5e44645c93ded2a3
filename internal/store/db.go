package store

import (
	"context"
	"database/sql"
)

// DBTX abstracts the database access layer.
// It is implemented by both *sql.DB and *sql.Tx, so store code can run
// against either a connection pool or an open transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Pinger is satisfied by anything that can report store reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}
