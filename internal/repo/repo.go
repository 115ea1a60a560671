package repo

import (
	"context"
	"database/sql"
)

// querier is satisfied by both *sql.DB and *sql.Tx so reads can join a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}
