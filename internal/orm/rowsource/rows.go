// Package rowsource materializes entities from database result sets.
//
// A Reader matches result columns to the properties of an entity type,
// scans each row into typed destinations and hands the row to the compiled
// materializer of the entity type as a value buffer in column order.
package rowsource

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
)

// Rows is a forward-only result set. *sql.Rows implements it; pgx results
// are adapted with FromPgx.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Queryer runs a query through database/sql (*sql.DB, *sql.Tx, *sql.Conn)
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// PgxQueryer runs a query through pgx (*pgx.Conn, *pgxpool.Pool, pgx.Tx)
type PgxQueryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// FromPgx adapts pgx rows to Rows. Column names come from the field descriptions.
func FromPgx(rows pgx.Rows) Rows {
	return &pgxRows{rows: rows}
}

type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Columns() ([]string, error) {
	fields := r.rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}
	return columns, nil
}

func (r *pgxRows) Next() bool { return r.rows.Next() }

func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }

func (r *pgxRows) Err() error { return r.rows.Err() }

func (r *pgxRows) Close() error {
	r.rows.Close()
	return r.rows.Err()
}
