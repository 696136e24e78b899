package pgx

import (
	"context"
	"errors"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/latticehq/lattice/pkg/store"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// GraphDBStore implements store.GraphStore using PostgreSQL with pgvector for
// vector similarity search. All reads run against the pooled connection passed
// in at construction; the store itself holds no per-tenant state.
type GraphDBStore struct {
	conn pgxIConn
}

// NewGraphDBStore creates a GraphDBStore using an existing database
// connection or pool.
func NewGraphDBStore(conn pgxIConn) *GraphDBStore {
	return &GraphDBStore{conn: conn}
}

// storeErr classifies a pgx error. Query-shaped failures (SQL errors reported
// by the server) pass through unchanged; anything else that is not a context
// error is a connectivity failure and maps to store.ErrGraphUnavailable.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	return fmt.Errorf("%w: %v", store.ErrGraphUnavailable, err)
}
