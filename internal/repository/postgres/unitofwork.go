package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/climastore/backend/internal/repository"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// the same repository code runs inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the Postgres-backed unit of work.
type Store struct {
	db *sql.DB
}

var _ repository.UnitOfWork = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Within runs fn in one transaction: all precondition reads and all writes
// of a workflow share it, and any error rolls everything back.
func (s *Store) Within(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &txRepositories{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txRepositories struct {
	tx *sql.Tx
}

func (r *txRepositories) Catalog() repository.CatalogRepository { return &catalogRepository{q: r.tx} }
func (r *txRepositories) Carts() repository.CartRepository      { return &cartRepository{q: r.tx} }
func (r *txRepositories) Orders() repository.OrderRepository    { return &orderRepository{q: r.tx} }
