package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"bsc-invest-platform/internal/ledger"
)

// Repository provides data access operations over the connection pool.
// It implements ledger.DistributionStore and ledger.WithdrawalStore.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck verifies database connectivity
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// mapStoreError translates exceptions raised by the ledger's stored
// functions into the ledger error taxonomy.
func mapStoreError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Message {
	case "insufficient_balance":
		return ledger.ErrInsufficientBalance
	case "profile_not_found":
		return ledger.ErrProfileNotFound
	case "withdrawal_not_pending":
		return ledger.ErrWithdrawalNotPending
	}
	return err
}
