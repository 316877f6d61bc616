package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"bsc-invest-platform/internal/ledger"
)

// MainWalletBalance reads a user's current main wallet balance.
func (r *Repository) MainWalletBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.db.Pool.QueryRow(ctx,
		`SELECT main_wallet_balance FROM profiles WHERE id = $1`, userID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ledger.ErrProfileNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read wallet balance: %w", err)
	}
	return balance, nil
}

// CreateWithdrawalRequest reserves the gross amount and inserts the pending
// withdrawal through the store's atomic function: debit and insert happen
// together or not at all.
func (r *Repository) CreateWithdrawalRequest(ctx context.Context, userID uuid.UUID, gross, fee, net decimal.Decimal, address string) (uuid.UUID, error) {
	var transactionID uuid.UUID
	err := r.db.Pool.QueryRow(ctx,
		`SELECT create_withdrawal_request($1, $2, $3, $4, $5)`,
		userID, gross, fee, net, address,
	).Scan(&transactionID)
	if err != nil {
		return uuid.Nil, mapStoreError(err)
	}
	return transactionID, nil
}

// PendingWithdrawal loads a withdrawal transaction that is still pending.
func (r *Repository) PendingWithdrawal(ctx context.Context, id uuid.UUID) (*ledger.Withdrawal, error) {
	query := `
		SELECT id, user_id, amount, fee, net_amount, status,
			COALESCE(withdrawal_address, ''), COALESCE(reference_id, ''), created_at
		FROM transactions
		WHERE id = $1 AND transaction_type = $2`

	var w ledger.Withdrawal
	err := r.db.Pool.QueryRow(ctx, query, id, TxTypeWithdrawal).Scan(
		&w.ID, &w.UserID, &w.Gross, &w.Fee, &w.Net, &w.Status,
		&w.Address, &w.Reference, &w.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load withdrawal: %w", err)
	}
	if w.Status != TxStatusPending {
		return nil, ledger.ErrWithdrawalNotPending
	}
	return &w, nil
}

// ClaimWithdrawal moves a pending withdrawal to processing via the
// single-winner claim function; a concurrent claimer gets
// ledger.ErrWithdrawalNotPending.
func (r *Repository) ClaimWithdrawal(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Pool.Exec(ctx,
		`SELECT claim_withdrawal($1)`, id,
	); err != nil {
		return mapStoreError(err)
	}
	return nil
}

// CompleteWithdrawal marks an approved withdrawal completed and stamps the
// on-chain reference, via the atomic approval function.
func (r *Repository) CompleteWithdrawal(ctx context.Context, id uuid.UUID, txHash string) error {
	if _, err := r.db.Pool.Exec(ctx,
		`SELECT process_withdrawal_approval($1, TRUE, $2)`, id, txHash,
	); err != nil {
		return mapStoreError(err)
	}
	return nil
}

// RejectWithdrawal sets the withdrawal rejected and refunds the reserved
// gross amount, as one atomic unit.
func (r *Repository) RejectWithdrawal(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Pool.Exec(ctx,
		`SELECT process_withdrawal_approval($1, FALSE, NULL)`, id,
	); err != nil {
		return mapStoreError(err)
	}
	return nil
}

// GetPendingWithdrawals lists withdrawals awaiting approval, oldest first.
func (r *Repository) GetPendingWithdrawals(ctx context.Context, limit, offset int) ([]Transaction, error) {
	query := `
		SELECT id, user_id, transaction_type, amount, fee, net_amount, status,
			reference_id, withdrawal_address, description, created_at, updated_at
		FROM transactions
		WHERE transaction_type = $1 AND status = $2
		ORDER BY created_at
		LIMIT $3 OFFSET $4`

	rows, err := r.db.Pool.Query(ctx, query, TxTypeWithdrawal, TxStatusPending, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}
