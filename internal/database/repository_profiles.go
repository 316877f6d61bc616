package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrProfileExists is returned when registering a duplicate email.
var ErrProfileExists = errors.New("profile already exists")

// ErrProfileMissing is returned when a profile lookup finds nothing.
var ErrProfileMissing = errors.New("profile not found")

// CreateProfile creates a new user profile
func (r *Repository) CreateProfile(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO profiles (email, password_hash, name, is_admin, referral_code)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, main_wallet_balance, fund_wallet_balance, created_at, updated_at`

	err := r.db.Pool.QueryRow(ctx, query,
		p.Email, p.PasswordHash, p.Name, p.IsAdmin, p.ReferralCode,
	).Scan(&p.ID, &p.MainWalletBalance, &p.FundWalletBalance, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetProfileByID loads a profile by id
func (r *Repository) GetProfileByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return r.getProfile(ctx, `WHERE id = $1`, id)
}

// GetProfileByEmail loads a profile by email
func (r *Repository) GetProfileByEmail(ctx context.Context, email string) (*Profile, error) {
	return r.getProfile(ctx, `WHERE email = $1`, email)
}

func (r *Repository) getProfile(ctx context.Context, where string, arg interface{}) (*Profile, error) {
	query := `
		SELECT id, email, password_hash, COALESCE(name, ''), is_admin,
			main_wallet_balance, fund_wallet_balance, COALESCE(referral_code, ''),
			created_at, updated_at
		FROM profiles ` + where

	var p Profile
	err := r.db.Pool.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.Email, &p.PasswordHash, &p.Name, &p.IsAdmin,
		&p.MainWalletBalance, &p.FundWalletBalance, &p.ReferralCode,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &p, nil
}

// GetUserTransactions returns a user's transactions, newest first.
func (r *Repository) GetUserTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	query := `
		SELECT id, user_id, transaction_type, amount, fee, net_amount, status,
			reference_id, withdrawal_address, description, created_at, updated_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows pgx.Rows) ([]Transaction, error) {
	var txs []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.TransactionType, &t.Amount, &t.Fee,
			&t.NetAmount, &t.Status, &t.ReferenceID, &t.WithdrawalAddress,
			&t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
