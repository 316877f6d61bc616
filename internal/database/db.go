package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"bsc-invest-platform/config"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger.Info().Str("database", cfg.Database).Msg("connected to PostgreSQL")

	return &DB{Pool: pool, logger: logger.With().Str("component", "database").Logger()}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("database connection closed")
	}
}

// RunMigrations creates the schema and the atomic ledger functions.
// The two stored functions are the atomicity primitives the withdrawal
// workflow relies on: balance mutation and transaction row always move
// together, or not at all.
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Msg("running database migrations")

	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`,

		`CREATE TABLE IF NOT EXISTS profiles (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			name VARCHAR(255),
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			main_wallet_balance NUMERIC(20, 8) NOT NULL DEFAULT 0 CHECK (main_wallet_balance >= 0),
			fund_wallet_balance NUMERIC(20, 8) NOT NULL DEFAULT 0 CHECK (fund_wallet_balance >= 0),
			referral_code VARCHAR(32),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_email ON profiles(email)`,

		`CREATE TABLE IF NOT EXISTS investment_plans (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES profiles(id),
			plan_type VARCHAR(32) NOT NULL,
			investment_amount NUMERIC(20, 8) NOT NULL CHECK (investment_amount >= 0),
			daily_percentage NUMERIC(8, 4) NOT NULL CHECK (daily_percentage > 0),
			total_profit_earned NUMERIC(20, 8) NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_investment_plans_user ON investment_plans(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_investment_plans_active ON investment_plans(is_active)`,

		// UNIQUE(plan_id, period_key) is the idempotency boundary for the
		// distribution engine: a rerun within the same period conflicts here
		// and never reaches the balance update.
		`CREATE TABLE IF NOT EXISTS profit_distributions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			plan_id UUID NOT NULL REFERENCES investment_plans(id),
			user_id UUID NOT NULL REFERENCES profiles(id),
			profit_amount NUMERIC(20, 8) NOT NULL CHECK (profit_amount >= 0),
			period_key VARCHAR(16) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (plan_id, period_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_profit_distributions_user ON profit_distributions(user_id)`,

		// withdrawal_address is a first-class column; the destination is
		// never derived from the description text.
		`CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES profiles(id),
			transaction_type VARCHAR(20) NOT NULL CHECK (transaction_type IN ('profit', 'withdrawal', 'deposit', 'referral')),
			amount NUMERIC(20, 8) NOT NULL,
			fee NUMERIC(20, 8) NOT NULL DEFAULT 0,
			net_amount NUMERIC(20, 8) NOT NULL,
			status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'processing', 'completed', 'rejected')),
			reference_id TEXT,
			withdrawal_address TEXT,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_type_status ON transactions(transaction_type, status)`,

		// Atomic reservation: debit the gross amount and insert the pending
		// withdrawal in one unit. The guarded UPDATE is what prevents two
		// concurrent submissions from jointly overdrawing the account.
		`CREATE OR REPLACE FUNCTION create_withdrawal_request(
			p_user_id UUID,
			p_amount NUMERIC,
			p_fee NUMERIC,
			p_net_amount NUMERIC,
			p_address TEXT
		) RETURNS UUID AS $$
		DECLARE
			v_transaction_id UUID;
		BEGIN
			UPDATE profiles
			SET main_wallet_balance = main_wallet_balance - p_amount,
				updated_at = NOW()
			WHERE id = p_user_id AND main_wallet_balance >= p_amount;

			IF NOT FOUND THEN
				IF NOT EXISTS (SELECT 1 FROM profiles WHERE id = p_user_id) THEN
					RAISE EXCEPTION 'profile_not_found';
				END IF;
				RAISE EXCEPTION 'insufficient_balance';
			END IF;

			INSERT INTO transactions (
				user_id, transaction_type, amount, fee, net_amount,
				status, withdrawal_address, description
			) VALUES (
				p_user_id, 'withdrawal', p_amount, p_fee, p_net_amount,
				'pending', p_address, 'Withdrawal request to ' || p_address
			) RETURNING id INTO v_transaction_id;

			RETURN v_transaction_id;
		END;
		$$ LANGUAGE plpgsql`,

		// Single-winner claim: the guarded UPDATE moves exactly one approver's
		// call from pending to processing; a second claim of the same row
		// raises, keeping the on-chain transfer unique.
		`CREATE OR REPLACE FUNCTION claim_withdrawal(
			p_transaction_id UUID
		) RETURNS VOID AS $$
		BEGIN
			UPDATE transactions
			SET status = 'processing',
				updated_at = NOW()
			WHERE id = p_transaction_id
				AND transaction_type = 'withdrawal'
				AND status = 'pending';

			IF NOT FOUND THEN
				RAISE EXCEPTION 'withdrawal_not_pending';
			END IF;
		END;
		$$ LANGUAGE plpgsql`,

		// Atomic finalization: status transition plus conditional refund as
		// one unit. Accepts pending (direct rejection) and processing (after
		// a claim); terminal states raise.
		`CREATE OR REPLACE FUNCTION process_withdrawal_approval(
			p_transaction_id UUID,
			p_approve BOOLEAN,
			p_tx_hash TEXT
		) RETURNS VOID AS $$
		DECLARE
			v_tx transactions%ROWTYPE;
		BEGIN
			SELECT * INTO v_tx
			FROM transactions
			WHERE id = p_transaction_id AND transaction_type = 'withdrawal'
			FOR UPDATE;

			IF NOT FOUND OR v_tx.status NOT IN ('pending', 'processing') THEN
				RAISE EXCEPTION 'withdrawal_not_pending';
			END IF;

			IF p_approve THEN
				UPDATE transactions
				SET status = 'completed',
					reference_id = p_tx_hash,
					description = v_tx.description || ' - Completed: ' || COALESCE(p_tx_hash, ''),
					updated_at = NOW()
				WHERE id = p_transaction_id;
			ELSE
				UPDATE transactions
				SET status = 'rejected',
					updated_at = NOW()
				WHERE id = p_transaction_id;

				UPDATE profiles
				SET main_wallet_balance = main_wallet_balance + v_tx.amount,
					updated_at = NOW()
				WHERE id = v_tx.user_id;
			END IF;
		END;
		$$ LANGUAGE plpgsql`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info().Int("count", len(migrations)).Msg("migrations complete")
	return nil
}
