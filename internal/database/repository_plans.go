package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"bsc-invest-platform/internal/ledger"
)

// ActivePlans returns every investment plan with the active flag set,
// in the shape the distribution engine consumes.
func (r *Repository) ActivePlans(ctx context.Context) ([]ledger.Plan, error) {
	query := `
		SELECT id, user_id, plan_type, investment_amount, daily_percentage, created_at
		FROM investment_plans
		WHERE is_active = TRUE
		ORDER BY created_at`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active plans: %w", err)
	}
	defer rows.Close()

	var plans []ledger.Plan
	for rows.Next() {
		var p ledger.Plan
		if err := rows.Scan(&p.ID, &p.UserID, &p.PlanType, &p.Principal, &p.DailyRate, &p.CreatedAt); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}

	return plans, rows.Err()
}

// ApplyDistribution applies one plan's accrual as a single transaction:
// distribution record, wallet increment, profit transaction and plan
// counter commit together. The ON CONFLICT no-op on (plan_id, period_key)
// is the idempotency check; when it fires nothing else runs and the
// transaction is rolled back with no effect.
func (r *Repository) ApplyDistribution(ctx context.Context, dist ledger.Distribution) (bool, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO profit_distributions (plan_id, user_id, profit_amount, period_key)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (plan_id, period_key) DO NOTHING`,
		dist.PlanID, dist.UserID, dist.Amount, dist.PeriodKey,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert distribution record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already distributed for this period.
		return false, nil
	}

	// Atomic in-place increment; never read-compute-write.
	if _, err := tx.Exec(ctx, `
		UPDATE profiles
		SET main_wallet_balance = main_wallet_balance + $1, updated_at = NOW()
		WHERE id = $2`,
		dist.Amount, dist.UserID,
	); err != nil {
		return false, fmt.Errorf("failed to credit wallet: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO transactions (user_id, transaction_type, amount, fee, net_amount, status, description)
		VALUES ($1, $2, $3, 0, $3, $4, $5)`,
		dist.UserID, TxTypeProfit, dist.Amount, TxStatusCompleted,
		fmt.Sprintf("Profit distribution for period %s", dist.PeriodKey),
	); err != nil {
		return false, fmt.Errorf("failed to insert profit transaction: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE investment_plans
		SET total_profit_earned = total_profit_earned + $1
		WHERE id = $2`,
		dist.Amount, dist.PlanID,
	); err != nil {
		return false, fmt.Errorf("failed to update plan counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit distribution: %w", err)
	}

	return true, nil
}

// GetUserPlans returns all plans owned by a user, newest first.
func (r *Repository) GetUserPlans(ctx context.Context, userID uuid.UUID) ([]InvestmentPlan, error) {
	query := `
		SELECT id, user_id, plan_type, investment_amount, daily_percentage,
			total_profit_earned, is_active, created_at
		FROM investment_plans
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []InvestmentPlan
	for rows.Next() {
		var p InvestmentPlan
		if err := rows.Scan(&p.ID, &p.UserID, &p.PlanType, &p.InvestmentAmount,
			&p.DailyPercentage, &p.TotalProfitEarned, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}

	return plans, rows.Err()
}
