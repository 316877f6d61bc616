package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Distributor runs profit distribution cycles over every active plan.
//
// Concurrent or repeated invocations for the same period are tolerated by
// design: the store's (plan, period) uniqueness is the sole correctness
// mechanism, not mutual exclusion, so an overlapping scheduler fire and a
// manual HTTP trigger can race harmlessly.
type Distributor struct {
	store  DistributionStore
	grain  Grain
	logger zerolog.Logger
}

// NewDistributor creates a distribution engine over the given store.
func NewDistributor(store DistributionStore, grain Grain, logger zerolog.Logger) *Distributor {
	return &Distributor{
		store:  store,
		grain:  grain,
		logger: logger.With().Str("component", "distributor").Logger(),
	}
}

// Grain returns the configured accrual grain.
func (d *Distributor) Grain() Grain {
	return d.grain
}

// RunCycleNow runs a cycle keyed to the current period.
func (d *Distributor) RunCycleNow(ctx context.Context) (CycleSummary, error) {
	return d.RunCycle(ctx, d.grain.PeriodKey(time.Now()))
}

// RunCycle applies one accrual per active plan for the given period key.
//
// Each plan is applied as one atomic store transaction covering the
// idempotency check, the distribution record, the balance increment, the
// profit transaction and the plan counter. A plan that fails is logged and
// skipped; one plan's failure never aborts the rest of the batch, and a
// later rerun with the same key picks up exactly the plans that are missing
// their record.
func (d *Distributor) RunCycle(ctx context.Context, periodKey string) (CycleSummary, error) {
	summary := CycleSummary{PeriodKey: periodKey, TotalDistributed: decimal.Zero}

	plans, err := d.store.ActivePlans(ctx)
	if err != nil {
		return summary, fmt.Errorf("fetch active plans: %w", err)
	}

	if len(plans) == 0 {
		d.logger.Info().Str("period", periodKey).Msg("no active investment plans")
		return summary, nil
	}

	usersUpdated := make(map[uuid.UUID]struct{})

	for _, plan := range plans {
		summary.PlansProcessed++

		amount := PeriodProfit(plan.Principal, plan.DailyRate, d.grain)

		applied, err := d.store.ApplyDistribution(ctx, Distribution{
			PlanID:    plan.ID,
			UserID:    plan.UserID,
			Amount:    amount,
			PeriodKey: periodKey,
		})
		if err != nil {
			summary.Failures++
			d.logger.Error().Err(err).
				Str("plan_id", plan.ID.String()).
				Str("period", periodKey).
				Msg("failed to apply distribution")
			continue
		}
		if !applied {
			summary.PlansSkipped++
			continue
		}

		summary.RecordsCreated++
		summary.TotalDistributed = summary.TotalDistributed.Add(amount)
		usersUpdated[plan.UserID] = struct{}{}
	}

	summary.UsersUpdated = len(usersUpdated)

	d.logger.Info().
		Str("period", periodKey).
		Int("plans", summary.PlansProcessed).
		Int("records", summary.RecordsCreated).
		Int("skipped", summary.PlansSkipped).
		Int("failures", summary.Failures).
		Int("users", summary.UsersUpdated).
		Str("total", summary.TotalDistributed.String()).
		Msg("distribution cycle complete")

	return summary, nil
}
