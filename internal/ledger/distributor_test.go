package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDistStore applies distributions in memory with the same contract as
// the real store: one atomic unit per plan, unique on (plan, period).
type fakeDistStore struct {
	plans     []Plan
	plansErr  error
	failPlans map[uuid.UUID]error

	records  map[string]Distribution // plan|period -> applied distribution
	balances map[uuid.UUID]decimal.Decimal
	earned   map[uuid.UUID]decimal.Decimal // plan -> cumulative profit
}

func newFakeDistStore(plans ...Plan) *fakeDistStore {
	return &fakeDistStore{
		plans:     plans,
		failPlans: make(map[uuid.UUID]error),
		records:   make(map[string]Distribution),
		balances:  make(map[uuid.UUID]decimal.Decimal),
		earned:    make(map[uuid.UUID]decimal.Decimal),
	}
}

func (s *fakeDistStore) ActivePlans(ctx context.Context) ([]Plan, error) {
	if s.plansErr != nil {
		return nil, s.plansErr
	}
	return s.plans, nil
}

func (s *fakeDistStore) ApplyDistribution(ctx context.Context, dist Distribution) (bool, error) {
	if err := s.failPlans[dist.PlanID]; err != nil {
		return false, err
	}
	key := dist.PlanID.String() + "|" + dist.PeriodKey
	if _, exists := s.records[key]; exists {
		return false, nil
	}
	s.records[key] = dist
	s.balances[dist.UserID] = s.balances[dist.UserID].Add(dist.Amount)
	s.earned[dist.PlanID] = s.earned[dist.PlanID].Add(dist.Amount)
	return true, nil
}

func (s *fakeDistStore) totalRecorded() decimal.Decimal {
	total := decimal.Zero
	for _, d := range s.records {
		total = total.Add(d.Amount)
	}
	return total
}

func (s *fakeDistStore) totalBalances() decimal.Decimal {
	total := decimal.Zero
	for _, b := range s.balances {
		total = total.Add(b)
	}
	return total
}

func plan(userID uuid.UUID, principal, rate string) Plan {
	return Plan{
		ID:        uuid.New(),
		UserID:    userID,
		PlanType:  "standard",
		Principal: decimal.RequireFromString(principal),
		DailyRate: decimal.RequireFromString(rate),
	}
}

func TestRunCycleAccruesHourlyProfit(t *testing.T) {
	user := uuid.New()
	p := plan(user, "1000", "2")
	store := newFakeDistStore(p)
	d := NewDistributor(store, GrainHourly, zerolog.Nop())

	summary, err := d.RunCycle(context.Background(), "2026-08-30T10")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.PlansProcessed)
	assert.Equal(t, 1, summary.RecordsCreated)
	assert.Equal(t, 1, summary.UsersUpdated)
	assert.Equal(t, 0, summary.Failures)

	// 1000 * 2% / 24 periods
	want := decimal.RequireFromString("0.83333333")
	assert.True(t, summary.TotalDistributed.Equal(want), "got %s", summary.TotalDistributed)
	assert.True(t, store.balances[user].Equal(want))
}

func TestRunCycleIdempotentWithinPeriod(t *testing.T) {
	user := uuid.New()
	store := newFakeDistStore(plan(user, "1000", "2"), plan(user, "500", "1.5"))
	d := NewDistributor(store, GrainHourly, zerolog.Nop())

	first, err := d.RunCycle(context.Background(), "2026-08-30T10")
	require.NoError(t, err)
	require.Equal(t, 2, first.RecordsCreated)

	balanceAfterFirst := store.balances[user]

	second, err := d.RunCycle(context.Background(), "2026-08-30T10")
	require.NoError(t, err)
	assert.Equal(t, 0, second.RecordsCreated)
	assert.Equal(t, 2, second.PlansSkipped)
	assert.True(t, second.TotalDistributed.IsZero())
	assert.True(t, store.balances[user].Equal(balanceAfterFirst), "rerun must not touch balances")

	// A new period accrues again.
	third, err := d.RunCycle(context.Background(), "2026-08-30T11")
	require.NoError(t, err)
	assert.Equal(t, 2, third.RecordsCreated)
}

func TestRunCycleConservation(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	store := newFakeDistStore(
		plan(alice, "1000", "2"),
		plan(alice, "250.50", "1"),
		plan(bob, "9999.99", "0.75"),
	)
	d := NewDistributor(store, GrainHourly, zerolog.Nop())

	summary, err := d.RunCycle(context.Background(), "2026-08-30T10")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.UsersUpdated)
	assert.True(t, store.totalRecorded().Equal(store.totalBalances()),
		"sum of balance increments must equal sum of distribution records")
	assert.True(t, summary.TotalDistributed.Equal(store.totalRecorded()))
}

func TestRunCyclePlanFailureIsolated(t *testing.T) {
	good1 := plan(uuid.New(), "100", "2")
	bad := plan(uuid.New(), "200", "2")
	good2 := plan(uuid.New(), "300", "2")

	store := newFakeDistStore(good1, bad, good2)
	store.failPlans[bad.ID] = errors.New("deadlock detected")
	d := NewDistributor(store, GrainHourly, zerolog.Nop())

	summary, err := d.RunCycle(context.Background(), "2026-08-30T10")
	require.NoError(t, err, "per-plan failures must not fail the cycle")
	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, 2, summary.RecordsCreated)

	// Once the store recovers, a rerun with the same key picks up exactly
	// the failed plan.
	delete(store.failPlans, bad.ID)
	retry, err := d.RunCycle(context.Background(), "2026-08-30T10")
	require.NoError(t, err)
	assert.Equal(t, 1, retry.RecordsCreated)
	assert.Equal(t, 2, retry.PlansSkipped)
}

func TestRunCycleFetchFailureIsFatal(t *testing.T) {
	store := newFakeDistStore()
	store.plansErr = errors.New("connection refused")
	d := NewDistributor(store, GrainHourly, zerolog.Nop())

	_, err := d.RunCycle(context.Background(), "2026-08-30T10")
	require.Error(t, err)
}

func TestRunCycleDailyGrain(t *testing.T) {
	user := uuid.New()
	store := newFakeDistStore(plan(user, "1000", "2"))
	d := NewDistributor(store, GrainDaily, zerolog.Nop())

	summary, err := d.RunCycle(context.Background(), "2026-08-30")
	require.NoError(t, err)

	// Full daily rate in a single period.
	assert.True(t, summary.TotalDistributed.Equal(decimal.RequireFromString("20")),
		"got %s", summary.TotalDistributed)
}
