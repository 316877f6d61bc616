package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Grain is the accrual cadence of the distribution engine. It determines
// both the period-key format and the per-period divisor, so the idempotency
// boundary can never disagree with the accrual rate.
type Grain string

const (
	GrainDaily  Grain = "daily"
	GrainHourly Grain = "hourly"
)

// ParseGrain validates a configured grain value.
func ParseGrain(s string) (Grain, error) {
	switch Grain(s) {
	case GrainDaily, GrainHourly:
		return Grain(s), nil
	}
	return "", fmt.Errorf("unknown distribution grain %q", s)
}

// PeriodsPerDay is the accrual divisor for this grain.
func (g Grain) PeriodsPerDay() int64 {
	if g == GrainHourly {
		return 24
	}
	return 1
}

// PeriodKey formats the idempotency key for the period containing t.
// Keys are UTC so a cycle never straddles a local DST transition.
func (g Grain) PeriodKey(t time.Time) string {
	if g == GrainHourly {
		return t.UTC().Format("2006-01-02T15")
	}
	return t.UTC().Format("2006-01-02")
}

// amountPrecision matches the NUMERIC(20,8) columns of the ledger store.
const amountPrecision = 8

// PeriodProfit computes the accrual for one plan over one period:
// principal * (dailyRate / 100) / periodsPerDay, rounded to the store's
// precision. Fixed-point throughout; no float drift across many small
// hourly accruals.
func PeriodProfit(principal, dailyRate decimal.Decimal, grain Grain) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	periods := decimal.NewFromInt(grain.PeriodsPerDay())
	return principal.Mul(dailyRate).Div(hundred).Div(periods).Round(amountPrecision)
}
