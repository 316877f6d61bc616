package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction types
const (
	TxTypeProfit     = "profit"
	TxTypeWithdrawal = "withdrawal"
	TxTypeDeposit    = "deposit"
	TxTypeReferral   = "referral"
)

// Transaction statuses
const (
	TxStatusPending    = "pending"
	TxStatusProcessing = "processing"
	TxStatusCompleted  = "completed"
	TxStatusRejected   = "rejected"
)

// Profile is a platform user with their wallet balances.
type Profile struct {
	ID                uuid.UUID       `json:"id"`
	Email             string          `json:"email"`
	PasswordHash      string          `json:"-"`
	Name              string          `json:"name"`
	IsAdmin           bool            `json:"is_admin"`
	MainWalletBalance decimal.Decimal `json:"main_wallet_balance"`
	FundWalletBalance decimal.Decimal `json:"fund_wallet_balance"`
	ReferralCode      string          `json:"referral_code,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// InvestmentPlan is a user's capital commitment earning daily profit.
type InvestmentPlan struct {
	ID                uuid.UUID       `json:"id"`
	UserID            uuid.UUID       `json:"user_id"`
	PlanType          string          `json:"plan_type"`
	InvestmentAmount  decimal.Decimal `json:"investment_amount"`
	DailyPercentage   decimal.Decimal `json:"daily_percentage"`
	TotalProfitEarned decimal.Decimal `json:"total_profit_earned"`
	IsActive          bool            `json:"is_active"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ProfitDistribution is one immutable accrual record. At most one row
// exists per (plan_id, period_key).
type ProfitDistribution struct {
	ID           uuid.UUID       `json:"id"`
	PlanID       uuid.UUID       `json:"plan_id"`
	UserID       uuid.UUID       `json:"user_id"`
	ProfitAmount decimal.Decimal `json:"profit_amount"`
	PeriodKey    string          `json:"period_key"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Transaction is an append-only audit entry paired with every balance
// mutation.
type Transaction struct {
	ID                uuid.UUID       `json:"id"`
	UserID            uuid.UUID       `json:"user_id"`
	TransactionType   string          `json:"transaction_type"`
	Amount            decimal.Decimal `json:"amount"`
	Fee               decimal.Decimal `json:"fee"`
	NetAmount         decimal.Decimal `json:"net_amount"`
	Status            string          `json:"status"`
	ReferenceID       *string         `json:"reference_id,omitempty"`
	WithdrawalAddress *string         `json:"withdrawal_address,omitempty"`
	Description       *string         `json:"description,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
