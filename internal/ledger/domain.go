// Package ledger implements the money-moving core of the platform: the
// profit distribution engine and the withdrawal workflow. Both operate
// against narrow store interfaces so the persistence layer (and the on-chain
// gateway) can be swapped for test doubles.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Plan is an active investment commitment earning periodic profit.
type Plan struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	PlanType  string
	Principal decimal.Decimal
	DailyRate decimal.Decimal // percent per day, e.g. 2 means 2%
	CreatedAt time.Time
}

// Distribution is one accrual event for one plan in one period.
type Distribution struct {
	PlanID    uuid.UUID
	UserID    uuid.UUID
	Amount    decimal.Decimal
	PeriodKey string
}

// CycleSummary reports the outcome of one distribution cycle.
type CycleSummary struct {
	PeriodKey        string          `json:"period_key"`
	PlansProcessed   int             `json:"plans_processed"`
	PlansSkipped     int             `json:"plans_skipped"`
	RecordsCreated   int             `json:"records_created"`
	UsersUpdated     int             `json:"users_updated"`
	Failures         int             `json:"failures"`
	TotalDistributed decimal.Decimal `json:"total_distributed"`
}

// Withdrawal is the ledger view of a withdrawal transaction.
type Withdrawal struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Gross     decimal.Decimal
	Fee       decimal.Decimal
	Net       decimal.Decimal
	Status    string
	Address   string
	Reference string
	CreatedAt time.Time
}

// Receipt is returned to the user after a successful submission.
type Receipt struct {
	TransactionID uuid.UUID       `json:"transactionId"`
	Requested     decimal.Decimal `json:"requestedAmount"`
	Fee           decimal.Decimal `json:"withdrawalFee"`
	Net           decimal.Decimal `json:"netAmount"`
	Status        string          `json:"status"`
}

// ApprovalOutcome describes where the withdrawal landed after Approve.
type ApprovalOutcome struct {
	TransactionID uuid.UUID `json:"transactionId"`
	Approved      bool      `json:"approved"`
	Refunded      bool      `json:"refunded"`
	TxHash        string    `json:"txHash,omitempty"`
	Message       string    `json:"message"`
}

// DistributionStore is the persistence contract of the distribution engine.
type DistributionStore interface {
	// ActivePlans returns every plan with the active flag set.
	ActivePlans(ctx context.Context) ([]Plan, error)

	// ApplyDistribution applies one accrual as a single atomic unit:
	// idempotency check, distribution record, balance increment, profit
	// transaction and plan counter all commit together or not at all.
	// Returns false (and no error) when the (plan, period) pair was
	// already recorded.
	ApplyDistribution(ctx context.Context, dist Distribution) (bool, error)
}

// WithdrawalStore is the persistence contract of the withdrawal workflow.
// CreateWithdrawalRequest and the two finalizers map onto the store's
// atomic functions: balance mutation and transaction row move together.
type WithdrawalStore interface {
	MainWalletBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	CreateWithdrawalRequest(ctx context.Context, userID uuid.UUID, gross, fee, net decimal.Decimal, address string) (uuid.UUID, error)
	PendingWithdrawal(ctx context.Context, id uuid.UUID) (*Withdrawal, error)

	// ClaimWithdrawal moves a pending withdrawal to processing. Exactly one
	// caller wins; everyone else gets ErrWithdrawalNotPending. The workflow
	// claims before going on-chain so two approvers can never both transfer.
	ClaimWithdrawal(ctx context.Context, id uuid.UUID) error

	CompleteWithdrawal(ctx context.Context, id uuid.UUID, txHash string) error
	RejectWithdrawal(ctx context.Context, id uuid.UUID) error
}

// TransferGateway performs the on-chain payout. Implementations must honor
// context cancellation; the workflow imposes its own timeout.
type TransferGateway interface {
	Transfer(ctx context.Context, to string, amount decimal.Decimal) (string, error)
}

// AddressValidator reports whether a destination address is syntactically
// valid for the target chain.
type AddressValidator func(address string) bool
