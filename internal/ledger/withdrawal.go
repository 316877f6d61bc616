package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WithdrawalFeeRate is the platform fee retained on every withdrawal.
var WithdrawalFeeRate = decimal.RequireFromString("0.10")

// StatusPending and friends mirror the transaction status column.
// Processing marks a withdrawal claimed by an approver while the on-chain
// transfer is in flight.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusRejected   = "rejected"
)

// WithdrawalService drives the withdrawal request/approval state machine:
// requested -> pending -> completed | rejected. Every path out of pending
// leaves the ledger consistent: either completed-and-debited or
// rejected-and-refunded.
type WithdrawalService struct {
	store           WithdrawalStore
	gateway         TransferGateway
	validAddress    AddressValidator
	transferTimeout time.Duration
	logger          zerolog.Logger
}

// NewWithdrawalService wires the workflow to its store and gateway.
func NewWithdrawalService(
	store WithdrawalStore,
	gateway TransferGateway,
	validAddress AddressValidator,
	transferTimeout time.Duration,
	logger zerolog.Logger,
) *WithdrawalService {
	return &WithdrawalService{
		store:           store,
		gateway:         gateway,
		validAddress:    validAddress,
		transferTimeout: transferTimeout,
		logger:          logger.With().Str("component", "withdrawals").Logger(),
	}
}

// FeeBreakdown computes the fee and net amount for a gross withdrawal.
func FeeBreakdown(amount decimal.Decimal) (fee, net decimal.Decimal) {
	fee = amount.Mul(WithdrawalFeeRate).Round(amountPrecision)
	net = amount.Sub(fee)
	return fee, net
}

// Submit validates and reserves a withdrawal. The balance check here is a
// courtesy read; the store's atomic debit-and-insert is what actually
// prevents over-withdrawal under concurrent submissions.
func (s *WithdrawalService) Submit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, address string) (*Receipt, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !s.validAddress(address) {
		return nil, ErrInvalidAddress
	}

	balance, err := s.store.MainWalletBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(amount) {
		return nil, ErrInsufficientBalance
	}

	fee, net := FeeBreakdown(amount)

	txID, err := s.store.CreateWithdrawalRequest(ctx, userID, amount, fee, net, address)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID.String()).
		Str("transaction_id", txID.String()).
		Str("gross", amount.String()).
		Str("fee", fee.String()).
		Str("net", net.String()).
		Str("address", address).
		Msg("withdrawal request created, awaiting approval")

	return &Receipt{
		TransactionID: txID,
		Requested:     amount,
		Fee:           fee,
		Net:           net,
		Status:        StatusPending,
	}, nil
}

// Approve finalizes a pending withdrawal. With approve=false the reserved
// gross amount is refunded atomically. With approve=true the row is claimed
// (pending -> processing) before the net amount is sent on-chain, so a
// concurrent approval of the same transaction cannot pay out twice; any
// gateway failure (timeouts included) takes the same reject-and-refund
// path, so funds are never left both debited and unsent.
func (s *WithdrawalService) Approve(ctx context.Context, transactionID uuid.UUID, approve bool, addressOverride string) (*ApprovalOutcome, error) {
	w, err := s.store.PendingWithdrawal(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	if !approve {
		if err := s.store.RejectWithdrawal(ctx, transactionID); err != nil {
			return nil, fmt.Errorf("reject withdrawal: %w", err)
		}
		s.logger.Info().
			Str("transaction_id", transactionID.String()).
			Str("gross", w.Gross.String()).
			Msg("withdrawal rejected, amount refunded")
		return &ApprovalOutcome{
			TransactionID: transactionID,
			Approved:      false,
			Refunded:      true,
			Message:       "Withdrawal rejected and amount refunded",
		}, nil
	}

	destination := w.Address
	if addressOverride != "" {
		destination = addressOverride
	}
	if !s.validAddress(destination) {
		return nil, ErrInvalidAddress
	}

	// Claim the row before touching the chain. The initial read is only a
	// snapshot; the claim is what excludes a concurrent approver.
	if err := s.store.ClaimWithdrawal(ctx, transactionID); err != nil {
		return nil, err
	}

	transferCtx, cancel := context.WithTimeout(ctx, s.transferTimeout)
	defer cancel()

	txHash, err := s.gateway.Transfer(transferCtx, destination, w.Net)
	if err != nil {
		s.logger.Error().Err(err).
			Str("transaction_id", transactionID.String()).
			Str("destination", destination).
			Msg("on-chain transfer failed, reversing reservation")

		if rejectErr := s.store.RejectWithdrawal(ctx, transactionID); rejectErr != nil {
			// Funds are debited with no transfer and no refund. This needs
			// operator intervention; surface both failures.
			s.logger.Error().Err(rejectErr).
				Str("transaction_id", transactionID.String()).
				Msg("refund after gateway failure also failed; manual reconciliation required")
			return nil, fmt.Errorf("transfer failed (%v) and refund failed: %w", err, rejectErr)
		}

		return &ApprovalOutcome{
			TransactionID: transactionID,
			Approved:      false,
			Refunded:      true,
			Message:       "Withdrawal processing failed; amount refunded",
		}, &GatewayError{Err: err}
	}

	if err := s.store.CompleteWithdrawal(ctx, transactionID, txHash); err != nil {
		// The transfer went out but the completion stamp did not land. Do
		// NOT refund: that would double-pay. Surface for reconciliation.
		s.logger.Error().Err(err).
			Str("transaction_id", transactionID.String()).
			Str("tx_hash", txHash).
			Msg("transfer sent but completion update failed; manual reconciliation required")
		return nil, fmt.Errorf("transfer sent (hash %s) but completion update failed: %w", txHash, err)
	}

	s.logger.Info().
		Str("transaction_id", transactionID.String()).
		Str("tx_hash", txHash).
		Str("net", w.Net.String()).
		Msg("withdrawal approved and sent on-chain")

	return &ApprovalOutcome{
		TransactionID: transactionID,
		Approved:      true,
		TxHash:        txHash,
		Message:       "Withdrawal approved and processed",
	}, nil
}
