package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWithdrawalStore mirrors the stored functions' contract in memory:
// debit and insert together, refund and reject together.
type fakeWithdrawalStore struct {
	balances    map[uuid.UUID]decimal.Decimal
	withdrawals map[uuid.UUID]*Withdrawal
}

func newFakeWithdrawalStore() *fakeWithdrawalStore {
	return &fakeWithdrawalStore{
		balances:    make(map[uuid.UUID]decimal.Decimal),
		withdrawals: make(map[uuid.UUID]*Withdrawal),
	}
}

func (s *fakeWithdrawalStore) MainWalletBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	b, ok := s.balances[userID]
	if !ok {
		return decimal.Zero, ErrProfileNotFound
	}
	return b, nil
}

func (s *fakeWithdrawalStore) CreateWithdrawalRequest(ctx context.Context, userID uuid.UUID, gross, fee, net decimal.Decimal, address string) (uuid.UUID, error) {
	b, ok := s.balances[userID]
	if !ok {
		return uuid.Nil, ErrProfileNotFound
	}
	if b.LessThan(gross) {
		return uuid.Nil, ErrInsufficientBalance
	}
	s.balances[userID] = b.Sub(gross)

	id := uuid.New()
	s.withdrawals[id] = &Withdrawal{
		ID:      id,
		UserID:  userID,
		Gross:   gross,
		Fee:     fee,
		Net:     net,
		Status:  StatusPending,
		Address: address,
	}
	return id, nil
}

func (s *fakeWithdrawalStore) PendingWithdrawal(ctx context.Context, id uuid.UUID) (*Withdrawal, error) {
	w, ok := s.withdrawals[id]
	if !ok {
		return nil, ErrWithdrawalNotFound
	}
	if w.Status != StatusPending {
		return nil, ErrWithdrawalNotPending
	}
	copied := *w
	return &copied, nil
}

func (s *fakeWithdrawalStore) ClaimWithdrawal(ctx context.Context, id uuid.UUID) error {
	w, ok := s.withdrawals[id]
	if !ok || w.Status != StatusPending {
		return ErrWithdrawalNotPending
	}
	w.Status = StatusProcessing
	return nil
}

func (s *fakeWithdrawalStore) CompleteWithdrawal(ctx context.Context, id uuid.UUID, txHash string) error {
	w, ok := s.withdrawals[id]
	if !ok || (w.Status != StatusPending && w.Status != StatusProcessing) {
		return ErrWithdrawalNotPending
	}
	w.Status = StatusCompleted
	w.Reference = txHash
	return nil
}

func (s *fakeWithdrawalStore) RejectWithdrawal(ctx context.Context, id uuid.UUID) error {
	w, ok := s.withdrawals[id]
	if !ok || (w.Status != StatusPending && w.Status != StatusProcessing) {
		return ErrWithdrawalNotPending
	}
	w.Status = StatusRejected
	s.balances[w.UserID] = s.balances[w.UserID].Add(w.Gross)
	return nil
}

type fakeGateway struct {
	hash     string
	err      error
	calls    int
	lastTo   string
	lastAmt  decimal.Decimal
	deadline bool
}

func (g *fakeGateway) Transfer(ctx context.Context, to string, amount decimal.Decimal) (string, error) {
	g.calls++
	g.lastTo = to
	g.lastAmt = amount
	_, g.deadline = ctx.Deadline()
	if g.err != nil {
		return "", g.err
	}
	return g.hash, nil
}

const testAddress = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"

func alwaysValid(string) bool { return true }

func newTestService(store WithdrawalStore, gw TransferGateway) *WithdrawalService {
	return NewWithdrawalService(store, gw, alwaysValid, 30*time.Second, zerolog.Nop())
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSubmitComputesFeeAndReservesGross(t *testing.T) {
	store := newFakeWithdrawalStore()
	user := uuid.New()
	store.balances[user] = dec("100")
	svc := newTestService(store, &fakeGateway{})

	receipt, err := svc.Submit(context.Background(), user, dec("40"), testAddress)
	require.NoError(t, err)

	assert.True(t, receipt.Fee.Equal(dec("4")), "fee got %s", receipt.Fee)
	assert.True(t, receipt.Net.Equal(dec("36")), "net got %s", receipt.Net)
	assert.Equal(t, StatusPending, receipt.Status)
	assert.True(t, store.balances[user].Equal(dec("60")), "balance got %s", store.balances[user])

	w := store.withdrawals[receipt.TransactionID]
	require.NotNil(t, w)
	assert.Equal(t, testAddress, w.Address)
	assert.Equal(t, StatusPending, w.Status)
}

func TestSubmitInsufficientBalanceLeavesBalanceUnchanged(t *testing.T) {
	store := newFakeWithdrawalStore()
	user := uuid.New()
	store.balances[user] = dec("100")
	svc := newTestService(store, &fakeGateway{})

	_, err := svc.Submit(context.Background(), user, dec("150"), testAddress)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, store.balances[user].Equal(dec("100")))
	assert.Empty(t, store.withdrawals)
}

func TestSubmitValidation(t *testing.T) {
	store := newFakeWithdrawalStore()
	user := uuid.New()
	store.balances[user] = dec("100")
	svc := NewWithdrawalService(store, &fakeGateway{}, func(a string) bool {
		return a == testAddress
	}, 30*time.Second, zerolog.Nop())

	_, err := svc.Submit(context.Background(), user, dec("0"), testAddress)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Submit(context.Background(), user, dec("-5"), testAddress)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Submit(context.Background(), user, dec("10"), "not-an-address")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = svc.Submit(context.Background(), uuid.New(), dec("10"), testAddress)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestApproveSendsNetAndKeepsDebit(t *testing.T) {
	store := newFakeWithdrawalStore()
	user := uuid.New()
	store.balances[user] = dec("100")
	gw := &fakeGateway{hash: "0xabc"}
	svc := newTestService(store, gw)

	receipt, err := svc.Submit(context.Background(), user, dec("40"), testAddress)
	require.NoError(t, err)

	outcome, err := svc.Approve(context.Background(), receipt.TransactionID, true, "")
	require.NoError(t, err)

	assert.True(t, outcome.Approved)
	assert.Equal(t, "0xabc", outcome.TxHash)
	assert.True(t, gw.lastAmt.Equal(dec("36")), "gateway must receive the net amount")
	assert.Equal(t, testAddress, gw.lastTo)
	assert.True(t, gw.deadline, "gateway call must carry a timeout")

	// No further deduction; the fee stays retained.
	assert.True(t, store.balances[user].Equal(dec("60")))
	w := store.withdrawals[receipt.TransactionID]
	assert.Equal(t, StatusCompleted, w.Status)
	assert.Equal(t, "0xabc", w.Reference)
}

func TestApproveRejectRefundsGross(t *testing.T) {
	store := newFakeWithdrawalStore()
	user := uuid.New()
	store.balances[user] = dec("100")
	svc := newTestService(store, &fakeGateway{hash: "0xabc"})

	receipt, err := svc.Submit(context.Background(), user, dec("40"), testAddress)
	require.NoError(t, err)
	require.True(t, store.balances[user].Equal(dec("60")))

	outcome, err := svc.Approve(context.Background(), receipt.TransactionID, false, "")
	require.NoError(t, err)

	assert.False(t, outcome.Approved)
	assert.True(t, outcome.Refunded)
	assert.True(t, store.balances[user].Equal(dec("100")), "gross must be refunded")
	assert.Equal(t, StatusRejected, store.withdrawals[receipt.TransactionID].Status)
}

func TestApproveGatewayFailureRefunds(t *testing.T) {
	store := newFakeWithdrawalStore()
	user := uuid.New()
	store.balances[user] = dec("100")
	gw := &fakeGateway{err: errors.New("insufficient gas")}
	svc := newTestService(store, gw)

	receipt, err := svc.Submit(context.Background(), user, dec("40"), testAddress)
	require.NoError(t, err)

	outcome, err := svc.Approve(context.Background(), receipt.TransactionID, true, "")
	require.Error(t, err)

	var gatewayErr *GatewayError
	require.ErrorAs(t, err, &gatewayErr)

	require.NotNil(t, outcome)
	assert.True(t, outcome.Refunded)
	assert.True(t, store.balances[user].Equal(dec("100")), "full pre-submission balance must be restored")
	assert.Equal(t, StatusRejected, store.withdrawals[receipt.TransactionID].Status)
}

func TestApproveTerminalWithdrawalRejected(t *testing.T) {
	store := newFakeWithdrawalStore()
	user := uuid.New()
	store.balances[user] = dec("100")
	svc := newTestService(store, &fakeGateway{hash: "0xabc"})

	receipt, err := svc.Submit(context.Background(), user, dec("40"), testAddress)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), receipt.TransactionID, true, "")
	require.NoError(t, err)

	// Re-approving a completed withdrawal must fail, not re-execute.
	_, err = svc.Approve(context.Background(), receipt.TransactionID, true, "")
	assert.ErrorIs(t, err, ErrWithdrawalNotPending)

	_, err = svc.Approve(context.Background(), uuid.New(), true, "")
	assert.ErrorIs(t, err, ErrWithdrawalNotFound)
}

// staleReadStore serves a pending snapshot even after another approver has
// claimed the row, mimicking two admins both reading the withdrawal before
// either claims it.
type staleReadStore struct {
	*fakeWithdrawalStore
	snapshot Withdrawal
}

func (s *staleReadStore) PendingWithdrawal(ctx context.Context, id uuid.UUID) (*Withdrawal, error) {
	copied := s.snapshot
	return &copied, nil
}

func TestApproveConcurrentApproversTransferOnce(t *testing.T) {
	store := newFakeWithdrawalStore()
	user := uuid.New()
	store.balances[user] = dec("100")
	gw := &fakeGateway{hash: "0xabc"}

	svc := newTestService(store, gw)
	receipt, err := svc.Submit(context.Background(), user, dec("40"), testAddress)
	require.NoError(t, err)

	stale := &staleReadStore{
		fakeWithdrawalStore: store,
		snapshot:            *store.withdrawals[receipt.TransactionID],
	}
	svc = newTestService(stale, gw)

	// Both approvers saw the pending snapshot; only the first claim wins.
	_, err = svc.Approve(context.Background(), receipt.TransactionID, true, "")
	require.NoError(t, err)
	require.Equal(t, 1, gw.calls)

	_, err = svc.Approve(context.Background(), receipt.TransactionID, true, "")
	assert.ErrorIs(t, err, ErrWithdrawalNotPending)
	assert.Equal(t, 1, gw.calls, "loser of the claim must never reach the gateway")
	assert.True(t, store.balances[user].Equal(dec("60")), "single debit, no refund")
	assert.Equal(t, StatusCompleted, store.withdrawals[receipt.TransactionID].Status)
}

func TestApproveAddressOverride(t *testing.T) {
	store := newFakeWithdrawalStore()
	user := uuid.New()
	store.balances[user] = dec("100")
	gw := &fakeGateway{hash: "0xdef"}
	svc := newTestService(store, gw)

	receipt, err := svc.Submit(context.Background(), user, dec("10"), testAddress)
	require.NoError(t, err)

	override := "0x1111111111111111111111111111111111111111"
	_, err = svc.Approve(context.Background(), receipt.TransactionID, true, override)
	require.NoError(t, err)
	assert.Equal(t, override, gw.lastTo)
}

func TestFeeBreakdownRounding(t *testing.T) {
	fee, net := FeeBreakdown(dec("33.33333333"))
	assert.True(t, fee.Equal(dec("3.33333333")), "fee got %s", fee)
	assert.True(t, fee.Add(net).Equal(dec("33.33333333")), "fee + net must equal gross")
}
