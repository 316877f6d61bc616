package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bsc-invest-platform/internal/auth"
	"bsc-invest-platform/internal/ledger"
)

const testCronSecret = "cron-secret-for-tests"

type fakeStore struct {
	mu       sync.Mutex
	balances map[uuid.UUID]decimal.Decimal
	pending  map[uuid.UUID]*ledger.Withdrawal
	plans    []ledger.Plan
	applied  map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		balances: make(map[uuid.UUID]decimal.Decimal),
		pending:  make(map[uuid.UUID]*ledger.Withdrawal),
		applied:  make(map[string]bool),
	}
}

func (f *fakeStore) ActivePlans(ctx context.Context) ([]ledger.Plan, error) {
	return f.plans, nil
}

func (f *fakeStore) ApplyDistribution(ctx context.Context, dist ledger.Distribution) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := dist.PlanID.String() + "|" + dist.PeriodKey
	if f.applied[key] {
		return false, nil
	}
	f.applied[key] = true
	f.balances[dist.UserID] = f.balances[dist.UserID].Add(dist.Amount)
	return true, nil
}

func (f *fakeStore) MainWalletBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bal, ok := f.balances[userID]
	if !ok {
		return decimal.Zero, ledger.ErrProfileNotFound
	}
	return bal, nil
}

func (f *fakeStore) CreateWithdrawalRequest(ctx context.Context, userID uuid.UUID, gross, fee, net decimal.Decimal, address string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bal, ok := f.balances[userID]
	if !ok {
		return uuid.Nil, ledger.ErrProfileNotFound
	}
	if bal.LessThan(gross) {
		return uuid.Nil, ledger.ErrInsufficientBalance
	}
	f.balances[userID] = bal.Sub(gross)
	id := uuid.New()
	f.pending[id] = &ledger.Withdrawal{
		ID: id, UserID: userID, Gross: gross, Fee: fee, Net: net,
		Status: ledger.StatusPending, Address: address,
	}
	return id, nil
}

func (f *fakeStore) PendingWithdrawal(ctx context.Context, id uuid.UUID) (*ledger.Withdrawal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.pending[id]
	if !ok {
		return nil, ledger.ErrWithdrawalNotFound
	}
	if w.Status != ledger.StatusPending {
		return nil, ledger.ErrWithdrawalNotPending
	}
	cp := *w
	return &cp, nil
}

func (f *fakeStore) CompleteWithdrawal(ctx context.Context, id uuid.UUID, txHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[id].Status = ledger.StatusCompleted
	f.pending[id].Reference = txHash
	return nil
}

func (f *fakeStore) ClaimWithdrawal(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.pending[id]
	if !ok || w.Status != ledger.StatusPending {
		return ledger.ErrWithdrawalNotPending
	}
	w.Status = ledger.StatusProcessing
	return nil
}

func (f *fakeStore) RejectWithdrawal(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := f.pending[id]
	w.Status = ledger.StatusRejected
	f.balances[w.UserID] = f.balances[w.UserID].Add(w.Gross)
	return nil
}

type fakeGateway struct {
	fail   bool
	lastTo string
}

func (g *fakeGateway) Transfer(ctx context.Context, to string, amount decimal.Decimal) (string, error) {
	g.lastTo = to
	if g.fail {
		return "", fmt.Errorf("rpc unreachable")
	}
	return "0xdeadbeef", nil
}

func alwaysValid(string) bool { return true }

type testEnv struct {
	server  *Server
	store   *fakeStore
	gateway *fakeGateway
	jwt     *auth.JWTManager
}

func newTestEnv(t *testing.T, gatewayFails bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newFakeStore()
	gateway := &fakeGateway{fail: gatewayFails}

	withdrawals := ledger.NewWithdrawalService(store, gateway, alwaysValid, 5*time.Second, zerolog.Nop())
	distributor := ledger.NewDistributor(store, ledger.GrainHourly, zerolog.Nop())

	jwtManager := auth.NewJWTManager("test-secret", 15*time.Minute, time.Hour)
	middleware := auth.NewMiddleware(jwtManager)

	server := NewServer(
		ServerConfig{Port: 0, Host: "127.0.0.1", CronSecret: testCronSecret},
		nil, // repo unused by the handlers under test
		withdrawals,
		distributor,
		nil, // auth service unused: tokens are minted directly
		middleware,
		nil,
		zerolog.Nop(),
	)

	return &testEnv{server: server, store: store, gateway: gateway, jwt: jwtManager}
}

func (e *testEnv) tokenFor(t *testing.T, userID uuid.UUID, isAdmin bool) string {
	t.Helper()
	token, err := e.jwt.GenerateAccessToken(auth.UserClaims{
		UserID:  userID.String(),
		Email:   "user@example.com",
		IsAdmin: isAdmin,
	})
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.router.ServeHTTP(w, req)
	return w
}

func TestSubmitWithdrawal(t *testing.T) {
	env := newTestEnv(t, false)
	userID := uuid.New()
	env.store.balances[userID] = decimal.RequireFromString("100")
	token := env.tokenFor(t, userID, false)

	w := env.do(http.MethodPost, "/api/withdraw", token, gin.H{
		"amount":        "40",
		"walletAddress": "0x1111111111111111111111111111111111111111",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success bool           `json:"success"`
		Data    ledger.Receipt `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "pending", resp.Data.Status)
	assert.True(t, resp.Data.Fee.Equal(decimal.RequireFromString("4")))
	assert.True(t, resp.Data.Net.Equal(decimal.RequireFromString("36")))

	// Gross debited up front
	assert.True(t, env.store.balances[userID].Equal(decimal.RequireFromString("60")))
}

func TestSubmitWithdrawal_InsufficientBalance(t *testing.T) {
	env := newTestEnv(t, false)
	userID := uuid.New()
	env.store.balances[userID] = decimal.RequireFromString("10")
	token := env.tokenFor(t, userID, false)

	w := env.do(http.MethodPost, "/api/withdraw", token, gin.H{
		"amount":        "40",
		"walletAddress": "0x1111111111111111111111111111111111111111",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, env.store.balances[userID].Equal(decimal.RequireFromString("10")))
}

func TestSubmitWithdrawal_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(http.MethodPost, "/api/withdraw", "", gin.H{
		"amount":        "40",
		"walletAddress": "0x1111111111111111111111111111111111111111",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestApproveWithdrawal_AdminOnly(t *testing.T) {
	env := newTestEnv(t, false)
	userID := uuid.New()
	env.store.balances[userID] = decimal.RequireFromString("100")
	userToken := env.tokenFor(t, userID, false)

	w := env.do(http.MethodPut, "/api/withdraw", userToken, gin.H{
		"transactionId": uuid.New(),
		"approve":       true,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestApproveWithdrawal_Completes(t *testing.T) {
	env := newTestEnv(t, false)
	userID := uuid.New()
	env.store.balances[userID] = decimal.RequireFromString("100")

	userToken := env.tokenFor(t, userID, false)
	adminToken := env.tokenFor(t, uuid.New(), true)

	w := env.do(http.MethodPost, "/api/withdraw", userToken, gin.H{
		"amount":        "40",
		"walletAddress": "0x1111111111111111111111111111111111111111",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var submitResp struct {
		Data ledger.Receipt `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitResp))

	w = env.do(http.MethodPut, "/api/withdraw", adminToken, gin.H{
		"transactionId": submitResp.Data.TransactionID,
		"approve":       true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data ledger.ApprovalOutcome `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Approved)
	assert.Equal(t, "0xdeadbeef", resp.Data.TxHash)

	// Net already debited at submission; approval must not touch the balance
	assert.True(t, env.store.balances[userID].Equal(decimal.RequireFromString("60")))
}

func TestApproveWithdrawal_GatewayFailureRefunds(t *testing.T) {
	env := newTestEnv(t, true)
	userID := uuid.New()
	env.store.balances[userID] = decimal.RequireFromString("100")

	userToken := env.tokenFor(t, userID, false)
	adminToken := env.tokenFor(t, uuid.New(), true)

	w := env.do(http.MethodPost, "/api/withdraw", userToken, gin.H{
		"amount":        "40",
		"walletAddress": "0x1111111111111111111111111111111111111111",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var submitResp struct {
		Data ledger.Receipt `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitResp))

	w = env.do(http.MethodPut, "/api/withdraw", adminToken, gin.H{
		"transactionId": submitResp.Data.TransactionID,
		"approve":       true,
	})
	// Gateway failure is reported in the body, not as an HTTP error
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data ledger.ApprovalOutcome `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Approved)
	assert.True(t, resp.Data.Refunded)

	assert.True(t, env.store.balances[userID].Equal(decimal.RequireFromString("100")))
}

func TestApproveWithdrawal_WalletAddressOverride(t *testing.T) {
	env := newTestEnv(t, false)
	userID := uuid.New()
	env.store.balances[userID] = decimal.RequireFromString("100")

	userToken := env.tokenFor(t, userID, false)
	adminToken := env.tokenFor(t, uuid.New(), true)

	w := env.do(http.MethodPost, "/api/withdraw", userToken, gin.H{
		"amount":        "40",
		"walletAddress": "0x1111111111111111111111111111111111111111",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var submitResp struct {
		Data ledger.Receipt `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitResp))

	override := "0x2222222222222222222222222222222222222222"
	w = env.do(http.MethodPut, "/api/withdraw", adminToken, gin.H{
		"transactionId": submitResp.Data.TransactionID,
		"approve":       true,
		"walletAddress": override,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The override from the request body must reach the gateway.
	assert.Equal(t, override, env.gateway.lastTo)
}

func TestDistributeProfits_CronSecret(t *testing.T) {
	env := newTestEnv(t, false)
	userID := uuid.New()
	env.store.plans = []ledger.Plan{{
		ID:        uuid.New(),
		UserID:    userID,
		Principal: decimal.RequireFromString("1000"),
		DailyRate: decimal.RequireFromString("2"),
	}}

	w := env.do(http.MethodPost, "/api/cron/distribute-profits", "wrong-secret", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/cron/distribute-profits", testCronSecret, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data ledger.CycleSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.RecordsCreated)

	// Same period again: nothing new credited
	w = env.do(http.MethodGet, "/api/cron/distribute-profits", testCronSecret, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Data.RecordsCreated)
	assert.Equal(t, 1, resp.Data.PlansSkipped)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("/api/wallet"))
	}
	assert.False(t, rl.Allow("/api/wallet"))
	assert.True(t, rl.Allow("/api/plans"))
}
