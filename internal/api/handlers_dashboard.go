package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"bsc-invest-platform/internal/cache"
	"bsc-invest-platform/internal/database"
)

type walletSummary struct {
	MainWalletBalance decimal.Decimal `json:"main_wallet_balance"`
	FundWalletBalance decimal.Decimal `json:"fund_wallet_balance"`
}

// handleGetWallet handles GET /api/wallet
func (s *Server) handleGetWallet(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	summary, err := cachedJSON(c, s.cacheService, cache.WalletKey(userID.String()), cache.WalletTTL,
		func() (walletSummary, error) {
			profile, err := s.repo.GetProfileByID(c.Request.Context(), userID)
			if err != nil {
				return walletSummary{}, err
			}
			return walletSummary{
				MainWalletBalance: profile.MainWalletBalance,
				FundWalletBalance: profile.FundWalletBalance,
			}, nil
		})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to load wallet")
		errorResponse(c, http.StatusInternalServerError, "failed to load wallet")
		return
	}

	successResponse(c, summary)
}

// handleGetTransactions handles GET /api/transactions
func (s *Server) handleGetTransactions(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	limit, offset := paginationParams(c, 50)

	txs, err := cachedJSON(c, s.cacheService, cache.TransactionsKey(userID.String(), limit, offset), cache.TransactionsTTL,
		func() ([]database.Transaction, error) {
			return s.repo.GetUserTransactions(c.Request.Context(), userID, limit, offset)
		})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to load transactions")
		errorResponse(c, http.StatusInternalServerError, "failed to load transactions")
		return
	}

	successResponse(c, gin.H{
		"transactions": txs,
		"limit":        limit,
		"offset":       offset,
	})
}

// handleGetPlans handles GET /api/plans
func (s *Server) handleGetPlans(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	plans, err := cachedJSON(c, s.cacheService, cache.PlansKey(userID.String()), cache.PlansTTL,
		func() ([]database.InvestmentPlan, error) {
			return s.repo.GetUserPlans(c.Request.Context(), userID)
		})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to load plans")
		errorResponse(c, http.StatusInternalServerError, "failed to load plans")
		return
	}

	successResponse(c, gin.H{"plans": plans})
}
