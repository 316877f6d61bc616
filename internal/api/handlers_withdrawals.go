package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bsc-invest-platform/internal/ledger"
)

type submitWithdrawalRequest struct {
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	WalletAddress string          `json:"walletAddress" binding:"required"`
}

type approveWithdrawalRequest struct {
	TransactionID uuid.UUID `json:"transactionId" binding:"required"`
	Approve       *bool     `json:"approve" binding:"required"`
	WalletAddress string    `json:"walletAddress"`
}

// handleSubmitWithdrawal handles POST /api/withdraw
func (s *Server) handleSubmitWithdrawal(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	var req submitWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "amount and walletAddress are required")
		return
	}

	receipt, err := s.withdrawals.Submit(c.Request.Context(), userID, req.Amount, req.WalletAddress)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			errorResponse(c, http.StatusBadRequest, "withdrawal amount must be positive")
		case errors.Is(err, ledger.ErrInvalidAddress):
			errorResponse(c, http.StatusBadRequest, "invalid BSC wallet address")
		case errors.Is(err, ledger.ErrInsufficientBalance):
			errorResponse(c, http.StatusBadRequest, "insufficient wallet balance")
		case errors.Is(err, ledger.ErrProfileNotFound):
			errorResponse(c, http.StatusNotFound, "profile not found")
		default:
			s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("withdrawal submission failed")
			errorResponse(c, http.StatusInternalServerError, "failed to submit withdrawal")
		}
		return
	}

	s.invalidateUserCache(c, userID)
	successResponse(c, receipt)
}

// handleApproveWithdrawal handles PUT /api/withdraw (admin only).
// A gateway failure is not an HTTP error: the request was rejected and
// refunded server-side, and the outcome body says so.
func (s *Server) handleApproveWithdrawal(c *gin.Context) {
	var req approveWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "transactionId and approve are required")
		return
	}

	outcome, err := s.withdrawals.Approve(c.Request.Context(), req.TransactionID, *req.Approve, req.WalletAddress)
	if err != nil {
		var gwErr *ledger.GatewayError
		switch {
		case errors.As(err, &gwErr):
			// outcome carries the rejected-and-refunded state
		case errors.Is(err, ledger.ErrWithdrawalNotFound):
			errorResponse(c, http.StatusNotFound, "withdrawal not found")
			return
		case errors.Is(err, ledger.ErrWithdrawalNotPending):
			errorResponse(c, http.StatusNotFound, "withdrawal is not pending")
			return
		case errors.Is(err, ledger.ErrInvalidAddress):
			errorResponse(c, http.StatusBadRequest, "invalid destination address")
			return
		default:
			s.logger.Error().Err(err).Str("transaction_id", req.TransactionID.String()).Msg("withdrawal approval failed")
			errorResponse(c, http.StatusInternalServerError, "failed to process withdrawal")
			return
		}
	}

	if outcome != nil {
		s.invalidateAllUserCache(c)
	}
	successResponse(c, outcome)
}

// handlePendingWithdrawals handles GET /api/withdrawals/pending (admin only)
func (s *Server) handlePendingWithdrawals(c *gin.Context) {
	limit, offset := paginationParams(c, 50)

	pending, err := s.repo.GetPendingWithdrawals(c.Request.Context(), limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list pending withdrawals")
		errorResponse(c, http.StatusInternalServerError, "failed to list pending withdrawals")
		return
	}

	successResponse(c, gin.H{
		"withdrawals": pending,
		"limit":       limit,
		"offset":      offset,
	})
}
