package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount        = errors.New("withdrawal amount must be greater than zero")
	ErrInvalidAddress       = errors.New("invalid destination address")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrProfileNotFound      = errors.New("user profile not found")
	ErrWithdrawalNotFound   = errors.New("withdrawal transaction not found")
	ErrWithdrawalNotPending = errors.New("withdrawal is not pending")
)

// GatewayError wraps an on-chain transfer failure. The reservation has
// already been refunded by the time callers see this error.
type GatewayError struct {
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("on-chain transfer failed: %v", e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
