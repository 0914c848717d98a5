package services

import "errors"

// Expected business outcomes are sentinel errors so callers can map them to
// user-facing messages without string matching. Infrastructure failures are
// wrapped driver errors and should be retried by the caller.
var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient credits")
	ErrDailyLimitReached = errors.New("daily earn limit reached")
	ErrAlreadyProcessed  = errors.New("payment already processed")
	ErrNotCompleted      = errors.New("payment not completed")
	ErrUserNotFound      = errors.New("user not found")
	ErrSessionNotFound   = errors.New("watch session not found")
	ErrPaymentNotFound   = errors.New("payment not found")
)
