package services

import (
	"errors"
	"fmt"

	"github.com/lmsledger/backend/internal/repository"
)

// Ledger errors. Callers match with errors.Is; the wrapped message carries
// the detail shown to the user.
var (
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrBelowMinimumWithdrawal = errors.New("amount below minimum withdrawal")
	ErrAlreadyProcessed       = errors.New("request has already been processed")
	ErrNotFound               = errors.New("not found")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidGradingEvent    = errors.New("invalid grading event")
	ErrRateLimited            = errors.New("too many withdrawal requests")
)

// ErrorCode is the stable machine-readable name of a ledger error.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrBelowMinimumWithdrawal):
		return "below_minimum_withdrawal"
	case errors.Is(err, ErrAlreadyProcessed):
		return "already_processed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidGradingEvent):
		return "invalid_grading_event"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "internal"
	}
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}
