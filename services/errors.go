// services/errors.go
package services

import (
	"errors"

	"challenge-ledger/models"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrPaymentGateway    = errors.New("payment gateway failure")
	ErrSecurityViolation = errors.New("payment verification mismatch")
	ErrConflict          = errors.New("payment is being processed, retry later")
	ErrInsufficientFunds = models.ErrInsufficientFunds
	ErrAlreadyActive     = errors.New("challenge already in progress")
	ErrAlreadyCompleted  = errors.New("challenge already completed")
	ErrNoStake           = errors.New("no bet placed")
	ErrNotFound          = errors.New("not found")
	ErrBetClosed         = errors.New("bet is closed")
)

// ErrorClass names the failure kind for metric labels and logs.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrPaymentGateway):
		return "gateway"
	case errors.Is(err, ErrSecurityViolation):
		return "security_violation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrAlreadyActive):
		return "already_active"
	case errors.Is(err, ErrAlreadyCompleted):
		return "already_completed"
	case errors.Is(err, ErrNoStake):
		return "no_stake"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBetClosed):
		return "bet_closed"
	default:
		return "internal"
	}
}
