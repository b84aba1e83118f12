// models/point_account.go
package models

import (
	"errors"
	"fmt"
)

var (
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient points")
)

// PointAccount is a user's spendable point balance. Balance never goes
// negative; the check constraint backs up the Debit guard.
type PointAccount struct {
	UserID  string `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	Balance int64  `gorm:"not null;default:0;check:chk_point_accounts_balance,balance >= 0" json:"balance"`

	Timestamps
}

func (a *PointAccount) Credit(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: credit %d", ErrNonPositiveAmount, amount)
	}
	a.Balance += amount
	return nil
}

func (a *PointAccount) Debit(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: debit %d", ErrNonPositiveAmount, amount)
	}
	if amount > a.Balance {
		return fmt.Errorf("%w: balance %d, requested %d", ErrInsufficientFunds, a.Balance, amount)
	}
	a.Balance -= amount
	return nil
}
