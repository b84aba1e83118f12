// models/point_ledger.go
package models

import "time"

type LedgerEvent string

const (
	EventPaymentCredit LedgerEvent = "payment_credit"
	EventBetDebit      LedgerEvent = "bet_debit"
	EventBetRefund     LedgerEvent = "bet_refund"
	EventBetBonus      LedgerEvent = "bet_bonus"
	EventGrant         LedgerEvent = "grant"
)

// PointLedgerEntry is an append-only journal row written in the same
// transaction as the balance change it records.
type PointLedgerEntry struct {
	ID           int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       string      `gorm:"type:varchar(64);not null;index:ix_point_ledger_user_created,priority:1" json:"user_id"`
	Change       int64       `gorm:"not null" json:"change"`
	BalanceAfter int64       `gorm:"not null" json:"balance_after"`
	EventType    LedgerEvent `gorm:"type:varchar(32);not null" json:"event_type"`
	Reference    string      `gorm:"type:varchar(200)" json:"reference,omitempty"` // payment key or challenge id
	CreatedAt    time.Time   `gorm:"autoCreateTime;index:ix_point_ledger_user_created,priority:2" json:"created_at"`
}
