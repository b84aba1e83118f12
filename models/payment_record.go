// models/payment_record.go
package models

import "gorm.io/gorm"

const (
	PaymentStatusApproved = "APPROVED"
	PaymentStatusCanceled = "CANCELED"
)

// PaymentRecord is the durable idempotency row for a confirmed charge.
// At most one row exists per payment key and per order id.
type PaymentRecord struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID         string `gorm:"type:varchar(64);not null;index" json:"user_id"`
	PaymentKey     string `gorm:"type:varchar(200);not null;uniqueIndex:ux_payment_records_payment_key" json:"payment_key"`
	OrderID        string `gorm:"type:varchar(64);not null;uniqueIndex:ux_payment_records_order_id" json:"order_id"`
	Amount         int64  `gorm:"not null" json:"amount"`          // amount the gateway approved
	CreditedAmount int64  `gorm:"not null" json:"credited_amount"` // points added to the account
	Status         string `gorm:"type:varchar(16);not null;default:'APPROVED'" json:"status"`

	Timestamps
}

func (p *PaymentRecord) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}
