// models/challenge.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// Challenge carries only the columns the point ledger reads or writes.
type Challenge struct {
	ID               string    `gorm:"primaryKey;type:uuid" json:"id"`
	Title            string    `gorm:"type:varchar(200);not null" json:"title"`
	StartsAt         time.Time `gorm:"not null" json:"starts_at"`
	EndsAt           time.Time `gorm:"not null;index" json:"ends_at"`
	ParticipantCount int64     `gorm:"not null;default:0" json:"participant_count"`

	Timestamps
}

func (c *Challenge) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	return nil
}
