// models/timestamps.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Timestamps adds GORM auto-times. Ledger rows are never soft-deleted.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// assignID fills an empty uuid primary key before insert.
func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
