// models/user_challenge.go
package models

import "gorm.io/gorm"

type ChallengeStatus string

const (
	StatusNotStarted ChallengeStatus = "NOT_STARTED"
	StatusInProgress ChallengeStatus = "IN_PROGRESS"
	StatusCompleted  ChallengeStatus = "COMPLETED"
	StatusFailed     ChallengeStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s ChallengeStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// UserChallenge is one user's participation and stake in one challenge.
// BetAmount is set once, when the record enters IN_PROGRESS.
type UserChallenge struct {
	ID            string          `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string          `gorm:"type:varchar(64);not null;uniqueIndex:ux_user_challenges_user_challenge" json:"user_id"`
	ChallengeID   string          `gorm:"type:uuid;not null;uniqueIndex:ux_user_challenges_user_challenge;index" json:"challenge_id"`
	Status        ChallengeStatus `gorm:"type:varchar(16);not null;default:'NOT_STARTED'" json:"status"`
	BetAmount     *int64          `json:"bet_amount,omitempty"`
	ProgressCount int             `gorm:"not null;default:0" json:"progress_count"`

	Timestamps
}

func (uc *UserChallenge) BeforeCreate(tx *gorm.DB) error {
	assignID(&uc.ID)
	return nil
}

// Stake returns the locked bet amount, or 0 when none was placed.
func (uc *UserChallenge) Stake() int64 {
	if uc.BetAmount == nil {
		return 0
	}
	return *uc.BetAmount
}
