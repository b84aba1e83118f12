// services/bet_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"challenge-ledger/metrics"
	"challenge-ledger/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettleResult struct {
	RefundAmount int64 `json:"refundAmount"`
	BonusAmount  int64 `json:"bonusPointsCredited"`
}

// BetLedgerService moves stakes between point accounts and challenge
// participations. Every mutating path runs in one transaction that first
// locks the user's point account row.
type BetLedgerService struct {
	DB     *gorm.DB
	Points *PointService
	Bonus  BonusSource
}

func NewBetLedgerService(db *gorm.DB, points *PointService, bonus BonusSource) *BetLedgerService {
	return &BetLedgerService{DB: db, Points: points, Bonus: bonus}
}

// Join debits the stake and moves the participation to IN_PROGRESS.
func (s *BetLedgerService) Join(ctx context.Context, userID, challengeID string, betAmount int64) (*models.UserChallenge, error) {
	if err := validateBetKeys(userID, challengeID); err != nil {
		return nil, err
	}
	if betAmount <= 0 {
		return nil, fmt.Errorf("%w: bet amount must be positive, got %d", ErrInvalidRequest, betAmount)
	}

	var joined models.UserChallenge
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acct, err := lockAccount(tx, userID)
		if err != nil {
			return err
		}

		var challenge models.Challenge
		if err := tx.Where("id = ?", challengeID).First(&challenge).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: challenge %s", ErrNotFound, challengeID)
			}
			return err
		}

		uc, err := findBet(tx, userID, challengeID)
		if errors.Is(err, ErrNotFound) {
			uc = &models.UserChallenge{
				UserID:      userID,
				ChallengeID: challengeID,
				Status:      models.StatusNotStarted,
			}
		} else if err != nil {
			return err
		}

		switch uc.Status {
		case models.StatusInProgress:
			return fmt.Errorf("%w: challenge %s", ErrAlreadyActive, challengeID)
		case models.StatusCompleted:
			return fmt.Errorf("%w: challenge %s", ErrAlreadyCompleted, challengeID)
		case models.StatusFailed:
			return fmt.Errorf("%w: challenge %s failed", ErrBetClosed, challengeID)
		}
		previous := uc.Status

		if err := applyDebit(tx, acct, betAmount, models.EventBetDebit, challengeID); err != nil {
			return err
		}

		uc.BetAmount = &betAmount
		uc.Status = models.StatusInProgress
		if err := tx.Save(uc).Error; err != nil {
			return fmt.Errorf("save participation: %w", err)
		}

		if previous != models.StatusInProgress {
			if err := tx.Model(&models.Challenge{}).
				Where("id = ?", challengeID).
				UpdateColumn("participant_count", gorm.Expr("participant_count + ?", 1)).Error; err != nil {
				return fmt.Errorf("increment participants: %w", err)
			}
		}

		joined = *uc
		return nil
	})
	metrics.RecordBet("join", ErrorClass(err))
	if err != nil {
		return nil, err
	}

	metrics.RecordDebit(string(models.EventBetDebit), betAmount)
	zap.L().Info("challenge joined",
		zap.String("user_id", userID),
		zap.String("challenge_id", challengeID),
		zap.Int64("bet_amount", betAmount))
	return &joined, nil
}

// SettleSuccess refunds the stake, credits a random bonus and completes
// the participation.
func (s *BetLedgerService) SettleSuccess(ctx context.Context, userID, challengeID string) (*SettleResult, error) {
	if err := validateBetKeys(userID, challengeID); err != nil {
		return nil, err
	}

	var result SettleResult
	var percent int
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acct, err := lockAccount(tx, userID)
		if err != nil {
			return err
		}
		uc, err := findBet(tx, userID, challengeID)
		if err != nil {
			return err
		}

		switch uc.Status {
		case models.StatusCompleted:
			return fmt.Errorf("%w: challenge %s", ErrAlreadyCompleted, challengeID)
		case models.StatusFailed:
			return fmt.Errorf("%w: challenge %s failed", ErrBetClosed, challengeID)
		}
		stake := uc.Stake()
		if stake <= 0 {
			return fmt.Errorf("%w: challenge %s", ErrNoStake, challengeID)
		}

		if err := applyCredit(tx, acct, stake, models.EventBetRefund, challengeID); err != nil {
			return err
		}
		percent = s.Bonus.Percent()
		bonus := BonusFor(stake, percent)
		if bonus > 0 {
			if err := applyCredit(tx, acct, bonus, models.EventBetBonus, challengeID); err != nil {
				return err
			}
		}

		uc.Status = models.StatusCompleted
		if err := tx.Save(uc).Error; err != nil {
			return fmt.Errorf("save participation: %w", err)
		}

		result = SettleResult{RefundAmount: stake, BonusAmount: bonus}
		return nil
	})
	metrics.RecordBet("settle", ErrorClass(err))
	if err != nil {
		return nil, err
	}

	metrics.RecordCredit(string(models.EventBetRefund), result.RefundAmount)
	if result.BonusAmount > 0 {
		metrics.RecordCredit(string(models.EventBetBonus), result.BonusAmount)
	}
	zap.L().Info("challenge settled",
		zap.String("user_id", userID),
		zap.String("challenge_id", challengeID),
		zap.Int64("refund", result.RefundAmount),
		zap.Int("bonus_percent", percent),
		zap.Int64("bonus", result.BonusAmount))
	return &result, nil
}

// CancelBet forfeits the stake. Terminal participations and participations
// without a stake are left untouched.
func (s *BetLedgerService) CancelBet(ctx context.Context, userID, challengeID string) error {
	if err := validateBetKeys(userID, challengeID); err != nil {
		return err
	}
	_, err := s.cancel(ctx, userID, challengeID)
	metrics.RecordBet("cancel", ErrorClass(err))
	return err
}

func (s *BetLedgerService) cancel(ctx context.Context, userID, challengeID string) (bool, error) {
	changed := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockAccount(tx, userID); err != nil {
			return err
		}
		uc, err := findBet(tx, userID, challengeID)
		if err != nil {
			return err
		}
		if uc.Status.Terminal() || uc.Stake() <= 0 {
			return nil
		}

		uc.Status = models.StatusFailed
		if err := tx.Save(uc).Error; err != nil {
			return fmt.Errorf("save participation: %w", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if changed {
		zap.L().Info("challenge bet forfeited",
			zap.String("user_id", userID),
			zap.String("challenge_id", challengeID))
	}
	return changed, nil
}

// RecordProgress counts one approved verification for an active bet.
func (s *BetLedgerService) RecordProgress(ctx context.Context, userID, challengeID string) (*models.UserChallenge, error) {
	if err := validateBetKeys(userID, challengeID); err != nil {
		return nil, err
	}

	var updated models.UserChallenge
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var uc models.UserChallenge
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND challenge_id = ?", userID, challengeID).
			First(&uc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: participation in challenge %s", ErrNotFound, challengeID)
		}
		if err != nil {
			return err
		}
		if uc.Status != models.StatusInProgress {
			return fmt.Errorf("%w: challenge %s is %s", ErrBetClosed, challengeID, uc.Status)
		}

		uc.ProgressCount++
		if err := tx.Model(&uc).Update("progress_count", uc.ProgressCount).Error; err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
		updated = uc
		return nil
	})
	metrics.RecordBet("progress", ErrorClass(err))
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *BetLedgerService) GetBet(ctx context.Context, userID, challengeID string) (*models.UserChallenge, error) {
	return findBet(s.DB.WithContext(ctx), userID, challengeID)
}

// ExpireOverdueBets forfeits every IN_PROGRESS bet whose challenge ended
// before now minus grace, and returns how many were forfeited.
func (s *BetLedgerService) ExpireOverdueBets(ctx context.Context, now time.Time, grace time.Duration) (int, error) {
	cutoff := now.Add(-grace)

	var overdue []models.UserChallenge
	err := s.DB.WithContext(ctx).
		Joins("JOIN challenges ON challenges.id = user_challenges.challenge_id").
		Where("user_challenges.status = ? AND challenges.ends_at < ?", models.StatusInProgress, cutoff).
		Find(&overdue).Error
	if err != nil {
		return 0, fmt.Errorf("query overdue bets: %w", err)
	}

	expired := 0
	for _, uc := range overdue {
		changed, err := s.cancel(ctx, uc.UserID, uc.ChallengeID)
		if err != nil {
			zap.L().Warn("failed to expire bet",
				zap.String("user_id", uc.UserID),
				zap.String("challenge_id", uc.ChallengeID),
				zap.Error(err))
			continue
		}
		if changed {
			expired++
			metrics.RecordBet("expire", "success")
		}
	}
	return expired, nil
}

func findBet(db *gorm.DB, userID, challengeID string) (*models.UserChallenge, error) {
	var uc models.UserChallenge
	err := db.Where("user_id = ? AND challenge_id = ?", userID, challengeID).First(&uc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: participation in challenge %s", ErrNotFound, challengeID)
	}
	if err != nil {
		return nil, err
	}
	return &uc, nil
}

func validateBetKeys(userID, challengeID string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(challengeID) == "" {
		return fmt.Errorf("%w: user id and challenge id are required", ErrInvalidRequest)
	}
	return nil
}
