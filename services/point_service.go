// services/point_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"challenge-ledger/metrics"
	"challenge-ledger/models"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultLedgerLimit = 20
	maxLedgerLimit     = 100
)

// PointService owns PointAccount reads and the balance mutation helpers
// every other ledger service runs inside its own transaction.
type PointService struct {
	DB *gorm.DB
}

func NewPointService(db *gorm.DB) *PointService {
	return &PointService{DB: db}
}

// EnsureAccount creates a zero-balance account if none exists (idempotent).
func (s *PointService) EnsureAccount(ctx context.Context, userID string) (*models.PointAccount, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if err := ensureAccountRow(s.DB.WithContext(ctx), userID); err != nil {
		return nil, err
	}
	var acct models.PointAccount
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&acct).Error; err != nil {
		return nil, err
	}
	return &acct, nil
}

func (s *PointService) GetBalance(ctx context.Context, userID string) (int64, error) {
	var acct models.PointAccount
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: point account for user %s", ErrNotFound, userID)
	}
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// Credit adds amount to the user's balance in its own transaction and
// returns the new balance.
func (s *PointService) Credit(ctx context.Context, userID string, amount int64, event models.LedgerEvent, reference string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidRequest, amount)
	}

	var balance int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acct, err := lockAccount(tx, userID)
		if err != nil {
			return err
		}
		if err := applyCredit(tx, acct, amount, event, reference); err != nil {
			return err
		}
		balance = acct.Balance
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.RecordCredit(string(event), amount)
	zap.L().Info("points credited",
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
		zap.String("event", string(event)),
		zap.Int64("balance", balance))
	return balance, nil
}

// GrantPoints is the administrative top-up.
func (s *PointService) GrantPoints(ctx context.Context, userID string, amount int64) (int64, error) {
	return s.Credit(ctx, userID, amount, models.EventGrant, "admin")
}

// ListLedger returns the user's most recent journal entries, newest first.
func (s *PointService) ListLedger(ctx context.Context, userID string, limit int) ([]models.PointLedgerEntry, error) {
	if limit <= 0 {
		limit = defaultLedgerLimit
	}
	if limit > maxLedgerLimit {
		limit = maxLedgerLimit
	}
	var entries []models.PointLedgerEntry
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func ensureAccountRow(db *gorm.DB, userID string) error {
	return db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.PointAccount{UserID: userID}).Error
}

// lockAccount provisions the account if needed and takes its row lock.
// Every balance-mutating transaction calls it before anything else reads
// or writes ledger state.
func lockAccount(tx *gorm.DB, userID string) (*models.PointAccount, error) {
	if err := ensureAccountRow(tx, userID); err != nil {
		return nil, err
	}
	var acct models.PointAccount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&acct).Error
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func applyCredit(tx *gorm.DB, acct *models.PointAccount, amount int64, event models.LedgerEvent, reference string) error {
	if err := acct.Credit(amount); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return persistBalance(tx, acct, amount, event, reference)
}

func applyDebit(tx *gorm.DB, acct *models.PointAccount, amount int64, event models.LedgerEvent, reference string) error {
	if err := acct.Debit(amount); err != nil {
		if errors.Is(err, models.ErrNonPositiveAmount) {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return err
	}
	return persistBalance(tx, acct, -amount, event, reference)
}

func persistBalance(tx *gorm.DB, acct *models.PointAccount, change int64, event models.LedgerEvent, reference string) error {
	if err := tx.Model(acct).Update("balance", acct.Balance).Error; err != nil {
		return fmt.Errorf("update balance for %s: %w", acct.UserID, err)
	}
	entry := models.PointLedgerEntry{
		UserID:       acct.UserID,
		Change:       change,
		BalanceAfter: acct.Balance,
		EventType:    event,
		Reference:    reference,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("append ledger entry for %s: %w", acct.UserID, err)
	}
	return nil
}

// isUniqueViolation recognises duplicate-key failures across drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
