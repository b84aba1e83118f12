package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"challenge-ledger/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory database. A single connection keeps
// the memory database alive and serialises transactions the way row locks
// would in Postgres.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.PointAccount{},
		&models.PaymentRecord{},
		&models.Challenge{},
		&models.UserChallenge{},
		&models.PointLedgerEntry{},
	))
	return db
}

func seedAccount(t *testing.T, db *gorm.DB, userID string, balance int64) {
	t.Helper()
	require.NoError(t, db.Create(&models.PointAccount{UserID: userID, Balance: balance}).Error)
}

func seedChallenge(t *testing.T, db *gorm.DB, endsAt time.Time) *models.Challenge {
	t.Helper()
	c := &models.Challenge{
		Title:    "30 days of running",
		StartsAt: endsAt.Add(-30 * 24 * time.Hour),
		EndsAt:   endsAt,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

func balanceOf(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()
	var acct models.PointAccount
	require.NoError(t, db.Where("user_id = ?", userID).First(&acct).Error)
	return acct.Balance
}

func participantsOf(t *testing.T, db *gorm.DB, challengeID string) int64 {
	t.Helper()
	var c models.Challenge
	require.NoError(t, db.Where("id = ?", challengeID).First(&c).Error)
	return c.ParticipantCount
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

// ledgerSum is the sum of journal changes, which must equal the balance.
func ledgerSum(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()
	var entries []models.PointLedgerEntry
	require.NoError(t, db.Where("user_id = ?", userID).Find(&entries).Error)
	var sum int64
	for _, e := range entries {
		sum += e.Change
	}
	return sum
}

type mockGateway struct {
	mock.Mock
}

var _ PaymentGateway = (*mockGateway)(nil)

func (m *mockGateway) Confirm(ctx context.Context, req ConfirmRequest, idempotencyKey string) (*Payment, error) {
	args := m.Called(ctx, req, idempotencyKey)
	p, _ := args.Get(0).(*Payment)
	return p, args.Error(1)
}

func (m *mockGateway) GetPayment(ctx context.Context, paymentKey string) (*Payment, error) {
	args := m.Called(ctx, paymentKey)
	p, _ := args.Get(0).(*Payment)
	return p, args.Error(1)
}

func donePayment(paymentKey, orderID string, amount int64) *Payment {
	return &Payment{
		PaymentKey:  paymentKey,
		OrderID:     orderID,
		Status:      PaymentStatusDone,
		TotalAmount: amount,
		Method:      "CARD",
	}
}
