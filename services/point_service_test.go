package services

import (
	"context"
	"testing"

	"challenge-ledger/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointService_EnsureAccountIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewPointService(db)

	acct, err := svc.EnsureAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), acct.Balance)

	_, err = svc.Credit(ctx, "user-1", 250, models.EventGrant, "test")
	require.NoError(t, err)

	acct, err = svc.EnsureAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(250), acct.Balance, "existing balance is never reset")
	assert.Equal(t, int64(1), countRows(t, db, &models.PointAccount{}, "user_id = ?", "user-1"))

	_, err = svc.EnsureAccount(ctx, "  ")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestPointService_GetBalance(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewPointService(db)

	_, err := svc.GetBalance(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	seedAccount(t, db, "user-1", 42)
	balance, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), balance)
}

func TestPointService_GrantPoints(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewPointService(db)

	t.Run("provisions the account and credits", func(t *testing.T) {
		balance, err := svc.GrantPoints(ctx, "user-1", 1000)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), balance)

		balance, err = svc.GrantPoints(ctx, "user-1", 500)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), balance)
		assert.Equal(t, balance, ledgerSum(t, db, "user-1"))
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		for _, amount := range []int64{0, -10} {
			_, err := svc.GrantPoints(ctx, "user-1", amount)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		}
		assert.Equal(t, int64(1500), balanceOf(t, db, "user-1"))
	})
}

func TestPointService_ListLedger(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewPointService(db)

	for _, amount := range []int64{10, 20, 30} {
		_, err := svc.GrantPoints(ctx, "user-1", amount)
		require.NoError(t, err)
	}
	_, err := svc.GrantPoints(ctx, "user-2", 99)
	require.NoError(t, err)

	entries, err := svc.ListLedger(ctx, "user-1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(30), entries[0].Change)
	assert.Equal(t, int64(60), entries[0].BalanceAfter)
	assert.Equal(t, int64(20), entries[1].Change)
	assert.Equal(t, models.EventGrant, entries[0].EventType)

	entries, err = svc.ListLedger(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestPointAccount_DebitGuards(t *testing.T) {
	acct := models.PointAccount{UserID: "user-1", Balance: 100}

	require.NoError(t, acct.Debit(100))
	assert.Equal(t, int64(0), acct.Balance)

	err := acct.Debit(1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(0), acct.Balance)

	assert.ErrorIs(t, acct.Credit(0), models.ErrNonPositiveAmount)
	assert.ErrorIs(t, acct.Debit(-1), models.ErrNonPositiveAmount)
}
