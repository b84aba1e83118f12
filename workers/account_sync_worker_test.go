package workers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"challenge-ledger/models"
	"challenge-ledger/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.PointAccount{}, &models.PointLedgerEntry{}))
	return db
}

func TestAccountSyncWorker_ProvisionsAccounts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.PointAccount{UserID: "ext-1", Balance: 750}).Error)

	var mu sync.Mutex
	var sinces []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/public/profiles", r.URL.Path)
		assert.Equal(t, "svc-token", r.Header.Get("X-Service-Token"))
		mu.Lock()
		sinces = append(sinces, r.URL.Query().Get("since"))
		call := len(sinces)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if call == 1 {
			_, _ = w.Write([]byte(`{"users":[
				{"id":"1","external_id":"ext-1","username":"alice","updated_at":"2025-03-01T10:00:00Z"},
				{"id":"2","external_id":"ext-2","username":"bob","updated_at":"2025-03-02T10:00:00Z"},
				{"id":"3","external_id":"","username":"ghost","updated_at":"2025-03-03T10:00:00Z"}
			]}`))
			return
		}
		_, _ = w.Write([]byte(`{"users":[]}`))
	}))
	defer srv.Close()

	worker := NewAccountSyncWorker(services.NewPointService(db), srv.URL, "/api/v1/public/profiles", "svc-token", time.Minute)

	n, err := worker.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var accounts []models.PointAccount
	require.NoError(t, db.Order("user_id").Find(&accounts).Error)
	require.Len(t, accounts, 2)
	assert.Equal(t, int64(750), accounts[0].Balance, "existing balance untouched")
	assert.Equal(t, "ext-2", accounts[1].UserID)
	assert.Equal(t, int64(0), accounts[1].Balance)

	n, err = worker.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.Len(t, sinces, 2)
	assert.Equal(t, "0001-01-01T00:00:00Z", sinces[0])
	assert.Equal(t, "2025-03-02T10:00:00Z", sinces[1], "cursor advances to the newest provisioned profile")
}

func TestAccountSyncWorker_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	worker := NewAccountSyncWorker(services.NewPointService(newTestDB(t)), srv.URL, "/api/v1/public/profiles", "bad", time.Minute)
	_, err := worker.SyncOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
