package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"challenge-ledger/config"
	"challenge-ledger/handlers"
	"challenge-ledger/locks"
	"challenge-ledger/middleware"
	"challenge-ledger/models"
	"challenge-ledger/services"
	"challenge-ledger/utils"
	"challenge-ledger/workers"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger not configured yet
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}

	logger, err := utils.InitLogger(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		zap.NewExample().Fatal("failed to initialise logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&models.PointAccount{},
		&models.PaymentRecord{},
		&models.Challenge{},
		&models.UserChallenge{},
		&models.PointLedgerEntry{},
	); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var locker locks.Locker
	if cfg.Redis.Addr != "" {
		rdb := locks.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		locker = locks.NewRedisLocker(rdb)
		logger.Info("payment locks backed by redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		locker = locks.NewLocalLocker()
		logger.Warn("REDIS_ADDR not set, payment locks are process-local")
	}

	gateway := services.NewTossPaymentsClient(cfg.Toss.BaseURL, cfg.Toss.SecretKey, cfg.Toss.Timeout)
	pointService := services.NewPointService(db)
	paymentService := services.NewPaymentSettlementService(db, pointService, gateway, locker, cfg.Lock.Wait, cfg.Lock.Lease)
	betService := services.NewBetLedgerService(db, pointService, services.NewRandomBonus())

	if cfg.Sync.BaseURL != "" {
		syncWorker := workers.NewAccountSyncWorker(pointService, cfg.Sync.BaseURL, cfg.Sync.EndpointPath, cfg.ServiceToken, cfg.Sync.Interval)
		syncWorker.Start(ctx)
	} else {
		logger.Info("SYNC_SERVICE_URL not set, accounts are provisioned on first use")
	}

	sched, err := betService.StartExpiryScheduler(ctx, cfg.BetExpiry.Interval, cfg.BetExpiry.Grace)
	if err != nil {
		logger.Fatal("failed to start bet expiry scheduler", zap.Error(err))
	}
	defer func() { _ = sched.Shutdown() }()

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})

	// Only gateway requests are allowed, apart from probes.
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken, handlers.HealthPath, handlers.MetricsPath))

	handlers.SetupSystemRoutes(app, db)
	handlers.SetupPointRoutes(app, pointService, paymentService)
	handlers.SetupChallengeRoutes(app, betService)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	logger.Info("server running", zap.String("port", cfg.Port))

	<-ctx.Done()
	logger.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("server shutdown error", zap.Error(err))
	}
}
