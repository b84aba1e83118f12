// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	DatabaseURL  string
	ServiceToken string // shared secret the gateway presents as Bearer token

	Redis     RedisConfig
	Toss      TossConfig
	Lock      LockConfig
	Sync      SyncConfig
	BetExpiry BetExpiryConfig
	Log       LogConfig
}

type RedisConfig struct {
	Addr     string // empty = in-process locks only
	Password string
	DB       int
}

type TossConfig struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// LockConfig bounds the per-payment distributed lock.
// Lease must outlast the credit transaction it protects.
type LockConfig struct {
	Wait  time.Duration
	Lease time.Duration
}

type SyncConfig struct {
	BaseURL      string
	EndpointPath string
	Interval     time.Duration
}

type BetExpiryConfig struct {
	Interval time.Duration
	Grace    time.Duration
}

type LogConfig struct {
	Level string
	File  string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	tossTimeout, err := getEnvDuration("TOSS_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	lockWait, err := getEnvDuration("LOCK_WAIT", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	lockLease, err := getEnvDuration("LOCK_LEASE", 3*time.Second)
	if err != nil {
		return nil, err
	}
	syncInterval, err := getEnvDuration("SYNC_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	expiryInterval, err := getEnvDuration("BET_EXPIRY_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	expiryGrace, err := getEnvDuration("BET_EXPIRY_GRACE", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:         getEnvString("PORT", "5200"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		ServiceToken: os.Getenv("GAME_SERVICE_TOKEN"),
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Toss: TossConfig{
			BaseURL:   strings.TrimRight(getEnvString("TOSS_BASE_URL", "https://api.tosspayments.com"), "/"),
			SecretKey: os.Getenv("TOSS_SECRET_KEY"),
			Timeout:   tossTimeout,
		},
		Lock: LockConfig{
			Wait:  lockWait,
			Lease: lockLease,
		},
		Sync: SyncConfig{
			BaseURL:      os.Getenv("SYNC_SERVICE_URL"),
			EndpointPath: getEnvString("SYNC_PROFILES_PATH", "/api/v1/public/profiles"),
			Interval:     syncInterval,
		},
		BetExpiry: BetExpiryConfig{
			Interval: expiryInterval,
			Grace:    expiryGrace,
		},
		Log: LogConfig{
			Level: getEnvString("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and the lock timing constraint.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if c.ServiceToken == "" {
		return fmt.Errorf("GAME_SERVICE_TOKEN environment variable not set")
	}
	if c.Toss.SecretKey == "" {
		return fmt.Errorf("TOSS_SECRET_KEY environment variable not set")
	}
	if c.Toss.Timeout <= 0 {
		return fmt.Errorf("TOSS_TIMEOUT must be positive, got %v", c.Toss.Timeout)
	}
	if c.Lock.Wait < 0 {
		return fmt.Errorf("LOCK_WAIT cannot be negative, got %v", c.Lock.Wait)
	}
	if c.Lock.Lease <= 0 {
		return fmt.Errorf("LOCK_LEASE must be positive, got %v", c.Lock.Lease)
	}
	if c.BetExpiry.Interval <= 0 {
		return fmt.Errorf("BET_EXPIRY_INTERVAL must be positive, got %v", c.BetExpiry.Interval)
	}
	if c.BetExpiry.Grace < 0 {
		return fmt.Errorf("BET_EXPIRY_GRACE cannot be negative, got %v", c.BetExpiry.Grace)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
