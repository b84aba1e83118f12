// services/scheduler.go
package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// StartExpiryScheduler forfeits overdue bets every interval. The caller
// shuts the returned scheduler down on exit.
func (s *BetLedgerService) StartExpiryScheduler(ctx context.Context, interval, grace time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			expired, err := s.ExpireOverdueBets(ctx, time.Now(), grace)
			if err != nil {
				zap.L().Error("bet expiry run failed", zap.Error(err))
				return
			}
			if expired > 0 {
				zap.L().Info("expired overdue bets", zap.Int("count", expired))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	return sched, nil
}
