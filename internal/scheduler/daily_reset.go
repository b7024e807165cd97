package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/content-factory/internal/repository"
	"github.com/d60-Lab/content-factory/pkg/logger"
)

// DailyReset 在每个 UTC 零点清零账号的当日发布计数
type DailyReset struct {
	accounts repository.AccountRepository
}

func NewDailyReset(accounts repository.AccountRepository) *DailyReset {
	return &DailyReset{accounts: accounts}
}

// Start 启动重置循环，返回停机函数
func (d *DailyReset) Start() func(context.Context) error {
	stopCh := make(chan struct{})
	go func() {
		for {
			select {
			case <-time.After(untilNextMidnightUTC(time.Now().UTC())):
				d.runOnce()
			case <-stopCh:
				return
			}
		}
	}()
	return func(ctx context.Context) error {
		close(stopCh)
		return nil
	}
}

func (d *DailyReset) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := d.accounts.ResetDailyCounters(ctx)
	if err != nil {
		logger.Error("daily counter reset", zap.Error(err))
		return
	}
	logger.Info("daily counters reset", zap.Int64("accounts", n))
}

func untilNextMidnightUTC(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return next.Sub(now)
}
