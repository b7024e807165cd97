package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/content-factory/internal/model"
	"github.com/d60-Lab/content-factory/internal/repository"
	"github.com/d60-Lab/content-factory/pkg/logger"
)

// ActivityRecorder 操作流水的异步落地器。
// 记录流水绝不阻塞业务路径：队列满时丢弃并告警。
type ActivityRecorder struct {
	repo repository.ActivityLogRepository
	ch   chan *model.ActivityLog
}

func NewActivityRecorder(repo repository.ActivityLogRepository, queueSize int) *ActivityRecorder {
	if queueSize <= 0 {
		queueSize = 4096
	}
	return &ActivityRecorder{repo: repo, ch: make(chan *model.ActivityLog, queueSize)}
}

// Start 启动落地 worker，返回停机函数（等待队列排空一小段时间）
func (r *ActivityRecorder) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 2
	}
	stopCh := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func() {
			for {
				select {
				case entry := <-r.ch:
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					if err := r.repo.Create(ctx, entry); err != nil {
						logger.Warn("persist activity log", zap.Error(err))
					}
					cancel()
				case <-stopCh:
					return
				}
			}
		}()
	}
	return func(ctx context.Context) error {
		close(stopCh)
		timeout := time.After(2 * time.Second)
		for {
			select {
			case <-timeout:
				return nil
			default:
				if len(r.ch) == 0 {
					return nil
				}
				time.Sleep(50 * time.Millisecond)
			}
		}
	}
}

// Record 入队一条流水；accountID 可为空（系统级操作）
func (r *ActivityRecorder) Record(accountID, action string, status model.LogStatus, details map[string]string, errMsg string, duration time.Duration) {
	entry := &model.ActivityLog{
		ID:           uuid.New().String(),
		Action:       action,
		Status:       status,
		Details:      details,
		ErrorMessage: errMsg,
		DurationMS:   duration.Milliseconds(),
	}
	if accountID != "" {
		entry.AccountID = &accountID
	}
	select {
	case r.ch <- entry:
	default:
		logger.Warn("activity queue full, drop entry",
			zap.String("action", action),
			zap.String("account_id", accountID))
	}
}

// QueueLen 当前队列长度（采样值）
func (r *ActivityRecorder) QueueLen() int { return len(r.ch) }
