package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/content-factory/internal/model"
	"github.com/d60-Lab/content-factory/internal/repository"
	"github.com/d60-Lab/content-factory/pkg/logger"
)

// ErrInvalidTransition 执行状态只进不退，非法迁移一律拒绝
var ErrInvalidTransition = errors.New("invalid execution status transition")

// Tracker 执行记录的唯一写入口。
// (post, account) 对的建行、状态迁移和统计都经由此处，
// 终态 success 永不被重建或覆盖。
type Tracker struct {
	mu    sync.Mutex
	execs repository.ExecutionRepository
}

func New(execs repository.ExecutionRepository) *Tracker {
	return &Tracker{execs: execs}
}

// CreateBatch 为一组账号建立 queued 执行记录。
// 幂等：success 的既有记录跳过；failed 的重置回 queued 供重发；
// queued/posting 的保持不变。返回本批次应当调度的执行记录。
func (t *Tracker) CreateBatch(ctx context.Context, postID string, accountIDs []string) ([]*model.Execution, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, err := t.execs.MapByPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	var fresh []*model.Execution
	var batch []*model.Execution
	for _, accountID := range accountIDs {
		prev, ok := existing[accountID]
		if !ok {
			e := &model.Execution{
				ID:        uuid.New().String(),
				PostID:    postID,
				AccountID: accountID,
				Status:    model.ExecutionStatusQueued,
			}
			fresh = append(fresh, e)
			batch = append(batch, e)
			continue
		}
		switch prev.Status {
		case model.ExecutionStatusSuccess:
			// 已成功的对子不重发
		case model.ExecutionStatusFailed:
			n, err := t.execs.UpdateStatusFrom(ctx, prev.ID,
				[]model.ExecutionStatus{model.ExecutionStatusFailed},
				map[string]any{
					"status":        model.ExecutionStatusQueued,
					"error_message": "",
					"retry_count":   0,
				})
			if err != nil {
				return nil, err
			}
			if n > 0 {
				prev.Status = model.ExecutionStatusQueued
				prev.ErrorMessage = ""
				prev.RetryCount = 0
				batch = append(batch, prev)
			}
		default:
			batch = append(batch, prev)
		}
	}
	if err := t.execs.CreateBatch(ctx, fresh); err != nil {
		return nil, err
	}
	logger.Info("execution batch prepared",
		zap.String("post_id", postID),
		zap.Int("scheduled", len(batch)),
		zap.Int("created", len(fresh)))
	return batch, nil
}

// MarkPosting queued → posting
func (t *Tracker) MarkPosting(ctx context.Context, executionID string) error {
	n, err := t.execs.UpdateStatusFrom(ctx, executionID,
		[]model.ExecutionStatus{model.ExecutionStatusQueued},
		map[string]any{"status": model.ExecutionStatusPosting})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// MarkSuccess posting → success，记录远端媒体 id 与完成时刻
func (t *Tracker) MarkSuccess(ctx context.Context, executionID, remoteMediaID string) error {
	now := time.Now().UTC()
	n, err := t.execs.UpdateStatusFrom(ctx, executionID,
		[]model.ExecutionStatus{model.ExecutionStatusPosting},
		map[string]any{
			"status":          model.ExecutionStatusSuccess,
			"remote_media_id": remoteMediaID,
			"error_message":   "",
			"posted_at":       now,
		})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// MarkFailed {queued|posting} → failed，保留错误描述
func (t *Tracker) MarkFailed(ctx context.Context, executionID, errorMessage string) error {
	n, err := t.execs.UpdateStatusFrom(ctx, executionID,
		[]model.ExecutionStatus{model.ExecutionStatusQueued, model.ExecutionStatusPosting},
		map[string]any{
			"status":        model.ExecutionStatusFailed,
			"error_message": errorMessage,
		})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// RecordRetry 重试计数自增；状态不变
func (t *Tracker) RecordRetry(ctx context.Context, executionID string, retryCount int) error {
	_, err := t.execs.UpdateStatusFrom(ctx, executionID,
		[]model.ExecutionStatus{model.ExecutionStatusPosting},
		map[string]any{"retry_count": retryCount})
	return err
}

// SetTranslatedCaption 记录该执行使用的译文
func (t *Tracker) SetTranslatedCaption(ctx context.Context, executionID, caption string) error {
	_, err := t.execs.UpdateStatusFrom(ctx, executionID,
		[]model.ExecutionStatus{
			model.ExecutionStatusQueued,
			model.ExecutionStatusPosting,
		},
		map[string]any{"caption_translated": caption})
	return err
}

// Statistics 按状态聚合
func (t *Tracker) Statistics(ctx context.Context, postID string) (*repository.ExecutionStats, error) {
	return t.execs.Stats(ctx, postID)
}

// ListByPost 查询某帖子的执行记录，可按状态过滤
func (t *Tracker) ListByPost(ctx context.Context, postID string, status *model.ExecutionStatus, offset, limit int) ([]*model.Execution, error) {
	return t.execs.ListByPost(ctx, postID, status, offset, limit)
}
