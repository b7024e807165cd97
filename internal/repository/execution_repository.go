package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/content-factory/internal/model"
)

// ExecutionStats 按状态聚合计数
type ExecutionStats struct {
	Queued  int64 `json:"queued"`
	Posting int64 `json:"posting"`
	Success int64 `json:"success"`
	Failed  int64 `json:"failed"`
	Total   int64 `json:"total"`
}

// ExecutionRepository 执行记录仓储接口
type ExecutionRepository interface {
	// CreateBatch 批量插入，(post_id, account_id) 冲突时忽略
	CreateBatch(ctx context.Context, executions []*model.Execution) error
	GetByID(ctx context.Context, id string) (*model.Execution, error)
	// MapByPost 返回 post 下 account_id → execution 的映射
	MapByPost(ctx context.Context, postID string) (map[string]*model.Execution, error)
	ListByPost(ctx context.Context, postID string, status *model.ExecutionStatus, offset, limit int) ([]*model.Execution, error)
	// UpdateStatusFrom 条件迁移：仅当现状态在 from 集合内；返回生效行数
	UpdateStatusFrom(ctx context.Context, id string, from []model.ExecutionStatus, updates map[string]any) (int64, error)
	Stats(ctx context.Context, postID string) (*ExecutionStats, error)
	DeleteByPost(ctx context.Context, postID string) error
}

type executionRepository struct{ db *gorm.DB }

func NewExecutionRepository(db *gorm.DB) ExecutionRepository { return &executionRepository{db: db} }

func (r *executionRepository) CreateBatch(ctx context.Context, executions []*model.Execution) error {
	if len(executions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&executions).Error
}

func (r *executionRepository) GetByID(ctx context.Context, id string) (*model.Execution, error) {
	var e model.Execution
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *executionRepository) MapByPost(ctx context.Context, postID string) (map[string]*model.Execution, error) {
	var rows []*model.Execution
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).Find(&rows).Error; err != nil {
		return nil, err
	}
	res := make(map[string]*model.Execution, len(rows))
	for _, e := range rows {
		res[e.AccountID] = e
	}
	return res, nil
}

func (r *executionRepository) ListByPost(ctx context.Context, postID string, status *model.ExecutionStatus, offset, limit int) ([]*model.Execution, error) {
	q := r.db.WithContext(ctx).Where("post_id = ?", postID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if limit <= 0 {
		limit = 100
	}
	var res []*model.Execution
	err := q.Order("created_at").Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}

func (r *executionRepository) UpdateStatusFrom(ctx context.Context, id string, from []model.ExecutionStatus, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Execution{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *executionRepository) Stats(ctx context.Context, postID string) (*ExecutionStats, error) {
	type row struct {
		Status model.ExecutionStatus
		Cnt    int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&model.Execution{}).
		Select("status, COUNT(*) AS cnt").
		Where("post_id = ?", postID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	stats := &ExecutionStats{}
	for _, x := range rows {
		switch x.Status {
		case model.ExecutionStatusQueued:
			stats.Queued = x.Cnt
		case model.ExecutionStatusPosting:
			stats.Posting = x.Cnt
		case model.ExecutionStatusSuccess:
			stats.Success = x.Cnt
		case model.ExecutionStatusFailed:
			stats.Failed = x.Cnt
		}
		stats.Total += x.Cnt
	}
	return stats, nil
}

func (r *executionRepository) DeleteByPost(ctx context.Context, postID string) error {
	return r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&model.Execution{}).Error
}
