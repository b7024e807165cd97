package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/content-factory/internal/model"
)

// ActivityLogRepository 操作流水仓储接口
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *model.ActivityLog) error
	ListByAccount(ctx context.Context, accountID string, offset, limit int) ([]*model.ActivityLog, error)
}

type activityLogRepository struct{ db *gorm.DB }

func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Create(ctx context.Context, entry *model.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *activityLogRepository) ListByAccount(ctx context.Context, accountID string, offset, limit int) ([]*model.ActivityLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var res []*model.ActivityLog
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}
