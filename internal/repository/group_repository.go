package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/content-factory/internal/model"
)

// GroupRepository 分组仓储接口
type GroupRepository interface {
	Create(ctx context.Context, group *model.Group) error
	GetByID(ctx context.Context, id string) (*model.Group, error)
	GetByName(ctx context.Context, name string) (*model.Group, error)
	List(ctx context.Context, offset, limit int) ([]*model.Group, error)
	Save(ctx context.Context, group *model.Group) error
	Delete(ctx context.Context, id string) error
	// RecountAccounts 重算冗余计数
	RecountAccounts(ctx context.Context, id string) error
}

type groupRepository struct{ db *gorm.DB }

func NewGroupRepository(db *gorm.DB) GroupRepository { return &groupRepository{db: db} }

func (r *groupRepository) Create(ctx context.Context, group *model.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *groupRepository) GetByID(ctx context.Context, id string) (*model.Group, error) {
	var g model.Group
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *groupRepository) GetByName(ctx context.Context, name string) (*model.Group, error) {
	var g model.Group
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *groupRepository) List(ctx context.Context, offset, limit int) ([]*model.Group, error) {
	if limit <= 0 {
		limit = 100
	}
	var res []*model.Group
	err := r.db.WithContext(ctx).Order("created_at").Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}

func (r *groupRepository) Save(ctx context.Context, group *model.Group) error {
	return r.db.WithContext(ctx).Save(group).Error
}

func (r *groupRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Group{}).Error
}

func (r *groupRepository) RecountAccounts(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.Group{}).
		Where("id = ?", id).
		Update("accounts_count", r.db.Model(&model.Account{}).Select("COUNT(*)").Where("group_id = ?", id)).
		Error
}
