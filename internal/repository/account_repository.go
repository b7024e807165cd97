package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/content-factory/internal/model"
)

// AccountFilter 账号列表过滤
type AccountFilter struct {
	GroupID *string
	Status  *model.AccountStatus
	Offset  int
	Limit   int
}

// AccountRepository 账号仓储接口
type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	GetByID(ctx context.Context, id string) (*model.Account, error)
	GetByUsername(ctx context.Context, username string) (*model.Account, error)
	List(ctx context.Context, filter AccountFilter) ([]*model.Account, error)
	ListByGroupIDs(ctx context.Context, groupIDs []string) ([]*model.Account, error)
	Save(ctx context.Context, account *model.Account) error
	Delete(ctx context.Context, id string) error

	// IncrementPostsToday 原子自增当日计数并刷新 last_post_at
	IncrementPostsToday(ctx context.Context, id string, now time.Time) error
	// ResetDailyCounters 每日边界清零
	ResetDailyCounters(ctx context.Context) (int64, error)
	// CountByProxy 引用某代理的账号数
	CountByProxy(ctx context.Context, proxyID string) (int64, error)
	ListByProxy(ctx context.Context, proxyID string) ([]*model.Account, error)
	// AssignedProxyIDs 当前被占用的代理 id 集合
	AssignedProxyIDs(ctx context.Context) (map[string]struct{}, error)
}

type accountRepository struct{ db *gorm.DB }

func NewAccountRepository(db *gorm.DB) AccountRepository { return &accountRepository{db: db} }

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *accountRepository) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	var a model.Account
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *accountRepository) List(ctx context.Context, filter AccountFilter) ([]*model.Account, error) {
	q := r.db.WithContext(ctx).Model(&model.Account{})
	if filter.GroupID != nil {
		q = q.Where("group_id = ?", *filter.GroupID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	var res []*model.Account
	err := q.Order("created_at").Offset(filter.Offset).Limit(filter.Limit).Find(&res).Error
	return res, err
}

func (r *accountRepository) ListByGroupIDs(ctx context.Context, groupIDs []string) ([]*model.Account, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	var res []*model.Account
	err := r.db.WithContext(ctx).Where("group_id IN ?", groupIDs).Find(&res).Error
	return res, err
}

func (r *accountRepository) Save(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Save(account).Error
}

func (r *accountRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Account{}).Error
}

func (r *accountRepository) IncrementPostsToday(ctx context.Context, id string, now time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"posts_count_today": gorm.Expr("posts_count_today + 1"),
			"last_post_at":      now,
		}).Error
}

func (r *accountRepository) ResetDailyCounters(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Account{}).
		Where("posts_count_today > 0").
		Update("posts_count_today", 0)
	return res.RowsAffected, res.Error
}

func (r *accountRepository) CountByProxy(ctx context.Context, proxyID string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Account{}).Where("proxy_id = ?", proxyID).Count(&cnt).Error
	return cnt, err
}

func (r *accountRepository) ListByProxy(ctx context.Context, proxyID string) ([]*model.Account, error) {
	var res []*model.Account
	err := r.db.WithContext(ctx).Where("proxy_id = ?", proxyID).Find(&res).Error
	return res, err
}

func (r *accountRepository) AssignedProxyIDs(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Account{}).
		Where("proxy_id IS NOT NULL").
		Pluck("proxy_id", &ids).Error
	if err != nil {
		return nil, err
	}
	res := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		res[id] = struct{}{}
	}
	return res, nil
}
