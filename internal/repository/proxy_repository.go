package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/content-factory/internal/model"
)

// ProxyRepository 代理仓储接口
type ProxyRepository interface {
	Create(ctx context.Context, proxy *model.Proxy) error
	GetByID(ctx context.Context, id string) (*model.Proxy, error)
	GetByURL(ctx context.Context, url string) (*model.Proxy, error)
	List(ctx context.Context, status *model.ProxyStatus, offset, limit int) ([]*model.Proxy, error)
	// ListActive 按 success_rate 降序、last_assigned_at 升序（NULL 最优先）
	ListActive(ctx context.Context) ([]*model.Proxy, error)
	Save(ctx context.Context, proxy *model.Proxy) error
	Delete(ctx context.Context, id string) error
}

type proxyRepository struct{ db *gorm.DB }

func NewProxyRepository(db *gorm.DB) ProxyRepository { return &proxyRepository{db: db} }

func (r *proxyRepository) Create(ctx context.Context, proxy *model.Proxy) error {
	return r.db.WithContext(ctx).Create(proxy).Error
}

func (r *proxyRepository) GetByID(ctx context.Context, id string) (*model.Proxy, error) {
	var p model.Proxy
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *proxyRepository) GetByURL(ctx context.Context, url string) (*model.Proxy, error) {
	var p model.Proxy
	if err := r.db.WithContext(ctx).Where("url = ?", url).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *proxyRepository) List(ctx context.Context, status *model.ProxyStatus, offset, limit int) ([]*model.Proxy, error) {
	q := r.db.WithContext(ctx).Model(&model.Proxy{})
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if limit <= 0 {
		limit = 100
	}
	var res []*model.Proxy
	err := q.Order("created_at").Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}

func (r *proxyRepository) ListActive(ctx context.Context) ([]*model.Proxy, error) {
	var res []*model.Proxy
	err := r.db.WithContext(ctx).
		Where("status = ?", model.ProxyStatusActive).
		Order("success_rate DESC").
		Order("last_assigned_at ASC NULLS FIRST").
		Find(&res).Error
	return res, err
}

func (r *proxyRepository) Save(ctx context.Context, proxy *model.Proxy) error {
	return r.db.WithContext(ctx).Save(proxy).Error
}

func (r *proxyRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Proxy{}).Error
}
