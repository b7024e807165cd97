package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/content-factory/internal/model"
)

// PostRepository 帖子仓储接口
type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	List(ctx context.Context, offset, limit int) ([]*model.Post, error)
	Save(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status model.PostStatus) error
}

type postRepository struct{ db *gorm.DB }

func NewPostRepository(db *gorm.DB) PostRepository { return &postRepository{db: db} }

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postRepository) List(ctx context.Context, offset, limit int) ([]*model.Post, error) {
	if limit <= 0 {
		limit = 100
	}
	var res []*model.Post
	err := r.db.WithContext(ctx).Order("created_at DESC").Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}

func (r *postRepository) Save(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Save(post).Error
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Post{}).Error
}

func (r *postRepository) UpdateStatus(ctx context.Context, id string, status model.PostStatus) error {
	return r.db.WithContext(ctx).Model(&model.Post{}).Where("id = ?", id).Update("status", status).Error
}
