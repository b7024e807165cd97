package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/content-factory/internal/model"
)

// TranslationCacheRepository 译文缓存仓储接口
type TranslationCacheRepository interface {
	Get(ctx context.Context, textHash, from, to string) (*model.TranslationCache, error)
	Put(ctx context.Context, entry *model.TranslationCache) error
}

type translationCacheRepository struct{ db *gorm.DB }

func NewTranslationCacheRepository(db *gorm.DB) TranslationCacheRepository {
	return &translationCacheRepository{db: db}
}

func (r *translationCacheRepository) Get(ctx context.Context, textHash, from, to string) (*model.TranslationCache, error) {
	var t model.TranslationCache
	err := r.db.WithContext(ctx).
		Where("text_hash = ? AND language_from = ? AND language_to = ?", textHash, from, to).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *translationCacheRepository) Put(ctx context.Context, entry *model.TranslationCache) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entry).Error
}
