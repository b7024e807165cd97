package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/content-factory/internal/model"
)

// OperatorRepository 控制台用户仓储接口
type OperatorRepository interface {
	Create(ctx context.Context, op *model.Operator) error
	GetByID(ctx context.Context, id string) (*model.Operator, error)
	GetByUsername(ctx context.Context, username string) (*model.Operator, error)
	Save(ctx context.Context, op *model.Operator) error
}

type operatorRepository struct{ db *gorm.DB }

func NewOperatorRepository(db *gorm.DB) OperatorRepository { return &operatorRepository{db: db} }

func (r *operatorRepository) Create(ctx context.Context, op *model.Operator) error {
	return r.db.WithContext(ctx).Create(op).Error
}

func (r *operatorRepository) GetByID(ctx context.Context, id string) (*model.Operator, error) {
	var o model.Operator
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *operatorRepository) GetByUsername(ctx context.Context, username string) (*model.Operator, error) {
	var o model.Operator
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *operatorRepository) Save(ctx context.Context, op *model.Operator) error {
	return r.db.WithContext(ctx).Save(op).Error
}
