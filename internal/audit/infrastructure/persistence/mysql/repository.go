// Package mysql 审计仓储的 GORM 实现
package mysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/wyfcoding/amlplatform/internal/audit/domain"
)

type repository struct {
	db *gorm.DB
}

// NewRepository 创建审计仓储
func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Append(ctx context.Context, e *domain.Entry) error {
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (r *repository) List(ctx context.Context, filter domain.Filter) ([]*domain.Entry, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Entry{})
	if filter.EntityType != "" {
		q = q.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		q = q.Where("entity_id = ?", filter.EntityID)
	}
	if filter.Actor != "" {
		q = q.Where("actor = ?", filter.Actor)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []*domain.Entry
	q = q.Order("created_at desc, id desc")
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	err := q.Find(&list).Error
	return list, total, err
}

// Models 需要迁移的表
func Models() []any {
	return []any{&domain.Entry{}}
}
