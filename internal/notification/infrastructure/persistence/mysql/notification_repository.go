// Package mysql 提供了通知仓储接口的 MySQL GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/amlplatform/internal/notification/domain"
)

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建通知仓储实例
func NewNotificationRepository(db *gorm.DB) domain.NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Save(ctx context.Context, n *domain.Notification) error {
	if err := r.db.WithContext(ctx).Save(n).Error; err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) GetByNotificationID(ctx context.Context, notificationID string) (*domain.Notification, error) {
	var n domain.Notification
	if err := r.db.WithContext(ctx).Where("notification_id = ?", notificationID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) ListUnread(ctx context.Context, group string, limit int) ([]*domain.Notification, error) {
	var list []*domain.Notification
	err := r.db.WithContext(ctx).
		Where("recipient_group = ? AND is_read = ?", group, false).
		Order("created_at desc").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, group string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}

	var marked []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Notification{}).
			Where("recipient_group = ? AND notification_id IN ? AND is_read = ?", group, ids, false).
			Pluck("notification_id", &marked).Error; err != nil {
			return err
		}
		if len(marked) == 0 {
			return nil
		}
		return tx.Model(&domain.Notification{}).
			Where("notification_id IN ?", marked).
			Updates(map[string]any{"is_read": true, "read_at": time.Now().UTC()}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	if marked == nil {
		marked = []string{}
	}
	return marked, nil
}

func (r *notificationRepository) List(ctx context.Context, filter domain.NotificationFilter) ([]*domain.Notification, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Notification{})
	if filter.RecipientGroup != "" {
		q = q.Where("recipient_group = ?", filter.RecipientGroup)
	}
	if filter.UnreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if filter.Type != "" {
		q = q.Where("notification_type = ?", filter.Type)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []*domain.Notification
	q = q.Order("created_at desc")
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
	return []any{&domain.Notification{}}
}
