// Package domain 审计日志领域模型
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidEntry = errors.New("invalid audit entry")

// Entry 审计条目，只追加不修改
type Entry struct {
	ID         uint           `gorm:"primarykey" json:"-"`
	EntryID    string         `gorm:"column:entry_id;type:varchar(64);uniqueIndex;not null" json:"id"`
	Actor      string         `gorm:"column:actor;type:varchar(64);index;not null" json:"actor"`
	Action     string         `gorm:"column:action;type:varchar(64);not null" json:"action"`
	EntityType string         `gorm:"column:entity_type;type:varchar(32);index:idx_audit_entity;not null" json:"entity_type"`
	EntityID   string         `gorm:"column:entity_id;type:varchar(64);index:idx_audit_entity;not null" json:"entity_id"`
	Details    map[string]any `gorm:"column:details;serializer:json;type:json" json:"details"`
	CreatedAt  time.Time      `gorm:"column:created_at;index" json:"created_at"`
}

// TableName 表名
func (Entry) TableName() string {
	return "audit_entries"
}

// NewEntry 创建审计条目，操作人缺省为 system
func NewEntry(id, actor, action, entityType, entityID string, details map[string]any, now time.Time) (*Entry, error) {
	if action == "" || entityType == "" || entityID == "" {
		return nil, fmt.Errorf("%w: action and entity are required", ErrInvalidEntry)
	}
	if actor == "" {
		actor = "system"
	}
	if details == nil {
		details = map[string]any{}
	}
	return &Entry{
		EntryID:    id,
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		CreatedAt:  now,
	}, nil
}

// Filter 审计查询条件
type Filter struct {
	EntityType string
	EntityID   string
	Actor      string
	Offset     int
	Limit      int
}

// Repository 审计仓储，不提供更新与删除
type Repository interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) ([]*Entry, int64, error)
}
