// Package domain 通知服务的领域模型
package domain

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// NotificationType 通知类型
type NotificationType string

const (
	NotificationTypeAlertCreated   NotificationType = "ALERT_CREATED"
	NotificationTypeAlertEscalated NotificationType = "ALERT_ESCALATED"
	NotificationTypeCaseOpened     NotificationType = "CASE_OPENED"
	NotificationTypeSystem         NotificationType = "SYSTEM"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidNotification  = errors.New("invalid notification")
)

// Notification 通知实体
type Notification struct {
	gorm.Model
	// NotificationID 通知 ID
	NotificationID string `gorm:"column:notification_id;type:varchar(64);uniqueIndex;not null" json:"notification_id"`
	// RecipientGroup 接收组
	RecipientGroup string `gorm:"column:recipient_group;type:varchar(64);index:idx_notification_unread;not null" json:"recipient_group"`
	Title          string `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Message        string `gorm:"column:message;type:text" json:"message"`
	// Type 通知类型
	Type     NotificationType `gorm:"column:notification_type;type:varchar(32);index;not null" json:"notification_type"`
	Priority string           `gorm:"column:priority;type:varchar(16);not null;default:'MEDIUM'" json:"priority"`
	// Topic 来源主题，供 WebSocket 订阅过滤
	Topic  string         `gorm:"column:topic;type:varchar(128);index" json:"topic"`
	Data   map[string]any `gorm:"column:data;serializer:json;type:json" json:"data"`
	IsRead bool           `gorm:"column:is_read;index:idx_notification_unread;not null;default:false" json:"is_read"`
	ReadAt *time.Time     `gorm:"column:read_at" json:"read_at,omitempty"`
}

// TableName 表名
func (Notification) TableName() string {
	return "notifications"
}

// NewNotification 创建未读通知
func NewNotification(id, group string, typ NotificationType, topic, title, message, priority string, data map[string]any, now time.Time) (*Notification, error) {
	if group == "" || title == "" {
		return nil, fmt.Errorf("%w: recipient group and title are required", ErrInvalidNotification)
	}
	if priority == "" {
		priority = "MEDIUM"
	}
	if data == nil {
		data = map[string]any{}
	}
	n := &Notification{
		NotificationID: id,
		RecipientGroup: group,
		Title:          title,
		Message:        message,
		Type:           typ,
		Priority:       priority,
		Topic:          topic,
		Data:           data,
	}
	n.CreatedAt = now
	return n, nil
}

// MarkRead 标记已读
func (n *Notification) MarkRead(now time.Time) bool {
	if n.IsRead {
		return false
	}
	t := now
	n.IsRead = true
	n.ReadAt = &t
	return true
}

// View 推送给客户端的通知结构
type View struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Message          string           `json:"message"`
	NotificationType NotificationType `json:"notification_type"`
	Priority         string           `json:"priority"`
	Topic            string           `json:"topic,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	Data             map[string]any   `json:"data"`
}

// View 转换为推送结构
func (n *Notification) View() View {
	return View{
		ID:               n.NotificationID,
		Title:            n.Title,
		Message:          n.Message,
		NotificationType: n.Type,
		Priority:         n.Priority,
		Topic:            n.Topic,
		CreatedAt:        n.CreatedAt,
		Data:             n.Data,
	}
}
