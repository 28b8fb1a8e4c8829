package domain

import "context"

// NotificationRepository 通知仓储
type NotificationRepository interface {
	Save(ctx context.Context, n *Notification) error
	GetByNotificationID(ctx context.Context, notificationID string) (*Notification, error)
	// ListUnread 接收组最近的未读通知，按创建时间倒序
	ListUnread(ctx context.Context, group string, limit int) ([]*Notification, error)
	// MarkRead 将接收组内指定通知置为已读，返回实际更新的 ID
	MarkRead(ctx context.Context, group string, ids []string) ([]string, error)
	List(ctx context.Context, filter NotificationFilter) ([]*Notification, int64, error)
}

// NotificationFilter 通知查询条件
type NotificationFilter struct {
	RecipientGroup string
	UnreadOnly     bool
	Type           NotificationType
	Offset         int
	Limit          int
}
