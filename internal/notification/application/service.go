// Package application 通知应用层
package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wyfcoding/amlplatform/internal/notification/domain"
	"github.com/wyfcoding/amlplatform/pkg/metrics"
)

// Pusher 实时推送端口
type Pusher interface {
	Push(n *domain.Notification) int
}

// Webhook 外部 webhook 端口
type Webhook interface {
	Send(ctx context.Context, n *domain.Notification) error
}

// Options 可选依赖
type Options struct {
	Pusher  Pusher
	Webhook Webhook
	Metrics *metrics.Metrics
	Clock   func() time.Time
	NewID   func() string
}

// NotificationService 通知服务
type NotificationService struct {
	repo         domain.NotificationRepository
	defaultGroup string
	pusher       Pusher
	webhook      Webhook
	metrics      *metrics.Metrics
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string
}

// NewNotificationService 创建通知服务
func NewNotificationService(repo domain.NotificationRepository, defaultGroup string, logger *slog.Logger, opts Options) *NotificationService {
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &NotificationService{
		repo:         repo,
		defaultGroup: defaultGroup,
		pusher:       opts.Pusher,
		webhook:      opts.Webhook,
		metrics:      opts.Metrics,
		logger:       logger,
		now:          opts.Clock,
		newID:        opts.NewID,
	}
}

// SetPusher 设置实时推送端口
func (s *NotificationService) SetPusher(p Pusher) {
	s.pusher = p
}

// DefaultGroup 默认接收组
func (s *NotificationService) DefaultGroup() string {
	return s.defaultGroup
}

// NotifyCommand 发送通知命令
type NotifyCommand struct {
	RecipientGroup string
	Type           domain.NotificationType
	Topic          string
	Title          string
	Message        string
	Priority       string
	Data           map[string]any
}

// Notify 持久化通知后推送到 WebSocket 与 webhook，推送失败不影响结果
func (s *NotificationService) Notify(ctx context.Context, cmd NotifyCommand) (*domain.Notification, error) {
	start := time.Now()

	group := cmd.RecipientGroup
	if group == "" {
		group = s.defaultGroup
	}
	n, err := domain.NewNotification(s.newID(), group, cmd.Type, cmd.Topic, cmd.Title, cmd.Message,
		strings.ToUpper(cmd.Priority), cmd.Data, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, n); err != nil {
		s.logger.ErrorContext(ctx, "failed to save notification", "type", cmd.Type, "error", err, "duration", time.Since(start))
		return nil, err
	}
	s.observe("store")

	if s.pusher != nil {
		if delivered := s.pusher.Push(n); delivered > 0 {
			s.observe("websocket")
		}
	}
	if s.webhook != nil {
		if err := s.webhook.Send(ctx, n); err != nil {
			s.logger.ErrorContext(ctx, "webhook delivery failed", "notification_id", n.NotificationID, "error", err)
		} else {
			s.observe("webhook")
		}
	}

	s.logger.InfoContext(ctx, "notification sent",
		"notification_id", n.NotificationID,
		"type", n.Type,
		"recipient_group", n.RecipientGroup,
		"duration", time.Since(start))
	return n, nil
}

// Pending 接收组最近的未读通知
func (s *NotificationService) Pending(ctx context.Context, group string, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.repo.ListUnread(ctx, group, limit)
}

// MarkRead 标记已读，返回实际更新的 ID
func (s *NotificationService) MarkRead(ctx context.Context, group string, ids []string) ([]string, error) {
	marked, err := s.repo.MarkRead(ctx, group, ids)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to mark notifications read", "recipient_group", group, "error", err)
		return nil, err
	}
	return marked, nil
}

// GetNotification 获取通知
func (s *NotificationService) GetNotification(ctx context.Context, id string) (*domain.Notification, error) {
	return s.repo.GetByNotificationID(ctx, id)
}

// ListNotifications 分页查询通知
func (s *NotificationService) ListNotifications(ctx context.Context, filter domain.NotificationFilter) ([]*domain.Notification, int64, error) {
	return s.repo.List(ctx, filter)
}

func (s *NotificationService) observe(channel string) {
	if s.metrics != nil {
		s.metrics.NotificationsSent.WithLabelValues(channel).Inc()
	}
}
