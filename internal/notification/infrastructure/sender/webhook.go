// Package sender 通知外发渠道
package sender

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wyfcoding/amlplatform/internal/notification/domain"
)

// WebhookPayload webhook 消息体
type WebhookPayload struct {
	Text         string      `json:"text"`
	Notification domain.View `json:"notification"`
}

// WebhookSender 以 JSON POST 推送通知
type WebhookSender struct {
	client *resty.Client
	url    string
	logger *slog.Logger
}

// NewWebhookSender 创建 webhook 发送器，失败时重试两次
func NewWebhookSender(url string, timeout time.Duration, logger *slog.Logger) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	return &WebhookSender{client: client, url: url, logger: logger}
}

// Send 推送一条通知
func (s *WebhookSender) Send(ctx context.Context, n *domain.Notification) error {
	start := time.Now()

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(WebhookPayload{
			Text:         fmt.Sprintf("*%s*\n%s", n.Title, n.Message),
			Notification: n.View(),
		}).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	s.logger.DebugContext(ctx, "webhook delivered",
		"notification_id", n.NotificationID,
		"status", resp.StatusCode(),
		"duration", time.Since(start))
	return nil
}
