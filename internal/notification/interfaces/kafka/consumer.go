// Package kafka 通知 Kafka 入口
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wyfcoding/amlplatform/internal/notification/application"
	"github.com/wyfcoding/amlplatform/internal/notification/domain"
	"github.com/wyfcoding/amlplatform/pkg/metrics"
	"github.com/wyfcoding/amlplatform/pkg/mq"
)

// 订阅的主题
const (
	TopicAlertCreated   = "aml.alert.created"
	TopicAlertEscalated = "aml.alert.escalated"
	TopicCaseOpened     = "aml.case.opened"
)

// Topics 通知消费者订阅的全部主题
var Topics = []string{TopicAlertCreated, TopicAlertEscalated, TopicCaseOpened}

// Notifier 通知发送能力
type Notifier interface {
	Notify(ctx context.Context, cmd application.NotifyCommand) (*domain.Notification, error)
}

// event 告警与案件事件的公共字段
type event struct {
	AlertID       string `json:"alert_id"`
	TransactionID string `json:"transaction_id"`
	OriginatorID  string `json:"originator_id"`
	AlertType     string `json:"alert_type"`
	Severity      string `json:"severity"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Reason        string `json:"reason"`
	CaseNumber    string `json:"case_number"`
	CaseType      string `json:"case_type"`
	Priority      string `json:"priority"`
	CustomerID    string `json:"customer_id"`
}

// EventConsumer 将告警与案件事件转换为通知
type EventConsumer struct {
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewEventConsumer 创建事件消费者
func NewEventConsumer(notifier Notifier, m *metrics.Metrics, logger *slog.Logger) *EventConsumer {
	return &EventConsumer{notifier: notifier, metrics: m, logger: logger}
}

// Handle 处理一条事件消息，未知主题直接确认
func (c *EventConsumer) Handle(ctx context.Context, msg kafka.Message) error {
	start := time.Now()

	var e event
	if err := mq.Decode(msg, &e); err != nil {
		c.metrics.ObserveMessage(msg.Topic, "invalid")
		return err
	}
	var data map[string]any
	if err := json.Unmarshal(msg.Value, &data); err != nil {
		c.metrics.ObserveMessage(msg.Topic, "invalid")
		return fmt.Errorf("failed to decode %s payload: %w", msg.Topic, err)
	}

	cmd, ok := build(msg.Topic, e)
	if !ok {
		c.metrics.ObserveMessage(msg.Topic, "skipped")
		c.logger.WarnContext(ctx, "unhandled notification topic", "topic", msg.Topic)
		return nil
	}
	cmd.Data = data

	n, err := c.notifier.Notify(ctx, cmd)
	if err != nil {
		c.metrics.ObserveMessage(msg.Topic, "error")
		return err
	}

	c.metrics.ObserveMessage(msg.Topic, "ok")
	c.logger.InfoContext(ctx, "event notification created",
		"topic", msg.Topic,
		"notification_id", n.NotificationID,
		"offset", msg.Offset,
		"duration", time.Since(start))
	return nil
}

func build(topic string, e event) (application.NotifyCommand, bool) {
	switch topic {
	case TopicAlertCreated:
		return application.NotifyCommand{
			Type:     domain.NotificationTypeAlertCreated,
			Topic:    topic,
			Title:    fmt.Sprintf("New %s alert", e.Severity),
			Message:  fmt.Sprintf("%s alert %s on transaction %s (%s %s)", e.AlertType, e.AlertID, e.TransactionID, e.Amount, e.Currency),
			Priority: e.Severity,
		}, true
	case TopicAlertEscalated:
		return application.NotifyCommand{
			Type:     domain.NotificationTypeAlertEscalated,
			Topic:    topic,
			Title:    fmt.Sprintf("Alert %s escalated", e.AlertID),
			Message:  fmt.Sprintf("%s alert on transaction %s escalated: %s", e.AlertType, e.TransactionID, e.Reason),
			Priority: e.Severity,
		}, true
	case TopicCaseOpened:
		return application.NotifyCommand{
			Type:     domain.NotificationTypeCaseOpened,
			Topic:    topic,
			Title:    fmt.Sprintf("Case %s opened", e.CaseNumber),
			Message:  fmt.Sprintf("%s case opened for customer %s", e.CaseType, e.CustomerID),
			Priority: e.Priority,
		}, true
	}
	return application.NotifyCommand{}, false
}
