// Package kafka 案件管理 Kafka 入口
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wyfcoding/amlplatform/internal/casemanagement/domain"
	"github.com/wyfcoding/amlplatform/pkg/metrics"
	"github.com/wyfcoding/amlplatform/pkg/mq"
)

// CaseOpener 由告警开案能力
type CaseOpener interface {
	OpenFromAlert(ctx context.Context, alert domain.AlertSnapshot) (*domain.Case, bool, error)
}

// EscalationConsumer 消费 aml.alert.escalated 并自动开案
type EscalationConsumer struct {
	opener  CaseOpener
	enabled bool
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEscalationConsumer 创建升级告警消费者，enabled 为 false 时仅确认消息
func NewEscalationConsumer(opener CaseOpener, enabled bool, m *metrics.Metrics, logger *slog.Logger) *EscalationConsumer {
	return &EscalationConsumer{opener: opener, enabled: enabled, metrics: m, logger: logger}
}

// Handle 处理一条升级告警消息
func (c *EscalationConsumer) Handle(ctx context.Context, msg kafka.Message) error {
	start := time.Now()

	if !c.enabled {
		c.metrics.ObserveMessage(msg.Topic, "skipped")
		return nil
	}

	var alert domain.AlertSnapshot
	if err := mq.Decode(msg, &alert); err != nil {
		c.metrics.ObserveMessage(msg.Topic, "invalid")
		return err
	}
	if alert.AlertID == "" {
		c.metrics.ObserveMessage(msg.Topic, "invalid")
		return fmt.Errorf("%w: escalated alert without alert_id", domain.ErrInvalidCaseInput)
	}

	kase, created, err := c.opener.OpenFromAlert(ctx, alert)
	if err != nil {
		c.metrics.ObserveMessage(msg.Topic, "error")
		return err
	}

	c.metrics.ObserveMessage(msg.Topic, "ok")
	c.logger.InfoContext(ctx, "escalated alert processed",
		"alert_id", alert.AlertID,
		"case_number", kase.CaseNumber,
		"created", created,
		"offset", msg.Offset,
		"duration", time.Since(start))
	return nil
}
