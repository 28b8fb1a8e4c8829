// Package kafka 交易监控 Kafka 入口
package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wyfcoding/amlplatform/internal/monitoring/application"
	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
	"github.com/wyfcoding/amlplatform/pkg/metrics"
	"github.com/wyfcoding/amlplatform/pkg/mq"
)

// TransactionProcessor 交易提交与监控能力
type TransactionProcessor interface {
	SubmitAndMonitor(ctx context.Context, cmd application.SubmitTransactionCommand) (*application.MonitorResult, error)
	MonitorTransaction(ctx context.Context, transactionID string) (*application.MonitorResult, error)
}

// TransactionConsumer 消费交易主题并执行监控
type TransactionConsumer struct {
	processor TransactionProcessor
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewTransactionConsumer 创建交易消费者
func NewTransactionConsumer(processor TransactionProcessor, m *metrics.Metrics, logger *slog.Logger) *TransactionConsumer {
	return &TransactionConsumer{processor: processor, metrics: m, logger: logger}
}

// Handle 处理一条交易消息，交易已存在时仅补做监控
func (c *TransactionConsumer) Handle(ctx context.Context, msg kafka.Message) error {
	start := time.Now()

	var dto application.TransactionDTO
	if err := mq.Decode(msg, &dto); err != nil {
		c.metrics.ObserveMessage(msg.Topic, "invalid")
		return err
	}
	if dto.TransactionID == "" {
		dto.TransactionID = string(msg.Key)
	}

	res, err := c.processor.SubmitAndMonitor(ctx, dto.Command())
	if errors.Is(err, domain.ErrDuplicateTransaction) {
		res, err = c.processor.MonitorTransaction(ctx, dto.TransactionID)
	}
	if err != nil {
		c.metrics.ObserveMessage(msg.Topic, "error")
		return err
	}

	c.metrics.ObserveMessage(msg.Topic, "ok")
	c.logger.InfoContext(ctx, "transaction message processed",
		"transaction_id", res.TransactionID,
		"status", res.Status,
		"skipped", res.Skipped,
		"offset", msg.Offset,
		"duration", time.Since(start))
	return nil
}
