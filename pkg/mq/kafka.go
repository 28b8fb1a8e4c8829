// Package mq 提供 Kafka 生产者与消费者封装，支持重试与死信队列
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// HeaderEventName 消息头中的事件名
const HeaderEventName = "event_name"

// Config Kafka 配置
type Config struct {
	Brokers        []string
	GroupID        string
	SessionTimeout int
	MaxRetries     int
	RetryBackoff   int
}

// MessageWriter kafka.Writer 的最小接口
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageReader kafka.Reader 的最小接口
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer Kafka 生产者
type Producer struct {
	writer MessageWriter
	logger *slog.Logger
}

// NewProducer 创建 Kafka 生产者
func NewProducer(cfg Config, logger *slog.Logger) *Producer {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Compression:            kafka.Gzip,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            retries,
		WriteBackoffMin:        time.Duration(cfg.RetryBackoff) * time.Millisecond,
		WriteBackoffMax:        time.Duration(cfg.RetryBackoff*10) * time.Millisecond,
	}
	logger.Info("kafka producer created", "brokers", cfg.Brokers)
	return NewProducerWithWriter(writer, logger)
}

// NewProducerWithWriter 使用已有 writer 创建生产者
func NewProducerWithWriter(w MessageWriter, logger *slog.Logger) *Producer {
	return &Producer{writer: w, logger: logger}
}

// Publish 以 JSON 发布一条消息
func (p *Producer) Publish(ctx context.Context, topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   data,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: HeaderEventName, Value: []byte(topic)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish kafka message", "topic", topic, "key", key, "error", err)
		return err
	}
	p.logger.DebugContext(ctx, "kafka message published", "topic", topic, "key", key)
	return nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	return p.writer.Close()
}

// HandlerFunc 消息处理函数
type HandlerFunc func(ctx context.Context, msg kafka.Message) error

// Consumer Kafka 消费者，失败消息重试后转入死信主题
type Consumer struct {
	reader     MessageReader
	deadLetter *DeadLetterQueue
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// NewConsumer 创建订阅 topics 的消费者
func NewConsumer(cfg Config, topics []string, dlq *DeadLetterQueue, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		GroupTopics:    topics,
		SessionTimeout: time.Duration(cfg.SessionTimeout) * time.Second,
		StartOffset:    kafka.FirstOffset,
		MaxBytes:       10e6,
	})
	logger.Info("kafka consumer created", "brokers", cfg.Brokers, "topics", topics, "group_id", cfg.GroupID)
	return NewConsumerWithReader(reader, cfg, dlq, logger)
}

// NewConsumerWithReader 使用已有 reader 创建消费者
func NewConsumerWithReader(r MessageReader, cfg Config, dlq *DeadLetterQueue, logger *slog.Logger) *Consumer {
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Consumer{
		reader:     r,
		deadLetter: dlq,
		maxRetries: retries,
		backoff:    time.Duration(cfg.RetryBackoff) * time.Millisecond,
		logger:     logger,
	}
}

// Run 持续拉取消息直到 ctx 取消
func (c *Consumer) Run(ctx context.Context, handler HandlerFunc) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		if err := c.handle(ctx, msg, handler); err != nil {
			c.logger.ErrorContext(ctx, "message handling failed", "topic", msg.Topic, "offset", msg.Offset, "error", err)
			if c.deadLetter != nil {
				if dlqErr := c.deadLetter.Send(ctx, msg, err); dlqErr != nil {
					c.logger.ErrorContext(ctx, "failed to send message to dead letter", "topic", msg.Topic, "error", dlqErr)
				}
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.ErrorContext(ctx, "failed to commit message", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, handler HandlerFunc) error {
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		if attempt < c.maxRetries && c.backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt+1)):
			}
		}
	}
	return err
}

// Close 关闭消费者
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DeadLetterQueue 死信队列
type DeadLetterQueue struct {
	producer *Producer
	topic    string
}

// NewDeadLetterQueue 创建死信队列
func NewDeadLetterQueue(producer *Producer, topic string) *DeadLetterQueue {
	return &DeadLetterQueue{producer: producer, topic: topic}
}

// DeadLetter 死信消息体
type DeadLetter struct {
	OriginalTopic  string    `json:"original_topic"`
	OriginalKey    string    `json:"original_key"`
	OriginalValue  string    `json:"original_value"`
	OriginalOffset int64     `json:"original_offset"`
	FailureError   string    `json:"failure_error"`
	FailedAt       time.Time `json:"failed_at"`
}

// Send 发送消息到死信队列
func (d *DeadLetterQueue) Send(ctx context.Context, msg kafka.Message, cause error) error {
	return d.producer.Publish(ctx, d.topic, string(msg.Key), DeadLetter{
		OriginalTopic:  msg.Topic,
		OriginalKey:    string(msg.Key),
		OriginalValue:  string(msg.Value),
		OriginalOffset: msg.Offset,
		FailureError:   cause.Error(),
		FailedAt:       time.Now().UTC(),
	})
}

// Decode 将消息值解析为 JSON
func Decode(msg kafka.Message, dest any) error {
	if err := json.Unmarshal(msg.Value, dest); err != nil {
		return fmt.Errorf("failed to decode %s message: %w", msg.Topic, err)
	}
	return nil
}

// EventPublisher 领域事件发布接口
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

var _ EventPublisher = (*Producer)(nil)
