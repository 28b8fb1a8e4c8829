// Package application 交易监控应用层
package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
	"github.com/wyfcoding/amlplatform/pkg/metrics"
	"github.com/wyfcoding/amlplatform/pkg/mq"
)

// WatchlistScreener 名单筛查端口，返回命中条数
type WatchlistScreener interface {
	ScreenTransactionParties(ctx context.Context, transactionID string, parties []domain.Party) (int, error)
}

// AuditRecorder 审计记录端口
type AuditRecorder interface {
	Record(ctx context.Context, actor, action, entityType, entityID string, details map[string]any) error
}

// Clock 时间源
type Clock func() time.Time

// Options 可选依赖
type Options struct {
	Cooldown domain.CooldownGate
	Screener WatchlistScreener
	Audit    AuditRecorder
	Metrics  *metrics.Metrics
	Clock    Clock
	NewID    func() string
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = func() time.Time { return time.Now().UTC() }
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// eventSource 携带领域事件的聚合
type eventSource interface {
	GetDomainEvents() []domain.DomainEvent
	ClearDomainEvents()
}

type base struct {
	publisher mq.EventPublisher
	audit     AuditRecorder
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       Clock
	newID     func() string
}

func newBase(publisher mq.EventPublisher, logger *slog.Logger, opts Options) base {
	opts = opts.withDefaults()
	return base{
		publisher: publisher,
		audit:     opts.Audit,
		metrics:   opts.Metrics,
		logger:    logger,
		now:       opts.Clock,
		newID:     opts.NewID,
	}
}

// publishEvents 发布并清空聚合上的领域事件
func (b *base) publishEvents(ctx context.Context, key string, sources ...eventSource) {
	for _, src := range sources {
		for _, event := range src.GetDomainEvents() {
			b.publish(ctx, key, event)
		}
		src.ClearDomainEvents()
	}
}

func (b *base) publish(ctx context.Context, key string, event domain.DomainEvent) {
	if b.publisher == nil {
		return
	}
	if err := b.publisher.Publish(ctx, event.EventName(), key, event); err != nil {
		b.logger.ErrorContext(ctx, "failed to publish event",
			"event", event.EventName(),
			"key", key,
			"error", err)
	}
}

func (b *base) record(ctx context.Context, actor, action, entityType, entityID string, details map[string]any) {
	if b.audit == nil {
		return
	}
	if actor == "" {
		actor = "system"
	}
	if err := b.audit.Record(ctx, actor, action, entityType, entityID, details); err != nil {
		b.logger.ErrorContext(ctx, "failed to write audit entry",
			"action", action,
			"entity_id", entityID,
			"error", err)
	}
}

// IsNotFound 是否为资源不存在错误
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrTransactionNotFound) ||
		errors.Is(err, domain.ErrRuleNotFound) ||
		errors.Is(err, domain.ErrAlertNotFound) ||
		errors.Is(err, domain.ErrProfileNotFound)
}
