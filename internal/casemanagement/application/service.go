// Package application 案件管理与可疑交易报送应用层
package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/amlplatform/internal/casemanagement/domain"
	"github.com/wyfcoding/amlplatform/pkg/metrics"
	"github.com/wyfcoding/amlplatform/pkg/mq"
)

// TransactionLookup 查询报告所需的交易信息
type TransactionLookup interface {
	LookupTransaction(ctx context.Context, transactionID string) (*domain.TransactionInfo, error)
}

// Filer 监管报送端口
type Filer interface {
	File(ctx context.Context, r *domain.SuspiciousActivityReport) (string, error)
	Status(ctx context.Context, reference string) (string, error)
}

// AuditRecorder 审计记录端口
type AuditRecorder interface {
	Record(ctx context.Context, actor, action, entityType, entityID string, details map[string]any) error
}

// Options 可选依赖
type Options struct {
	Audit   AuditRecorder
	Metrics *metrics.Metrics
	Clock   func() time.Time
	NewID   func() string
}

// CaseService 案件管理服务
type CaseService struct {
	cases        domain.CaseRepository
	reports      domain.ReportRepository
	lookup       TransactionLookup
	filer        Filer
	strThreshold decimal.Decimal
	publisher    mq.EventPublisher
	audit        AuditRecorder
	metrics      *metrics.Metrics
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string
}

// NewCaseService 创建案件管理服务
func NewCaseService(
	cases domain.CaseRepository,
	reports domain.ReportRepository,
	lookup TransactionLookup,
	filer Filer,
	strThreshold decimal.Decimal,
	publisher mq.EventPublisher,
	logger *slog.Logger,
	opts Options,
) *CaseService {
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &CaseService{
		cases:        cases,
		reports:      reports,
		lookup:       lookup,
		filer:        filer,
		strThreshold: strThreshold,
		publisher:    publisher,
		audit:        opts.Audit,
		metrics:      opts.Metrics,
		logger:       logger,
		now:          opts.Clock,
		newID:        opts.NewID,
	}
}

type eventSource interface {
	GetDomainEvents() []domain.DomainEvent
	ClearDomainEvents()
}

func (s *CaseService) publishEvents(ctx context.Context, key string, src eventSource) {
	defer src.ClearDomainEvents()
	if s.publisher == nil {
		return
	}
	for _, event := range src.GetDomainEvents() {
		if err := s.publisher.Publish(ctx, event.EventName(), key, event); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish event",
				"event", event.EventName(),
				"key", key,
				"error", err)
		}
	}
}

func (s *CaseService) record(ctx context.Context, actor, action, entityType, entityID string, details map[string]any) {
	if s.audit == nil {
		return
	}
	if actor == "" {
		actor = "system"
	}
	if err := s.audit.Record(ctx, actor, action, entityType, entityID, details); err != nil {
		s.logger.ErrorContext(ctx, "failed to write audit entry",
			"action", action,
			"entity_id", entityID,
			"error", err)
	}
}

// nextNumber 生成带日期前缀的业务编号
func (s *CaseService) nextNumber(prefix string) string {
	id := strings.ToUpper(strings.ReplaceAll(s.newID(), "-", ""))
	if len(id) > 8 {
		id = id[:8]
	}
	return prefix + "-" + s.now().Format("20060102") + "-" + id
}

// IsNotFound 是否为资源不存在错误
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrCaseNotFound) || errors.Is(err, domain.ErrReportNotFound)
}
