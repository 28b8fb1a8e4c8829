package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
	"github.com/wyfcoding/amlplatform/pkg/mq"
)

// AlertService 告警管理服务
type AlertService struct {
	base
	alertRepo domain.AlertRepository
	risk      *RiskService
	sla       time.Duration
}

// NewAlertService 创建告警管理服务
func NewAlertService(
	alertRepo domain.AlertRepository,
	risk *RiskService,
	sla time.Duration,
	publisher mq.EventPublisher,
	logger *slog.Logger,
	opts Options,
) *AlertService {
	return &AlertService{
		base:      newBase(publisher, logger, opts),
		alertRepo: alertRepo,
		risk:      risk,
		sla:       sla,
	}
}

// AlertTransitionCommand 告警状态变更命令
type AlertTransitionCommand struct {
	AlertID string
	Actor   string
	// 分配对象（Assign）
	Assignee string
	// 升级原因或处理备注
	Notes string
}

// GetAlert 获取告警
func (s *AlertService) GetAlert(ctx context.Context, alertID string) (*domain.TransactionAlert, error) {
	return s.alertRepo.GetByAlertID(ctx, alertID)
}

// ListAlerts 分页查询告警
func (s *AlertService) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]*domain.TransactionAlert, int64, error) {
	return s.alertRepo.List(ctx, filter)
}

// AssignAlert 分配告警
func (s *AlertService) AssignAlert(ctx context.Context, cmd AlertTransitionCommand) (*domain.TransactionAlert, error) {
	return s.transition(ctx, cmd, "ALERT_ASSIGNED", func(a *domain.TransactionAlert, now time.Time) error {
		return a.Assign(cmd.Assignee, now)
	})
}

// StartReview 开始审查
func (s *AlertService) StartReview(ctx context.Context, cmd AlertTransitionCommand) (*domain.TransactionAlert, error) {
	return s.transition(ctx, cmd, "ALERT_REVIEW_STARTED", func(a *domain.TransactionAlert, now time.Time) error {
		return a.StartReview(cmd.Actor, now)
	})
}

// EscalateAlert 升级告警
func (s *AlertService) EscalateAlert(ctx context.Context, cmd AlertTransitionCommand) (*domain.TransactionAlert, error) {
	alert, err := s.transition(ctx, cmd, "ALERT_ESCALATED", func(a *domain.TransactionAlert, now time.Time) error {
		return a.Escalate(cmd.Notes, now)
	})
	if err == nil && s.metrics != nil {
		s.metrics.AlertsEscalated.WithLabelValues("manual").Inc()
	}
	return alert, err
}

// ResolveAlert 解决告警
func (s *AlertService) ResolveAlert(ctx context.Context, cmd AlertTransitionCommand) (*domain.TransactionAlert, error) {
	return s.transition(ctx, cmd, "ALERT_RESOLVED", func(a *domain.TransactionAlert, now time.Time) error {
		return a.Resolve(cmd.Notes, cmd.Actor, now)
	})
}

// MarkFalsePositive 标记误报
func (s *AlertService) MarkFalsePositive(ctx context.Context, cmd AlertTransitionCommand) (*domain.TransactionAlert, error) {
	return s.transition(ctx, cmd, "ALERT_FALSE_POSITIVE", func(a *domain.TransactionAlert, now time.Time) error {
		return a.MarkFalsePositive(cmd.Notes, cmd.Actor, now)
	})
}

// CloseAlert 关闭已解决告警
func (s *AlertService) CloseAlert(ctx context.Context, cmd AlertTransitionCommand) (*domain.TransactionAlert, error) {
	return s.transition(ctx, cmd, "ALERT_CLOSED", func(a *domain.TransactionAlert, now time.Time) error {
		return a.Close(cmd.Actor, now)
	})
}

func (s *AlertService) transition(ctx context.Context, cmd AlertTransitionCommand, action string, fn func(*domain.TransactionAlert, time.Time) error) (*domain.TransactionAlert, error) {
	start := time.Now()

	alert, err := s.alertRepo.GetByAlertID(ctx, cmd.AlertID)
	if err != nil {
		return nil, err
	}

	from := alert.Status
	if err := fn(alert, s.now()); err != nil {
		return nil, err
	}
	if err := s.alertRepo.Save(ctx, alert); err != nil {
		s.logger.ErrorContext(ctx, "failed to save alert",
			"alert_id", cmd.AlertID,
			"action", action,
			"error", err,
			"duration", time.Since(start))
		return nil, err
	}

	s.record(ctx, cmd.Actor, action, "transaction_alert", alert.AlertID, map[string]any{
		"from":  from,
		"to":    alert.Status,
		"notes": cmd.Notes,
	})
	s.publishEvents(ctx, alert.TransactionID, alert)

	if alert.IsTerminal() && s.risk != nil {
		if _, err := s.risk.RecalculateRisk(ctx, alert.OriginatorID); err != nil {
			s.logger.ErrorContext(ctx, "failed to recalculate customer risk",
				"customer_id", alert.OriginatorID,
				"error", err)
		}
	}

	s.logger.InfoContext(ctx, "alert transitioned",
		"alert_id", alert.AlertID,
		"action", action,
		"from", from,
		"to", alert.Status,
		"duration", time.Since(start))
	return alert, nil
}

// SweepEscalations 升级超过 SLA 的高危告警，返回升级条数
func (s *AlertService) SweepEscalations(ctx context.Context, batch int) (int, error) {
	start := time.Now()

	candidates, err := s.alertRepo.ListEscalationCandidates(ctx, batch)
	if err != nil {
		return 0, err
	}

	now := s.now()
	escalated := 0
	for _, alert := range candidates {
		if !alert.RequiresEscalation(now, s.sla) {
			continue
		}
		if err := alert.Escalate("escalation SLA exceeded", now); err != nil {
			continue
		}
		if err := s.alertRepo.Save(ctx, alert); err != nil {
			s.logger.ErrorContext(ctx, "failed to save escalated alert", "alert_id", alert.AlertID, "error", err)
			alert.ClearDomainEvents()
			continue
		}
		s.record(ctx, "system", "ALERT_ESCALATED", "transaction_alert", alert.AlertID, map[string]any{"reason": "sla"})
		s.publishEvents(ctx, alert.TransactionID, alert)
		if s.metrics != nil {
			s.metrics.AlertsEscalated.WithLabelValues("sla").Inc()
		}
		escalated++
	}

	s.logger.InfoContext(ctx, "escalation sweep finished",
		"candidates", len(candidates),
		"escalated", escalated,
		"duration", time.Since(start))
	return escalated, nil
}
