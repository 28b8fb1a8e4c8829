package application

import (
	"context"
	"time"

	"github.com/wyfcoding/amlplatform/internal/casemanagement/domain"
)

// OpenCaseCommand 人工立案命令
type OpenCaseCommand struct {
	CaseType      domain.CaseType
	CustomerID    string
	TransactionID string
	Priority      string
	Summary       string
	AlertIDs      []string
	Actor         string
}

// CaseCommand 案件操作命令
type CaseCommand struct {
	CaseNumber string
	Actor      string
	// 分配对象（Assign）
	Assignee string
	// 结案决定（Close）
	Decision domain.Decision
	Notes    string
}

// OpenFromAlert 由升级告警开案，同一告警只开一次，返回案件及是否新建
func (s *CaseService) OpenFromAlert(ctx context.Context, alert domain.AlertSnapshot) (*domain.Case, bool, error) {
	start := time.Now()

	existing, err := s.cases.FindBySourceAlert(ctx, alert.AlertID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		s.logger.DebugContext(ctx, "case already opened for alert", "alert_id", alert.AlertID, "case_number", existing.CaseNumber)
		return existing, false, nil
	}

	c := domain.NewCaseFromAlert(s.nextNumber("CASE"), alert, s.strThreshold, s.now())
	if err := s.cases.Save(ctx, c); err != nil {
		// 并发消费同一告警时由唯一索引兜底
		if existing, findErr := s.cases.FindBySourceAlert(ctx, alert.AlertID); findErr == nil && existing != nil {
			return existing, false, nil
		}
		s.logger.ErrorContext(ctx, "failed to open case from alert",
			"alert_id", alert.AlertID,
			"error", err,
			"duration", time.Since(start))
		return nil, false, err
	}

	s.publishEvents(ctx, c.CaseNumber, c)
	s.record(ctx, "system", "CASE_OPENED", "case", c.CaseNumber, map[string]any{
		"alert_id":  alert.AlertID,
		"case_type": c.CaseType,
	})
	if s.metrics != nil {
		s.metrics.CasesOpened.Inc()
	}
	s.logger.InfoContext(ctx, "case opened from alert",
		"case_number", c.CaseNumber,
		"alert_id", alert.AlertID,
		"case_type", c.CaseType,
		"duration", time.Since(start))
	return c, true, nil
}

// OpenCase 人工立案
func (s *CaseService) OpenCase(ctx context.Context, cmd OpenCaseCommand) (*domain.Case, error) {
	start := time.Now()

	c, err := domain.NewManualCase(s.nextNumber("CASE"), cmd.CaseType, cmd.CustomerID, cmd.Priority, cmd.Summary, cmd.Actor, s.now())
	if err != nil {
		return nil, err
	}
	c.TransactionID = cmd.TransactionID
	for _, id := range cmd.AlertIDs {
		c.LinkAlert(id)
	}
	if err := s.cases.Save(ctx, c); err != nil {
		s.logger.ErrorContext(ctx, "failed to open case", "customer_id", cmd.CustomerID, "error", err, "duration", time.Since(start))
		return nil, err
	}

	s.publishEvents(ctx, c.CaseNumber, c)
	s.record(ctx, cmd.Actor, "CASE_OPENED", "case", c.CaseNumber, map[string]any{
		"case_type":   c.CaseType,
		"customer_id": c.CustomerID,
	})
	if s.metrics != nil {
		s.metrics.CasesOpened.Inc()
	}
	s.logger.InfoContext(ctx, "case opened", "case_number", c.CaseNumber, "case_type", c.CaseType, "duration", time.Since(start))
	return c, nil
}

// GetCase 获取案件
func (s *CaseService) GetCase(ctx context.Context, caseNumber string) (*domain.Case, error) {
	return s.cases.GetByCaseNumber(ctx, caseNumber)
}

// ListCases 分页查询案件
func (s *CaseService) ListCases(ctx context.Context, filter domain.CaseFilter) ([]*domain.Case, int64, error) {
	return s.cases.List(ctx, filter)
}

// AssignCase 分配调查员
func (s *CaseService) AssignCase(ctx context.Context, cmd CaseCommand) (*domain.Case, error) {
	return s.transition(ctx, cmd, "CASE_ASSIGNED", func(c *domain.Case, now time.Time) error {
		return c.Assign(cmd.Assignee, cmd.Actor, now)
	})
}

// SubmitForReview 提交复核
func (s *CaseService) SubmitForReview(ctx context.Context, cmd CaseCommand) (*domain.Case, error) {
	return s.transition(ctx, cmd, "CASE_SUBMITTED_FOR_REVIEW", func(c *domain.Case, now time.Time) error {
		return c.SubmitForReview(cmd.Actor, cmd.Notes, now)
	})
}

// EscalateCase 升级案件
func (s *CaseService) EscalateCase(ctx context.Context, cmd CaseCommand) (*domain.Case, error) {
	return s.transition(ctx, cmd, "CASE_ESCALATED", func(c *domain.Case, now time.Time) error {
		return c.Escalate(cmd.Actor, cmd.Notes, now)
	})
}

// HoldCase 挂起案件
func (s *CaseService) HoldCase(ctx context.Context, cmd CaseCommand) (*domain.Case, error) {
	return s.transition(ctx, cmd, "CASE_ON_HOLD", func(c *domain.Case, now time.Time) error {
		return c.Hold(cmd.Actor, cmd.Notes, now)
	})
}

// CloseCase 以决定结案
func (s *CaseService) CloseCase(ctx context.Context, cmd CaseCommand) (*domain.Case, error) {
	return s.transition(ctx, cmd, "CASE_CLOSED", func(c *domain.Case, now time.Time) error {
		return c.Close(cmd.Decision, cmd.Notes, cmd.Actor, now)
	})
}

// RejectCase 驳回案件
func (s *CaseService) RejectCase(ctx context.Context, cmd CaseCommand) (*domain.Case, error) {
	return s.transition(ctx, cmd, "CASE_REJECTED", func(c *domain.Case, now time.Time) error {
		return c.Reject(cmd.Notes, cmd.Actor, now)
	})
}

func (s *CaseService) transition(ctx context.Context, cmd CaseCommand, action string, fn func(*domain.Case, time.Time) error) (*domain.Case, error) {
	start := time.Now()

	c, err := s.cases.GetByCaseNumber(ctx, cmd.CaseNumber)
	if err != nil {
		return nil, err
	}
	from := c.Status
	if err := fn(c, s.now()); err != nil {
		return nil, err
	}
	if err := s.cases.Save(ctx, c); err != nil {
		s.logger.ErrorContext(ctx, "failed to save case",
			"case_number", cmd.CaseNumber,
			"action", action,
			"error", err,
			"duration", time.Since(start))
		return nil, err
	}

	s.publishEvents(ctx, c.CaseNumber, c)
	details := map[string]any{"from": from, "to": c.Status}
	if cmd.Assignee != "" {
		details["assignee"] = cmd.Assignee
	}
	if cmd.Decision != "" {
		details["decision"] = cmd.Decision
	}
	if cmd.Notes != "" {
		details["notes"] = cmd.Notes
	}
	s.record(ctx, cmd.Actor, action, "case", c.CaseNumber, details)
	s.logger.InfoContext(ctx, "case updated",
		"case_number", c.CaseNumber,
		"action", action,
		"status", c.Status,
		"duration", time.Since(start))
	return c, nil
}
