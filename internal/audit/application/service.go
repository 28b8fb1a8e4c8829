// Package application 审计应用服务
package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wyfcoding/amlplatform/internal/audit/domain"
)

// AuditService 审计服务
type AuditService struct {
	repo   domain.Repository
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewAuditService 创建审计服务
func NewAuditService(repo domain.Repository, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Record 追加审计条目
func (s *AuditService) Record(ctx context.Context, actor, action, entityType, entityID string, details map[string]any) error {
	e, err := domain.NewEntry(s.newID(), actor, action, entityType, entityID, details, s.now())
	if err != nil {
		return err
	}
	if err := s.repo.Append(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "failed to append audit entry",
			"action", action, "entity_type", entityType, "entity_id", entityID, "error", err)
		return err
	}
	s.logger.DebugContext(ctx, "audit entry recorded", "entry_id", e.EntryID, "action", action, "entity_id", entityID)
	return nil
}

// List 按实体分页查询审计条目
func (s *AuditService) List(ctx context.Context, filter domain.Filter) ([]*domain.Entry, int64, error) {
	return s.repo.List(ctx, filter)
}
