package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
)

type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository 创建告警仓储
func NewAlertRepository(db *gorm.DB) domain.AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) Save(ctx context.Context, alert *domain.TransactionAlert) error {
	if alert.ID == 0 {
		var existing domain.TransactionAlert
		if err := r.db.WithContext(ctx).Select("id", "created_at").
			Where("alert_id = ?", alert.AlertID).
			First(&existing).Error; err == nil {
			alert.ID = existing.ID
			alert.CreatedAt = existing.CreatedAt
		}
	}
	return r.db.WithContext(ctx).Save(alert).Error
}

func (r *alertRepository) GetByAlertID(ctx context.Context, alertID string) (*domain.TransactionAlert, error) {
	var alert domain.TransactionAlert
	if err := r.db.WithContext(ctx).Where("alert_id = ?", alertID).First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAlertNotFound
		}
		return nil, err
	}
	return &alert, nil
}

func (r *alertRepository) ExistsForRuleSince(ctx context.Context, originatorID, ruleID string, since time.Time) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.TransactionAlert{}).
		Where("originator_id = ? AND rule_id = ? AND created_at >= ?", originatorID, ruleID, since).
		Count(&n).Error
	return n > 0, err
}

func (r *alertRepository) ListOpenByOriginatorSince(ctx context.Context, originatorID string, since time.Time) ([]*domain.TransactionAlert, error) {
	var alerts []*domain.TransactionAlert
	err := r.db.WithContext(ctx).
		Where("originator_id = ? AND created_at >= ?", originatorID, since).
		Where("status IN ?", domain.OpenAlertStatuses).
		Find(&alerts).Error
	return alerts, err
}

func (r *alertRepository) ListEscalationCandidates(ctx context.Context, limit int) ([]*domain.TransactionAlert, error) {
	var alerts []*domain.TransactionAlert
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_escalated = ?", domain.AlertStatusNew, false).
		Where("severity IN ?", []domain.Severity{domain.SeverityHigh, domain.SeverityCritical}).
		Order("created_at asc").
		Limit(limit).
		Find(&alerts).Error
	return alerts, err
}

func (r *alertRepository) List(ctx context.Context, filter domain.AlertFilter) ([]*domain.TransactionAlert, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.TransactionAlert{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Severity != "" {
		q = q.Where("severity = ?", filter.Severity)
	}
	if filter.AlertType != "" {
		q = q.Where("alert_type = ?", filter.AlertType)
	}
	if filter.TransactionID != "" {
		q = q.Where("transaction_id = ?", filter.TransactionID)
	}
	if filter.OriginatorID != "" {
		q = q.Where("originator_id = ?", filter.OriginatorID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var alerts []*domain.TransactionAlert
	err := page(q.Order("created_at desc"), filter.Offset, filter.Limit).Find(&alerts).Error
	return alerts, total, err
}
