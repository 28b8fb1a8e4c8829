// Package mysql 案件与报告的 GORM 仓储
package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/wyfcoding/amlplatform/internal/casemanagement/domain"
)

type caseRepository struct {
	db *gorm.DB
}

// NewCaseRepository 创建案件仓储
func NewCaseRepository(db *gorm.DB) domain.CaseRepository {
	return &caseRepository{db: db}
}

func (r *caseRepository) Save(ctx context.Context, c *domain.Case) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *caseRepository) GetByCaseNumber(ctx context.Context, caseNumber string) (*domain.Case, error) {
	var c domain.Case
	if err := r.db.WithContext(ctx).Where("case_number = ?", caseNumber).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCaseNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindBySourceAlert 未找到时返回 nil, nil
func (r *caseRepository) FindBySourceAlert(ctx context.Context, alertID string) (*domain.Case, error) {
	var c domain.Case
	if err := r.db.WithContext(ctx).Where("source_alert_id = ?", alertID).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *caseRepository) List(ctx context.Context, filter domain.CaseFilter) ([]*domain.Case, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Case{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CaseType != "" {
		q = q.Where("case_type = ?", filter.CaseType)
	}
	if filter.AssignedTo != "" {
		q = q.Where("assigned_to = ?", filter.AssignedTo)
	}
	if filter.CustomerID != "" {
		q = q.Where("customer_id = ?", filter.CustomerID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var cases []*domain.Case
	q = q.Order("created_at desc")
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	err := q.Find(&cases).Error
	return cases, total, err
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository 创建报告仓储
func NewReportRepository(db *gorm.DB) domain.ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Save(ctx context.Context, rep *domain.SuspiciousActivityReport) error {
	return r.db.WithContext(ctx).Save(rep).Error
}

func (r *reportRepository) GetByReportID(ctx context.Context, reportID string) (*domain.SuspiciousActivityReport, error) {
	var rep domain.SuspiciousActivityReport
	if err := r.db.WithContext(ctx).Where("report_id = ?", reportID).First(&rep).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrReportNotFound
		}
		return nil, err
	}
	return &rep, nil
}

func (r *reportRepository) ListByCase(ctx context.Context, caseNumber string) ([]*domain.SuspiciousActivityReport, error) {
	var reports []*domain.SuspiciousActivityReport
	err := r.db.WithContext(ctx).Where("case_number = ?", caseNumber).Order("created_at desc").Find(&reports).Error
	return reports, err
}

func (r *reportRepository) ListByStatus(ctx context.Context, status domain.ReportStatus, limit int) ([]*domain.SuspiciousActivityReport, error) {
	var reports []*domain.SuspiciousActivityReport
	q := r.db.WithContext(ctx).Where("status = ?", status).Order("submitted_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&reports).Error
	return reports, err
}

// Models 需要迁移的表
func Models() []any {
	return []any{&domain.Case{}, &domain.SuspiciousActivityReport{}}
}
