package domain

import "context"

// CaseRepository 案件仓储
type CaseRepository interface {
	Save(ctx context.Context, c *Case) error
	GetByCaseNumber(ctx context.Context, caseNumber string) (*Case, error)
	// FindBySourceAlert 由该告警开立的案件
	FindBySourceAlert(ctx context.Context, alertID string) (*Case, error)
	List(ctx context.Context, filter CaseFilter) ([]*Case, int64, error)
}

// CaseFilter 案件查询条件
type CaseFilter struct {
	Status     CaseStatus
	CaseType   CaseType
	AssignedTo string
	CustomerID string
	Offset     int
	Limit      int
}

// ReportRepository 报告仓储
type ReportRepository interface {
	Save(ctx context.Context, r *SuspiciousActivityReport) error
	GetByReportID(ctx context.Context, reportID string) (*SuspiciousActivityReport, error)
	ListByCase(ctx context.Context, caseNumber string) ([]*SuspiciousActivityReport, error)
	ListByStatus(ctx context.Context, status ReportStatus, limit int) ([]*SuspiciousActivityReport, error)
}
