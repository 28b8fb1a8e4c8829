package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wyfcoding/amlplatform/internal/casemanagement/domain"
)

// DraftSARCommand 起草报告命令
type DraftSARCommand struct {
	CaseNumber string
	Narrative  string
	Indicators []string
	Actor      string
}

// DraftSAR 为案件起草 STR
func (s *CaseService) DraftSAR(ctx context.Context, cmd DraftSARCommand) (*domain.SuspiciousActivityReport, error) {
	start := time.Now()

	c, err := s.cases.GetByCaseNumber(ctx, cmd.CaseNumber)
	if err != nil {
		return nil, err
	}

	txn := domain.TransactionInfo{
		TransactionID:   c.TransactionID,
		Amount:          c.Amount,
		Currency:        c.Currency,
		TransactionDate: c.CreatedAt,
		Originator:      domain.PartyInfo{CustomerID: c.CustomerID},
	}
	if c.TransactionID != "" && s.lookup != nil {
		info, err := s.lookup.LookupTransaction(ctx, c.TransactionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load transaction %s for report: %w", c.TransactionID, err)
		}
		txn = *info
	}

	indicators := make([]string, 0, len(cmd.Indicators))
	for _, ind := range cmd.Indicators {
		if ind = strings.TrimSpace(ind); ind != "" {
			indicators = append(indicators, strings.ToUpper(ind))
		}
	}

	r, err := domain.DraftSAR(s.nextNumber("STR"), c, cmd.Narrative, indicators, txn, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if err := s.reports.Save(ctx, r); err != nil {
		s.logger.ErrorContext(ctx, "failed to save report draft", "case_number", c.CaseNumber, "error", err, "duration", time.Since(start))
		return nil, err
	}

	s.record(ctx, cmd.Actor, "SAR_DRAFTED", "report", r.ReportID, map[string]any{"case_number": c.CaseNumber})
	s.logger.InfoContext(ctx, "report drafted", "report_id", r.ReportID, "case_number", c.CaseNumber, "duration", time.Since(start))
	return r, nil
}

// SubmitSAR 构建 goAML 报文并提交，失败时报告置为 FAILED
func (s *CaseService) SubmitSAR(ctx context.Context, reportID, actor string) (*domain.SuspiciousActivityReport, error) {
	start := time.Now()

	r, err := s.reports.GetByReportID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !r.CanSubmit() {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrReportNotDraft, r.ReportID, r.Status)
	}

	ref, fileErr := s.filer.File(ctx, r)
	if fileErr != nil {
		r.MarkFailed(fileErr)
		if err := s.reports.Save(ctx, r); err != nil {
			s.logger.ErrorContext(ctx, "failed to save failed report", "report_id", reportID, "error", err)
		}
		s.observeSubmission("failed")
		s.record(ctx, actor, "SAR_SUBMISSION_FAILED", "report", r.ReportID, map[string]any{"error": fileErr.Error()})
		s.logger.ErrorContext(ctx, "report submission failed",
			"report_id", reportID,
			"error", fileErr,
			"duration", time.Since(start))
		return r, fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, fileErr)
	}

	r.MarkSubmitted(ref, actor, s.now())
	if err := s.reports.Save(ctx, r); err != nil {
		s.logger.ErrorContext(ctx, "failed to save submitted report",
			"report_id", reportID,
			"goaml_reference", ref,
			"error", err,
			"duration", time.Since(start))
		return nil, err
	}

	s.publishEvents(ctx, r.CaseNumber, r)
	s.observeSubmission("submitted")
	s.record(ctx, actor, "SAR_SUBMITTED", "report", r.ReportID, map[string]any{
		"case_number":     r.CaseNumber,
		"goaml_reference": ref,
	})
	s.logger.InfoContext(ctx, "report submitted",
		"report_id", reportID,
		"goaml_reference", ref,
		"duration", time.Since(start))
	return r, nil
}

// CheckSARStatus 向 goAML 查询已提交报告的状态
func (s *CaseService) CheckSARStatus(ctx context.Context, reportID string) (*domain.SuspiciousActivityReport, error) {
	r, err := s.reports.GetByReportID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if _, err := s.refreshStatus(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// PollSubmitted 批量刷新 SUBMITTED 报告的监管状态，返回状态变化条数
func (s *CaseService) PollSubmitted(ctx context.Context, batch int) (int, error) {
	list, err := s.reports.ListByStatus(ctx, domain.ReportSubmitted, batch)
	if err != nil {
		return 0, err
	}

	changed := 0
	var errs []error
	for _, r := range list {
		if ctx.Err() != nil {
			break
		}
		ok, err := s.refreshStatus(ctx, r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			changed++
		}
	}
	return changed, errors.Join(errs...)
}

func (s *CaseService) refreshStatus(ctx context.Context, r *domain.SuspiciousActivityReport) (bool, error) {
	if r.GoAMLReference == "" || r.Status == domain.ReportDraft || r.Status == domain.ReportFailed {
		return false, fmt.Errorf("%w: %s is %s", domain.ErrReportNotSubmitted, r.ReportID, r.Status)
	}

	status, err := s.filer.Status(ctx, r.GoAMLReference)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to query goAML status", "report_id", r.ReportID, "error", err)
		return false, fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, err)
	}

	before := r.RegulatorStatus
	changed := r.ApplyRegulatorStatus(status)
	if !changed && before == status {
		return false, nil
	}
	if err := s.reports.Save(ctx, r); err != nil {
		return false, err
	}
	if changed {
		s.record(ctx, "system", "SAR_STATUS_CHANGED", "report", r.ReportID, map[string]any{
			"status":           r.Status,
			"regulator_status": status,
		})
		s.logger.InfoContext(ctx, "report status changed", "report_id", r.ReportID, "status", r.Status)
	}
	return changed, nil
}

// GetReport 获取报告
func (s *CaseService) GetReport(ctx context.Context, reportID string) (*domain.SuspiciousActivityReport, error) {
	return s.reports.GetByReportID(ctx, reportID)
}

// ListReports 查询案件下的报告
func (s *CaseService) ListReports(ctx context.Context, caseNumber string) ([]*domain.SuspiciousActivityReport, error) {
	if _, err := s.cases.GetByCaseNumber(ctx, caseNumber); err != nil {
		return nil, err
	}
	return s.reports.ListByCase(ctx, caseNumber)
}

func (s *CaseService) observeSubmission(result string) {
	if s.metrics != nil {
		s.metrics.SARsSubmitted.WithLabelValues(result).Inc()
	}
}
