package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReportStatus 报告状态
type ReportStatus string

const (
	ReportDraft     ReportStatus = "DRAFT"
	ReportSubmitted ReportStatus = "SUBMITTED"
	ReportFailed    ReportStatus = "FAILED"
	ReportAccepted  ReportStatus = "ACCEPTED"
	ReportRejected  ReportStatus = "REJECTED"
)

var (
	ErrReportNotFound     = errors.New("suspicious activity report not found")
	ErrCaseNotReportable  = errors.New("case cannot be reported")
	ErrReportNotDraft     = errors.New("report already submitted")
	ErrReportNotSubmitted = errors.New("report has not been submitted")
	ErrSubmissionFailed   = errors.New("goAML submission failed")
)

// PartyInfo 报告参与方
type PartyInfo struct {
	CustomerID          string `json:"customer_id"`
	Type                string `json:"type"`
	FirstName           string `json:"first_name,omitempty"`
	LastName            string `json:"last_name,omitempty"`
	IDNumber            string `json:"id_number,omitempty"`
	CompanyName         string `json:"company_name,omitempty"`
	IncorporationNumber string `json:"incorporation_number,omitempty"`
}

// IsIndividual 是否为个人
func (p PartyInfo) IsIndividual() bool {
	return p.Type == "INDIVIDUAL"
}

// TransactionInfo 报告所需的交易信息
type TransactionInfo struct {
	TransactionID   string          `json:"transaction_id"`
	ReferenceNumber string          `json:"reference_number"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	TransactionDate time.Time       `json:"transaction_date"`
	Originator      PartyInfo       `json:"originator"`
	Beneficiary     PartyInfo       `json:"beneficiary"`
}

// SuspiciousActivityReport 可疑交易报告
type SuspiciousActivityReport struct {
	gorm.Model
	ReportID        string          `gorm:"column:report_id;type:varchar(64);uniqueIndex;not null" json:"report_id"`
	ReportCode      string          `gorm:"column:report_code;type:varchar(16);not null;default:'STR'" json:"report_code"`
	CaseNumber      string          `gorm:"column:case_number;type:varchar(64);index;not null" json:"case_number"`
	Narrative       string          `gorm:"column:narrative;type:text;not null" json:"narrative"`
	Indicators      []string        `gorm:"column:indicators;serializer:json;type:json" json:"indicators"`
	Transaction     TransactionInfo `gorm:"column:transaction_info;serializer:json;type:json" json:"transaction"`
	Status          ReportStatus    `gorm:"column:status;type:varchar(20);index;not null;default:'DRAFT'" json:"status"`
	GoAMLReference  string          `gorm:"column:goaml_reference;type:varchar(100);index" json:"goaml_reference,omitempty"`
	RegulatorStatus string          `gorm:"column:regulator_status;type:varchar(50)" json:"regulator_status,omitempty"`
	LastError       string          `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	DraftedBy       string          `gorm:"column:drafted_by;type:varchar(64)" json:"drafted_by"`
	SubmittedBy     string          `gorm:"column:submitted_by;type:varchar(64)" json:"submitted_by,omitempty"`
	SubmittedAt     *time.Time      `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	Attempts        int             `gorm:"column:attempts" json:"attempts"`

	domainEvents []DomainEvent `gorm:"-"`
}

// TableName 表名
func (SuspiciousActivityReport) TableName() string {
	return "suspicious_activity_reports"
}

// DraftSAR 为可报告案件起草 STR
func DraftSAR(reportID string, c *Case, narrative string, indicators []string, txn TransactionInfo, actor string) (*SuspiciousActivityReport, error) {
	if !c.Reportable() {
		return nil, fmt.Errorf("%w: %s is %s (%s)", ErrCaseNotReportable, c.CaseNumber, c.Status, c.Decision)
	}
	if strings.TrimSpace(narrative) == "" {
		return nil, fmt.Errorf("%w: narrative is required", ErrInvalidCaseInput)
	}
	if txn.Currency == "" {
		txn.Currency = c.Currency
	}
	if indicators == nil {
		indicators = make([]string, 0)
	}
	return &SuspiciousActivityReport{
		ReportID:    reportID,
		ReportCode:  "STR",
		CaseNumber:  c.CaseNumber,
		Narrative:   narrative,
		Indicators:  indicators,
		Transaction: txn,
		Status:      ReportDraft,
		DraftedBy:   actor,
	}, nil
}

// CanSubmit 草稿或失败的报告可提交
func (r *SuspiciousActivityReport) CanSubmit() bool {
	return r.Status == ReportDraft || r.Status == ReportFailed
}

// MarkSubmitted 记录 goAML 回执
func (r *SuspiciousActivityReport) MarkSubmitted(reference, actor string, now time.Time) {
	t := now
	r.Status = ReportSubmitted
	r.GoAMLReference = reference
	r.SubmittedBy = actor
	r.SubmittedAt = &t
	r.LastError = ""
	r.Attempts++
	r.domainEvents = append(r.domainEvents, &SARSubmittedEvent{
		ReportID:       r.ReportID,
		CaseNumber:     r.CaseNumber,
		GoAMLReference: reference,
		Timestamp:      now,
	})
}

// MarkFailed 记录提交失败
func (r *SuspiciousActivityReport) MarkFailed(cause error) {
	r.Status = ReportFailed
	r.LastError = cause.Error()
	r.Attempts++
}

// ApplyRegulatorStatus 根据 goAML 状态更新，返回状态是否变化
func (r *SuspiciousActivityReport) ApplyRegulatorStatus(status string) bool {
	r.RegulatorStatus = status
	next := r.Status
	switch strings.ToUpper(status) {
	case "ACCEPTED", "PROCESSED":
		next = ReportAccepted
	case "REJECTED":
		next = ReportRejected
	}
	changed := next != r.Status
	r.Status = next
	return changed
}

// GetDomainEvents 获取领域事件
func (r *SuspiciousActivityReport) GetDomainEvents() []DomainEvent {
	return r.domainEvents
}

// ClearDomainEvents 清空领域事件
func (r *SuspiciousActivityReport) ClearDomainEvents() {
	r.domainEvents = nil
}
