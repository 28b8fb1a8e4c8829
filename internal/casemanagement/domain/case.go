// Package domain 案件与可疑交易报告领域模型
package domain

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CaseType 案件类型
type CaseType string

const (
	CaseTypeTransaction   CaseType = "TRANSACTION"
	CaseTypeSAR           CaseType = "SAR"
	CaseTypeInvestigation CaseType = "INVESTIGATION"
)

// CaseStatus 案件状态
type CaseStatus string

const (
	CaseOpen          CaseStatus = "OPEN"
	CaseInProgress    CaseStatus = "IN_PROGRESS"
	CasePendingReview CaseStatus = "PENDING_REVIEW"
	CaseEscalated     CaseStatus = "ESCALATED"
	CaseOnHold        CaseStatus = "ON_HOLD"
	CaseClosed        CaseStatus = "CLOSED"
	CaseRejected      CaseStatus = "REJECTED"
)

// Decision 结案决定
type Decision string

const (
	DecisionFileSAR       Decision = "FILE_SAR"
	DecisionNoAction      Decision = "NO_ACTION"
	DecisionFalsePositive Decision = "FALSE_POSITIVE"
)

// Valid 是否为已知决定
func (d Decision) Valid() bool {
	return d == DecisionFileSAR || d == DecisionNoAction || d == DecisionFalsePositive
}

var (
	ErrCaseNotFound     = errors.New("case not found")
	ErrCaseClosed       = errors.New("case is closed")
	ErrInvalidCaseInput = errors.New("invalid case input")
)

// AlertSnapshot 升级告警的快照，来自 aml.alert.escalated 事件
type AlertSnapshot struct {
	AlertID       string          `json:"alert_id"`
	TransactionID string          `json:"transaction_id"`
	OriginatorID  string          `json:"originator_id"`
	AlertType     string          `json:"alert_type"`
	Severity      string          `json:"severity"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reason        string          `json:"reason"`
}

// CaseHistoryEntry 案件操作记录
type CaseHistoryEntry struct {
	Action string     `json:"action"`
	From   CaseStatus `json:"from,omitempty"`
	To     CaseStatus `json:"to,omitempty"`
	Actor  string     `json:"actor"`
	Notes  string     `json:"notes,omitempty"`
	At     time.Time  `json:"at"`
}

// Case 调查案件聚合根
type Case struct {
	gorm.Model
	CaseNumber    string             `gorm:"column:case_number;type:varchar(64);uniqueIndex;not null" json:"case_number"`
	CaseType      CaseType           `gorm:"column:case_type;type:varchar(32);index;not null" json:"case_type"`
	Status        CaseStatus         `gorm:"column:status;type:varchar(20);index;not null;default:'OPEN'" json:"status"`
	Priority      string             `gorm:"column:priority;type:varchar(16);not null;default:'MEDIUM'" json:"priority"`
	SourceAlertID *string            `gorm:"column:source_alert_id;type:varchar(64);uniqueIndex" json:"source_alert_id,omitempty"`
	AlertIDs      []string           `gorm:"column:alert_ids;serializer:json;type:json" json:"alert_ids"`
	TransactionID string             `gorm:"column:transaction_id;type:varchar(64);index" json:"transaction_id,omitempty"`
	CustomerID    string             `gorm:"column:customer_id;type:varchar(64);index" json:"customer_id"`
	Amount        decimal.Decimal    `gorm:"column:amount;type:decimal(20,2)" json:"amount"`
	Currency      string             `gorm:"column:currency;type:varchar(3)" json:"currency"`
	Summary       string             `gorm:"column:summary;type:text" json:"summary"`
	AssignedTo    string             `gorm:"column:assigned_to;type:varchar(64);index" json:"assigned_to,omitempty"`
	Decision      Decision           `gorm:"column:decision;type:varchar(32)" json:"decision,omitempty"`
	Notes         string             `gorm:"column:notes;type:text" json:"notes,omitempty"`
	ClosedAt      *time.Time         `gorm:"column:closed_at" json:"closed_at,omitempty"`
	History       []CaseHistoryEntry `gorm:"column:history;serializer:json;type:json" json:"history"`

	domainEvents []DomainEvent `gorm:"-"`
}

// TableName 表名
func (Case) TableName() string {
	return "cases"
}

// NewCaseFromAlert 由升级告警开案，金额达到报告阈值时为 SAR 案件
func NewCaseFromAlert(caseNumber string, alert AlertSnapshot, strThreshold decimal.Decimal, now time.Time) *Case {
	caseType := CaseTypeTransaction
	if alert.Amount.GreaterThanOrEqual(strThreshold) {
		caseType = CaseTypeSAR
	}
	priority := alert.Severity
	if priority == "" {
		priority = "MEDIUM"
	}
	alertID := alert.AlertID

	c := &Case{
		CaseNumber:    caseNumber,
		CaseType:      caseType,
		Status:        CaseOpen,
		Priority:      priority,
		SourceAlertID: &alertID,
		AlertIDs:      []string{alert.AlertID},
		TransactionID: alert.TransactionID,
		CustomerID:    alert.OriginatorID,
		Amount:        alert.Amount,
		Currency:      alert.Currency,
		Summary:       fmt.Sprintf("%s alert %s escalated: %s", alert.AlertType, alert.AlertID, alert.Reason),
		History:       make([]CaseHistoryEntry, 0),
	}
	c.CreatedAt = now
	c.appendHistory("OPENED", "", CaseOpen, "system", alert.Reason, now)
	c.addEvent(&CaseOpenedEvent{
		CaseNumber:    c.CaseNumber,
		CaseType:      c.CaseType,
		Priority:      c.Priority,
		AlertID:       alert.AlertID,
		TransactionID: c.TransactionID,
		CustomerID:    c.CustomerID,
		Amount:        c.Amount,
		Timestamp:     now,
	})
	return c
}

// NewManualCase 人工立案
func NewManualCase(caseNumber string, caseType CaseType, customerID, priority, summary, actor string, now time.Time) (*Case, error) {
	if customerID == "" || summary == "" {
		return nil, fmt.Errorf("%w: customer and summary are required", ErrInvalidCaseInput)
	}
	if caseType == "" {
		caseType = CaseTypeInvestigation
	}
	if caseType != CaseTypeTransaction && caseType != CaseTypeSAR && caseType != CaseTypeInvestigation {
		return nil, fmt.Errorf("%w: unknown case type %q", ErrInvalidCaseInput, caseType)
	}
	if priority == "" {
		priority = "MEDIUM"
	}

	c := &Case{
		CaseNumber: caseNumber,
		CaseType:   caseType,
		Status:     CaseOpen,
		Priority:   priority,
		AlertIDs:   make([]string, 0),
		CustomerID: customerID,
		Summary:    summary,
		History:    make([]CaseHistoryEntry, 0),
	}
	c.CreatedAt = now
	c.appendHistory("OPENED", "", CaseOpen, actor, "", now)
	c.addEvent(&CaseOpenedEvent{
		CaseNumber: c.CaseNumber,
		CaseType:   c.CaseType,
		Priority:   c.Priority,
		CustomerID: c.CustomerID,
		Timestamp:  now,
	})
	return c, nil
}

// IsClosed 已结案或已驳回
func (c *Case) IsClosed() bool {
	return c.Status == CaseClosed || c.Status == CaseRejected
}

// LinkAlert 关联告警，重复关联忽略
func (c *Case) LinkAlert(alertID string) bool {
	if slices.Contains(c.AlertIDs, alertID) {
		return false
	}
	c.AlertIDs = append(c.AlertIDs, alertID)
	return true
}

// Assign 分配调查员并进入 IN_PROGRESS
func (c *Case) Assign(analyst, actor string, now time.Time) error {
	if analyst == "" {
		return fmt.Errorf("%w: assignee is required", ErrInvalidCaseInput)
	}
	if err := c.move(CaseInProgress, "ASSIGNED", actor, analyst, now); err != nil {
		return err
	}
	c.AssignedTo = analyst
	return nil
}

// SubmitForReview 提交复核
func (c *Case) SubmitForReview(actor, notes string, now time.Time) error {
	return c.move(CasePendingReview, "SUBMITTED_FOR_REVIEW", actor, notes, now)
}

// Escalate 升级案件
func (c *Case) Escalate(actor, reason string, now time.Time) error {
	return c.move(CaseEscalated, "ESCALATED", actor, reason, now)
}

// Hold 挂起案件
func (c *Case) Hold(actor, reason string, now time.Time) error {
	return c.move(CaseOnHold, "ON_HOLD", actor, reason, now)
}

// Close 以决定结案
func (c *Case) Close(decision Decision, notes, actor string, now time.Time) error {
	if !decision.Valid() {
		return fmt.Errorf("%w: unknown decision %q", ErrInvalidCaseInput, decision)
	}
	if err := c.move(CaseClosed, "CLOSED", actor, notes, now); err != nil {
		return err
	}
	t := now
	c.Decision = decision
	c.Notes = notes
	c.ClosedAt = &t
	c.addEvent(&CaseClosedEvent{
		CaseNumber: c.CaseNumber,
		Decision:   decision,
		Actor:      actor,
		Timestamp:  now,
	})
	return nil
}

// Reject 驳回案件
func (c *Case) Reject(notes, actor string, now time.Time) error {
	if err := c.move(CaseRejected, "REJECTED", actor, notes, now); err != nil {
		return err
	}
	t := now
	c.Notes = notes
	c.ClosedAt = &t
	return nil
}

// Reportable 未结案或以 FILE_SAR 结案的案件可起草报告
func (c *Case) Reportable() bool {
	if c.Status == CaseRejected {
		return false
	}
	return c.Status != CaseClosed || c.Decision == DecisionFileSAR
}

func (c *Case) move(to CaseStatus, action, actor, notes string, now time.Time) error {
	if c.IsClosed() {
		return fmt.Errorf("%w: %s", ErrCaseClosed, c.CaseNumber)
	}
	from := c.Status
	c.Status = to
	c.appendHistory(action, from, to, actor, notes, now)
	return nil
}

func (c *Case) appendHistory(action string, from, to CaseStatus, actor, notes string, now time.Time) {
	c.History = append(c.History, CaseHistoryEntry{
		Action: action,
		From:   from,
		To:     to,
		Actor:  actor,
		Notes:  notes,
		At:     now.UTC(),
	})
}

func (c *Case) addEvent(e DomainEvent) {
	c.domainEvents = append(c.domainEvents, e)
}

// GetDomainEvents 获取领域事件
func (c *Case) GetDomainEvents() []DomainEvent {
	return c.domainEvents
}

// ClearDomainEvents 清空领域事件
func (c *Case) ClearDomainEvents() {
	c.domainEvents = nil
}
