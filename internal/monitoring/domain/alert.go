package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AlertStatus 告警状态
type AlertStatus string

const (
	AlertStatusNew           AlertStatus = "NEW"
	AlertStatusAssigned      AlertStatus = "ASSIGNED"
	AlertStatusInReview      AlertStatus = "IN_REVIEW"
	AlertStatusEscalated     AlertStatus = "ESCALATED"
	AlertStatusResolved      AlertStatus = "RESOLVED"
	AlertStatusClosed        AlertStatus = "CLOSED"
	AlertStatusFalsePositive AlertStatus = "FALSE_POSITIVE"
)

// Terminal 是否为终态
func (s AlertStatus) Terminal() bool {
	return s == AlertStatusResolved || s == AlertStatusClosed || s == AlertStatusFalsePositive
}

// OpenAlertStatuses 非终态集合
var OpenAlertStatuses = []AlertStatus{
	AlertStatusNew, AlertStatusAssigned, AlertStatusInReview, AlertStatusEscalated,
}

// AlertTypeUnusualPattern 模式检测告警类型
const AlertTypeUnusualPattern = "UNUSUAL_PATTERN"

var (
	ErrAlertNotFound     = errors.New("transaction alert not found")
	ErrInvalidTransition = errors.New("invalid alert status transition")
)

// TransactionAlert 交易告警聚合根
type TransactionAlert struct {
	gorm.Model
	AlertID        string          `gorm:"column:alert_id;type:varchar(64);uniqueIndex;not null" json:"alert_id"`
	TransactionID  string          `gorm:"column:transaction_id;type:varchar(64);index;not null" json:"transaction_id"`
	OriginatorID   string          `gorm:"column:originator_id;type:varchar(64);index:idx_alert_cooldown,priority:1" json:"originator_id"`
	RuleID         string          `gorm:"column:rule_id;type:varchar(64);index:idx_alert_cooldown,priority:2" json:"rule_id,omitempty"`
	AlertType      string          `gorm:"column:alert_type;type:varchar(32);index;not null" json:"alert_type"`
	Severity       Severity        `gorm:"column:severity;type:varchar(16);index;not null;default:'MEDIUM'" json:"severity"`
	DetectionRules map[string]any  `gorm:"column:detection_rules;serializer:json;type:json" json:"detection_rules"`
	Details        map[string]any  `gorm:"column:alert_details;serializer:json;type:json" json:"alert_details"`
	ThresholdValue decimal.Decimal `gorm:"column:threshold_value;type:decimal(20,2)" json:"threshold_value"`
	ActualValue    decimal.Decimal `gorm:"column:actual_value;type:decimal(20,2)" json:"actual_value"`
	Amount         decimal.Decimal `gorm:"column:amount;type:decimal(20,2)" json:"amount"`
	Currency       string          `gorm:"column:currency;type:varchar(3)" json:"currency"`

	Status           AlertStatus `gorm:"column:status;type:varchar(20);index;not null;default:'NEW'" json:"status"`
	AssignedTo       string      `gorm:"column:assigned_to;type:varchar(64)" json:"assigned_to,omitempty"`
	IsEscalated      bool        `gorm:"column:is_escalated;index" json:"is_escalated"`
	EscalatedAt      *time.Time  `gorm:"column:escalated_at" json:"escalated_at,omitempty"`
	EscalationReason string      `gorm:"column:escalation_reason;type:varchar(255)" json:"escalation_reason,omitempty"`
	ResolvedAt       *time.Time  `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	ResolutionNotes  string      `gorm:"column:resolution_notes;type:text" json:"resolution_notes,omitempty"`

	// 领域事件
	domainEvents []DomainEvent `gorm:"-"`
}

// TableName 表名
func (TransactionAlert) TableName() string {
	return "transaction_alerts"
}

// NewRuleAlert 规则命中告警
func NewRuleAlert(alertID string, txn *Transaction, rule *MonitoringRule, now time.Time) *TransactionAlert {
	a := newAlert(alertID, txn, string(rule.RuleType), rule.RiskLevel)
	a.RuleID = rule.RuleID
	a.DetectionRules = map[string]any{"rule_id": rule.RuleID}
	a.Details = map[string]any{
		"rule_name":  rule.Name,
		"threshold":  rule.Thresholds,
		"conditions": rule.Conditions,
	}
	if t := rule.Thresholds.AmountThreshold; t != nil {
		a.ThresholdValue = *t
	}
	a.ActualValue = txn.Amount
	a.CreatedAt = now
	a.recordCreated(now)
	return a
}

// NewPatternAlert 模式检测告警
func NewPatternAlert(alertID string, txn *Transaction, p PatternResult, now time.Time) *TransactionAlert {
	a := newAlert(alertID, txn, AlertTypeUnusualPattern, p.Severity)
	a.DetectionRules = map[string]any{"pattern_type": string(p.Type)}
	a.Details = p.Details
	a.ThresholdValue = p.Threshold
	a.ActualValue = p.Actual
	a.CreatedAt = now
	a.recordCreated(now)
	return a
}

func newAlert(alertID string, txn *Transaction, alertType string, severity Severity) *TransactionAlert {
	if !severity.Valid() {
		severity = SeverityMedium
	}
	return &TransactionAlert{
		AlertID:       alertID,
		TransactionID: txn.TransactionID,
		OriginatorID:  txn.Originator.CustomerID,
		AlertType:     alertType,
		Severity:      severity,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
		Status:        AlertStatusNew,
		domainEvents:  make([]DomainEvent, 0),
	}
}

func (a *TransactionAlert) recordCreated(now time.Time) {
	a.addEvent(&AlertCreatedEvent{
		AlertID:       a.AlertID,
		TransactionID: a.TransactionID,
		OriginatorID:  a.OriginatorID,
		AlertType:     a.AlertType,
		Severity:      a.Severity,
		RuleID:        a.RuleID,
		Amount:        a.Amount,
		Currency:      a.Currency,
		Timestamp:     now,
	})
}

// IsTerminal 是否为终态
func (a *TransactionAlert) IsTerminal() bool {
	return a.Status.Terminal()
}

// Assign 分配给分析员
func (a *TransactionAlert) Assign(analyst string, now time.Time) error {
	if a.IsTerminal() {
		return fmt.Errorf("%w: cannot assign %s alert", ErrInvalidTransition, a.Status)
	}
	if analyst == "" {
		return fmt.Errorf("%w: assignee is required", ErrInvalidTransition)
	}
	old := a.Status
	a.AssignedTo = analyst
	if a.Status == AlertStatusNew {
		a.Status = AlertStatusAssigned
	}
	a.recordStatusChange(old, analyst, now)
	return nil
}

// StartReview 开始审查
func (a *TransactionAlert) StartReview(reviewer string, now time.Time) error {
	if a.IsTerminal() || a.Status == AlertStatusInReview {
		return fmt.Errorf("%w: cannot review %s alert", ErrInvalidTransition, a.Status)
	}
	old := a.Status
	if a.AssignedTo == "" {
		a.AssignedTo = reviewer
	}
	a.Status = AlertStatusInReview
	a.recordStatusChange(old, reviewer, now)
	return nil
}

// Escalate 升级告警
func (a *TransactionAlert) Escalate(reason string, now time.Time) error {
	if a.IsTerminal() || a.IsEscalated {
		return fmt.Errorf("%w: cannot escalate %s alert", ErrInvalidTransition, a.Status)
	}
	t := now
	a.IsEscalated = true
	a.EscalatedAt = &t
	a.EscalationReason = reason
	a.Status = AlertStatusEscalated

	a.addEvent(&AlertEscalatedEvent{
		AlertID:       a.AlertID,
		TransactionID: a.TransactionID,
		OriginatorID:  a.OriginatorID,
		AlertType:     a.AlertType,
		Severity:      a.Severity,
		Amount:        a.Amount,
		Currency:      a.Currency,
		Reason:        reason,
		Timestamp:     now,
	})
	return nil
}

// Resolve 解决告警
func (a *TransactionAlert) Resolve(notes, actor string, now time.Time) error {
	return a.finish(AlertStatusResolved, notes, actor, now)
}

// MarkFalsePositive 标记误报
func (a *TransactionAlert) MarkFalsePositive(notes, actor string, now time.Time) error {
	return a.finish(AlertStatusFalsePositive, notes, actor, now)
}

// Close 关闭已解决告警
func (a *TransactionAlert) Close(actor string, now time.Time) error {
	if a.Status != AlertStatusResolved {
		return fmt.Errorf("%w: only resolved alerts can be closed", ErrInvalidTransition)
	}
	a.Status = AlertStatusClosed
	a.recordStatusChange(AlertStatusResolved, actor, now)
	return nil
}

func (a *TransactionAlert) finish(status AlertStatus, notes, actor string, now time.Time) error {
	if a.IsTerminal() {
		return fmt.Errorf("%w: alert already %s", ErrInvalidTransition, a.Status)
	}
	old := a.Status
	t := now
	a.Status = status
	a.ResolvedAt = &t
	if notes != "" {
		a.ResolutionNotes = notes
	}
	a.recordStatusChange(old, actor, now)
	return nil
}

// RequiresEscalation CRITICAL 未升级告警，或超过 SLA 仍为 NEW 的 HIGH 告警
func (a *TransactionAlert) RequiresEscalation(now time.Time, sla time.Duration) bool {
	if a.IsTerminal() || a.IsEscalated {
		return false
	}
	if a.Severity == SeverityCritical {
		return true
	}
	return a.Status == AlertStatusNew && a.Severity.AtLeast(SeverityHigh) && now.Sub(a.CreatedAt) > sla
}

func (a *TransactionAlert) recordStatusChange(from AlertStatus, actor string, now time.Time) {
	a.addEvent(&AlertStatusChangedEvent{
		AlertID:       a.AlertID,
		TransactionID: a.TransactionID,
		OriginatorID:  a.OriginatorID,
		From:          from,
		To:            a.Status,
		Actor:         actor,
		Timestamp:     now,
	})
}

func (a *TransactionAlert) addEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents 获取领域事件
func (a *TransactionAlert) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents 清除领域事件
func (a *TransactionAlert) ClearDomainEvents() {
	a.domainEvents = nil
}
