package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// 事件主题
const (
	EventAlertCreated         = "aml.alert.created"
	EventAlertEscalated       = "aml.alert.escalated"
	EventAlertStatusChanged   = "aml.alert.status_changed"
	EventTransactionMonitored = "aml.transaction.monitored"
	EventRiskLevelChanged     = "aml.risk.level_changed"
)

// DomainEvent 领域事件
type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// AlertCreatedEvent 告警创建事件
type AlertCreatedEvent struct {
	AlertID       string          `json:"alert_id"`
	TransactionID string          `json:"transaction_id"`
	OriginatorID  string          `json:"originator_id"`
	AlertType     string          `json:"alert_type"`
	Severity      Severity        `json:"severity"`
	RuleID        string          `json:"rule_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Timestamp     time.Time       `json:"timestamp"`
}

func (e *AlertCreatedEvent) EventName() string     { return EventAlertCreated }
func (e *AlertCreatedEvent) OccurredAt() time.Time { return e.Timestamp }

// AlertEscalatedEvent 告警升级事件
type AlertEscalatedEvent struct {
	AlertID       string          `json:"alert_id"`
	TransactionID string          `json:"transaction_id"`
	OriginatorID  string          `json:"originator_id"`
	AlertType     string          `json:"alert_type"`
	Severity      Severity        `json:"severity"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reason        string          `json:"reason"`
	Timestamp     time.Time       `json:"timestamp"`
}

func (e *AlertEscalatedEvent) EventName() string     { return EventAlertEscalated }
func (e *AlertEscalatedEvent) OccurredAt() time.Time { return e.Timestamp }

// AlertStatusChangedEvent 告警状态变更事件
type AlertStatusChangedEvent struct {
	AlertID       string      `json:"alert_id"`
	TransactionID string      `json:"transaction_id"`
	OriginatorID  string      `json:"originator_id"`
	From          AlertStatus `json:"from"`
	To            AlertStatus `json:"to"`
	Actor         string      `json:"actor"`
	Timestamp     time.Time   `json:"timestamp"`
}

func (e *AlertStatusChangedEvent) EventName() string     { return EventAlertStatusChanged }
func (e *AlertStatusChangedEvent) OccurredAt() time.Time { return e.Timestamp }

// TransactionMonitoredEvent 交易监控完成事件
type TransactionMonitoredEvent struct {
	TransactionID  string           `json:"transaction_id"`
	OriginatorID   string           `json:"originator_id"`
	Status         MonitoringStatus `json:"status"`
	IsSuspicious   bool             `json:"is_suspicious"`
	AlertCount     int              `json:"alert_count"`
	MatchCount     int              `json:"match_count"`
	FailedStages   []string         `json:"failed_stages,omitempty"`
	DurationMillis int64            `json:"duration_ms"`
	Timestamp      time.Time        `json:"timestamp"`
}

func (e *TransactionMonitoredEvent) EventName() string     { return EventTransactionMonitored }
func (e *TransactionMonitoredEvent) OccurredAt() time.Time { return e.Timestamp }

// RiskLevelChangedEvent 客户风险等级变更事件
type RiskLevelChangedEvent struct {
	CustomerID string    `json:"customer_id"`
	OldLevel   Severity  `json:"old_level"`
	NewLevel   Severity  `json:"new_level"`
	Score      int       `json:"score"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e *RiskLevelChangedEvent) EventName() string     { return EventRiskLevelChanged }
func (e *RiskLevelChangedEvent) OccurredAt() time.Time { return e.Timestamp }
