package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// 事件主题
const (
	EventCaseOpened   = "aml.case.opened"
	EventCaseClosed   = "aml.case.closed"
	EventSARSubmitted = "aml.sar.submitted"
)

// DomainEvent 领域事件
type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// CaseOpenedEvent 开案事件
type CaseOpenedEvent struct {
	CaseNumber    string          `json:"case_number"`
	CaseType      CaseType        `json:"case_type"`
	Priority      string          `json:"priority"`
	AlertID       string          `json:"alert_id,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	CustomerID    string          `json:"customer_id"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     time.Time       `json:"timestamp"`
}

func (e *CaseOpenedEvent) EventName() string     { return EventCaseOpened }
func (e *CaseOpenedEvent) OccurredAt() time.Time { return e.Timestamp }

// CaseClosedEvent 结案事件
type CaseClosedEvent struct {
	CaseNumber string    `json:"case_number"`
	Decision   Decision  `json:"decision"`
	Actor      string    `json:"actor"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e *CaseClosedEvent) EventName() string     { return EventCaseClosed }
func (e *CaseClosedEvent) OccurredAt() time.Time { return e.Timestamp }

// SARSubmittedEvent 报告提交事件
type SARSubmittedEvent struct {
	ReportID       string    `json:"report_id"`
	CaseNumber     string    `json:"case_number"`
	GoAMLReference string    `json:"goaml_reference"`
	Timestamp      time.Time `json:"timestamp"`
}

func (e *SARSubmittedEvent) EventName() string     { return EventSARSubmitted }
func (e *SARSubmittedEvent) OccurredAt() time.Time { return e.Timestamp }
