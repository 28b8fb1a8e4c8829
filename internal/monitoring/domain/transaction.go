package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MonitoringStatus 交易监控状态
type MonitoringStatus string

const (
	MonitoringPending    MonitoringStatus = "PENDING"
	MonitoringInProgress MonitoringStatus = "IN_PROGRESS"
	MonitoringCompleted  MonitoringStatus = "COMPLETED"
	MonitoringFailed     MonitoringStatus = "FAILED"
)

// CustomerTypeIndividual 个人客户
const CustomerTypeIndividual = "INDIVIDUAL"

// DefaultCurrency 默认币种
const DefaultCurrency = "AED"

// ErrAlreadyMonitored 交易已进入或完成监控
var ErrAlreadyMonitored = errors.New("transaction already monitored")

// Party 交易参与方
type Party struct {
	CustomerID   string `gorm:"column:customer_id;type:varchar(64);index" json:"customer_id"`
	CustomerType string `gorm:"column:customer_type;type:varchar(32)" json:"customer_type"`
	FirstName    string `gorm:"column:first_name;type:varchar(128)" json:"first_name,omitempty"`
	LastName     string `gorm:"column:last_name;type:varchar(128)" json:"last_name,omitempty"`
	CompanyName  string `gorm:"column:company_name;type:varchar(255)" json:"company_name,omitempty"`
	Country      string `gorm:"column:country;type:varchar(8)" json:"country,omitempty"`
}

// DisplayName 个人为 "名 姓"，其他类型为公司名
func (p Party) DisplayName() string {
	if p.CustomerType == CustomerTypeIndividual {
		return p.FirstName + " " + p.LastName
	}
	return p.CompanyName
}

// IsZero 未填写任何身份信息
func (p Party) IsZero() bool {
	return p.CustomerID == "" && strings.TrimSpace(p.FirstName+p.LastName+p.CompanyName) == ""
}

// HistoryEntry 监控历史记录
type HistoryEntry struct {
	Action string         `json:"action"`
	Detail map[string]any `json:"detail,omitempty"`
	At     time.Time      `json:"at"`
}

// Transaction 交易聚合根
type Transaction struct {
	gorm.Model
	TransactionID      string          `gorm:"column:transaction_id;type:varchar(64);uniqueIndex;not null" json:"transaction_id"`
	Type               string          `gorm:"column:transaction_type;type:varchar(50);index;not null" json:"transaction_type"`
	Amount             decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	Currency           string          `gorm:"column:currency;type:varchar(3);not null;default:'AED'" json:"currency"`
	SourceAccount      string          `gorm:"column:source_account;type:varchar(50)" json:"source_account"`
	DestinationAccount string          `gorm:"column:destination_account;type:varchar(50)" json:"destination_account"`
	OriginatingCountry string          `gorm:"column:originating_country;type:varchar(8)" json:"originating_country"`
	DestinationCountry string          `gorm:"column:destination_country;type:varchar(8)" json:"destination_country"`
	Description        string          `gorm:"column:description;type:text" json:"description,omitempty"`
	ReferenceNumber    string          `gorm:"column:reference_number;type:varchar(100)" json:"reference_number,omitempty"`
	TransactionDate    time.Time       `gorm:"column:transaction_date;index;not null" json:"transaction_date"`

	Originator  Party `gorm:"embedded;embeddedPrefix:originator_" json:"originator"`
	Beneficiary Party `gorm:"embedded;embeddedPrefix:beneficiary_" json:"beneficiary"`

	MonitoringStatus  MonitoringStatus `gorm:"column:monitoring_status;type:varchar(20);index;not null;default:'PENDING'" json:"monitoring_status"`
	IsSuspicious      bool             `gorm:"column:is_suspicious;index" json:"is_suspicious"`
	AlertGenerated    bool             `gorm:"column:alert_generated" json:"alert_generated"`
	MonitoringNotes   string           `gorm:"column:monitoring_notes;type:text" json:"monitoring_notes,omitempty"`
	MonitoringHistory []HistoryEntry   `gorm:"column:monitoring_history;serializer:json;type:json" json:"monitoring_history"`
}

// TableName 表名
func (Transaction) TableName() string {
	return "transactions"
}

// NewTransaction 创建待监控交易
func NewTransaction(transactionID, txnType string, amount decimal.Decimal, currency string, originator Party, at time.Time) *Transaction {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Transaction{
		TransactionID:     transactionID,
		Type:              txnType,
		Amount:            amount,
		Currency:          currency,
		Originator:        originator,
		TransactionDate:   at,
		MonitoringStatus:  MonitoringPending,
		MonitoringHistory: make([]HistoryEntry, 0),
	}
}

// HasBeneficiary 是否存在受益方
func (t *Transaction) HasBeneficiary() bool {
	return !t.Beneficiary.IsZero()
}

// Parties 需筛查的参与方
func (t *Transaction) Parties() []Party {
	parties := []Party{t.Originator}
	if t.HasBeneficiary() {
		parties = append(parties, t.Beneficiary)
	}
	return parties
}

// StartMonitoring 进入监控，仅 PENDING 可开始
func (t *Transaction) StartMonitoring(now time.Time) error {
	if t.MonitoringStatus != MonitoringPending {
		return ErrAlreadyMonitored
	}
	t.MonitoringStatus = MonitoringInProgress
	t.appendHistory("MONITORING_STARTED", nil, now)
	return nil
}

// FinishMonitoring 结束监控，failed 为 true 时标记 FAILED
func (t *Transaction) FinishMonitoring(failed bool, now time.Time) {
	if failed {
		t.MonitoringStatus = MonitoringFailed
	} else {
		t.MonitoringStatus = MonitoringCompleted
	}
	t.appendHistory("MONITORING_"+string(t.MonitoringStatus), nil, now)
}

// MarkSuspicious 标记可疑交易，重复调用不追加历史
func (t *Transaction) MarkSuspicious(reason string, now time.Time) bool {
	if t.IsSuspicious {
		return false
	}
	t.IsSuspicious = true
	t.MonitoringNotes = reason
	t.appendHistory("MARKED_SUSPICIOUS", map[string]any{"reason": reason}, now)
	return true
}

// GenerateAlert 记录告警已生成，重复调用不追加历史
func (t *Transaction) GenerateAlert(alertTypes []string, details map[string]any, now time.Time) bool {
	if t.AlertGenerated {
		return false
	}
	t.AlertGenerated = true
	detail := map[string]any{"alert_types": alertTypes}
	for k, v := range details {
		detail[k] = v
	}
	t.appendHistory("ALERT_GENERATED", detail, now)
	return true
}

func (t *Transaction) appendHistory(action string, detail map[string]any, now time.Time) {
	t.MonitoringHistory = append(t.MonitoringHistory, HistoryEntry{Action: action, Detail: detail, At: now.UTC()})
}
