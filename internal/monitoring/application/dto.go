package application

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
)

// PartyDTO 交易参与方
type PartyDTO struct {
	CustomerID   string `json:"customer_id"`
	CustomerType string `json:"customer_type"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	CompanyName  string `json:"company_name"`
	Country      string `json:"country"`
}

func (p PartyDTO) party() domain.Party {
	return domain.Party{
		CustomerID:   p.CustomerID,
		CustomerType: p.CustomerType,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		CompanyName:  p.CompanyName,
		Country:      p.Country,
	}
}

// TransactionDTO HTTP 与 Kafka 共用的交易报文
type TransactionDTO struct {
	TransactionID      string          `json:"transaction_id"`
	Type               string          `json:"transaction_type" binding:"required"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	OriginatingCountry string          `json:"originating_country"`
	DestinationCountry string          `json:"destination_country"`
	Description        string          `json:"description"`
	ReferenceNumber    string          `json:"reference_number"`
	TransactionDate    *time.Time      `json:"transaction_date"`
	Originator         PartyDTO        `json:"originator"`
	Beneficiary        *PartyDTO       `json:"beneficiary"`
}

// Command 转换为提交命令
func (d TransactionDTO) Command() SubmitTransactionCommand {
	cmd := SubmitTransactionCommand{
		TransactionID:      d.TransactionID,
		Type:               d.Type,
		Amount:             d.Amount,
		Currency:           d.Currency,
		SourceAccount:      d.SourceAccount,
		DestinationAccount: d.DestinationAccount,
		OriginatingCountry: d.OriginatingCountry,
		DestinationCountry: d.DestinationCountry,
		Description:        d.Description,
		ReferenceNumber:    d.ReferenceNumber,
		Originator:         d.Originator.party(),
	}
	if d.TransactionDate != nil {
		cmd.TransactionDate = d.TransactionDate.UTC()
	}
	if d.Beneficiary != nil {
		cmd.Beneficiary = d.Beneficiary.party()
	}
	return cmd
}

// RuleDTO 规则创建/更新报文
type RuleDTO struct {
	Name               string           `json:"name" binding:"required"`
	Description        string           `json:"description"`
	RuleType           string           `json:"rule_type" binding:"required"`
	Priority           int              `json:"priority"`
	RiskLevel          string           `json:"risk_level"`
	TransactionTypes   []string         `json:"transaction_types"`
	HighRiskCountries  []string         `json:"high_risk_countries"`
	AmountThreshold    *decimal.Decimal `json:"amount_threshold"`
	FrequencyThreshold *int64           `json:"frequency_threshold"`
	CooldownSeconds    int64            `json:"cooldown_seconds"`
	LookbackSeconds    int64            `json:"lookback_seconds"`
	AutoEscalate       bool             `json:"auto_escalate"`
	RiskScoreWeight    int              `json:"risk_score_weight"`
	IsActive           *bool            `json:"is_active"`
}

// Command 转换为规则命令，未识别的风险等级交由规则校验拒绝
func (d RuleDTO) Command(actor string) RuleCommand {
	cmd := RuleCommand{
		Name:               d.Name,
		Description:        d.Description,
		RuleType:           domain.RuleType(strings.ToUpper(d.RuleType)),
		Priority:           d.Priority,
		RiskLevel:          domain.Severity(d.RiskLevel),
		TransactionTypes:   d.TransactionTypes,
		HighRiskCountries:  d.HighRiskCountries,
		AmountThreshold:    d.AmountThreshold,
		FrequencyThreshold: d.FrequencyThreshold,
		CooldownSeconds:    d.CooldownSeconds,
		LookbackSeconds:    d.LookbackSeconds,
		AutoEscalate:       d.AutoEscalate,
		RiskScoreWeight:    d.RiskScoreWeight,
		IsActive:           d.IsActive == nil || *d.IsActive,
		Actor:              actor,
	}
	if level, ok := domain.ParseSeverity(d.RiskLevel); ok {
		cmd.RiskLevel = level
	}
	return cmd
}
