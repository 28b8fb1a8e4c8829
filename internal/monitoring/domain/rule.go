package domain

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RuleType 规则类型
type RuleType string

const (
	RuleTypeAmountThreshold  RuleType = "AMOUNT_THRESHOLD"
	RuleTypeFrequency        RuleType = "FREQUENCY"
	RuleTypeVelocity         RuleType = "VELOCITY"
	RuleTypePattern          RuleType = "PATTERN"
	RuleTypeGeography        RuleType = "GEOGRAPHY"
	RuleTypeTimeBased        RuleType = "TIME_BASED"
	RuleTypeCustomerBehavior RuleType = "CUSTOMER_BEHAVIOR"
)

// Valid 是否为已知规则类型
func (t RuleType) Valid() bool {
	switch t {
	case RuleTypeAmountThreshold, RuleTypeFrequency, RuleTypeVelocity, RuleTypePattern,
		RuleTypeGeography, RuleTypeTimeBased, RuleTypeCustomerBehavior:
		return true
	}
	return false
}

var (
	ErrRuleNotFound = errors.New("monitoring rule not found")
	ErrInvalidRule  = errors.New("invalid monitoring rule")
)

// RuleConditions 规则条件，字段缺省即不检查
type RuleConditions struct {
	HighRiskCountries []string `json:"high_risk_countries,omitempty"`
}

// RuleThresholds 规则阈值，字段缺省即不检查
type RuleThresholds struct {
	AmountThreshold    *decimal.Decimal `json:"amount_threshold,omitempty"`
	FrequencyThreshold *int64           `json:"frequency_threshold,omitempty"`
}

// MonitoringRule 监控规则
type MonitoringRule struct {
	gorm.Model
	RuleID           string         `gorm:"column:rule_id;type:varchar(64);uniqueIndex;not null" json:"rule_id"`
	Name             string         `gorm:"column:name;type:varchar(128);not null" json:"name"`
	Description      string         `gorm:"column:description;type:text" json:"description"`
	RuleType         RuleType       `gorm:"column:rule_type;type:varchar(32);not null" json:"rule_type"`
	Priority         int            `gorm:"column:priority;index;not null;default:0" json:"priority"`
	RiskLevel        Severity       `gorm:"column:risk_level;type:varchar(16);not null;default:'MEDIUM'" json:"risk_level"`
	TransactionTypes []string       `gorm:"column:transaction_types;serializer:json;type:json" json:"transaction_types"`
	Conditions       RuleConditions `gorm:"column:conditions;serializer:json;type:json" json:"conditions"`
	Thresholds       RuleThresholds `gorm:"column:thresholds;serializer:json;type:json" json:"thresholds"`
	// 冷却期与回溯期（秒）
	CooldownSeconds int64 `gorm:"column:cooldown_seconds;not null;default:0" json:"cooldown_seconds"`
	LookbackSeconds int64 `gorm:"column:lookback_seconds;not null;default:0" json:"lookback_seconds"`
	AutoEscalate    bool  `gorm:"column:auto_escalate" json:"auto_escalate"`
	RiskScoreWeight int   `gorm:"column:risk_score_weight;default:1" json:"risk_score_weight"`
	IsActive        bool  `gorm:"column:is_active;index" json:"is_active"`
}

// TableName 表名
func (MonitoringRule) TableName() string {
	return "monitoring_rules"
}

// CooldownPeriod 冷却期
func (r *MonitoringRule) CooldownPeriod() time.Duration {
	return time.Duration(r.CooldownSeconds) * time.Second
}

// LookbackPeriod 频次回溯期
func (r *MonitoringRule) LookbackPeriod() time.Duration {
	return time.Duration(r.LookbackSeconds) * time.Second
}

// Validate 校验规则定义
func (r *MonitoringRule) Validate() error {
	switch {
	case r.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	case !r.RuleType.Valid():
		return fmt.Errorf("%w: unknown rule type %q", ErrInvalidRule, r.RuleType)
	case len(r.TransactionTypes) == 0:
		return fmt.Errorf("%w: at least one transaction type is required", ErrInvalidRule)
	case r.Priority < 0:
		return fmt.Errorf("%w: priority must be >= 0", ErrInvalidRule)
	case r.CooldownSeconds < 0 || r.LookbackSeconds < 0:
		return fmt.Errorf("%w: cooldown and lookback must be >= 0", ErrInvalidRule)
	case !r.RiskLevel.Valid():
		return fmt.Errorf("%w: unknown risk level %q", ErrInvalidRule, r.RiskLevel)
	}
	return nil
}

// AppliesTo 规则启用且覆盖该交易类型
func (r *MonitoringRule) AppliesTo(txnType string) bool {
	return r.IsActive && slices.Contains(r.TransactionTypes, txnType)
}

// NeedsFrequency 是否需要频次统计
func (r *MonitoringRule) NeedsFrequency() bool {
	return r.Thresholds.FrequencyThreshold != nil
}

// Evaluate 任一条件命中即返回 true，recentCount 为回溯期内发起方交易笔数
func (r *MonitoringRule) Evaluate(txn *Transaction, recentCount int64) bool {
	if t := r.Thresholds.AmountThreshold; t != nil && txn.Amount.GreaterThan(*t) {
		return true
	}
	if countries := r.Conditions.HighRiskCountries; len(countries) > 0 {
		if slices.Contains(countries, txn.OriginatingCountry) || slices.Contains(countries, txn.DestinationCountry) {
			return true
		}
	}
	if t := r.Thresholds.FrequencyThreshold; t != nil && recentCount > *t {
		return true
	}
	return false
}

// Activate 启用
func (r *MonitoringRule) Activate() {
	r.IsActive = true
}

// Deactivate 停用
func (r *MonitoringRule) Deactivate() {
	r.IsActive = false
}

// SortRulesByPriority 按优先级升序排列，同优先级保持原序
func SortRulesByPriority(rules []*MonitoringRule) {
	slices.SortStableFunc(rules, func(a, b *MonitoringRule) int {
		return a.Priority - b.Priority
	})
}
