package domain

import (
	"context"
	"errors"
	"time"
)

// ErrTransactionNotFound 交易不存在
var ErrTransactionNotFound = errors.New("transaction not found")

// ErrDuplicateTransaction 交易编号重复
var ErrDuplicateTransaction = errors.New("transaction already exists")

// ErrInvalidTransaction 交易字段非法
var ErrInvalidTransaction = errors.New("invalid transaction")

// ErrProfileNotFound 风险画像不存在
var ErrProfileNotFound = errors.New("customer risk profile not found")

// TransactionRepository 交易仓储
type TransactionRepository interface {
	Create(ctx context.Context, txn *Transaction) error
	Save(ctx context.Context, txn *Transaction) error
	GetByTransactionID(ctx context.Context, transactionID string) (*Transaction, error)
	// ListByOriginatorSince 发起方 since 之后创建的交易，excludeID 为空时不排除
	ListByOriginatorSince(ctx context.Context, originatorID string, since time.Time, excludeID string) ([]*Transaction, error)
	CountByOriginatorSince(ctx context.Context, originatorID string, since time.Time) (int64, error)
	List(ctx context.Context, filter TransactionFilter) ([]*Transaction, int64, error)
}

// TransactionFilter 交易查询条件
type TransactionFilter struct {
	OriginatorID string
	Status       MonitoringStatus
	Suspicious   *bool
	Offset       int
	Limit        int
}

// RuleRepository 规则仓储
type RuleRepository interface {
	Save(ctx context.Context, rule *MonitoringRule) error
	GetByRuleID(ctx context.Context, ruleID string) (*MonitoringRule, error)
	GetByName(ctx context.Context, name string) (*MonitoringRule, error)
	// ListActive 启用规则，按优先级升序
	ListActive(ctx context.Context) ([]*MonitoringRule, error)
	List(ctx context.Context, active *bool) ([]*MonitoringRule, error)
}

// AlertRepository 告警仓储
type AlertRepository interface {
	Save(ctx context.Context, alert *TransactionAlert) error
	GetByAlertID(ctx context.Context, alertID string) (*TransactionAlert, error)
	// ExistsForRuleSince 冷却判断：同一发起方与规则在 since 之后是否已有告警
	ExistsForRuleSince(ctx context.Context, originatorID, ruleID string, since time.Time) (bool, error)
	ListOpenByOriginatorSince(ctx context.Context, originatorID string, since time.Time) ([]*TransactionAlert, error)
	ListEscalationCandidates(ctx context.Context, limit int) ([]*TransactionAlert, error)
	List(ctx context.Context, filter AlertFilter) ([]*TransactionAlert, int64, error)
}

// AlertFilter 告警查询条件
type AlertFilter struct {
	Status        AlertStatus
	Severity      Severity
	AlertType     string
	TransactionID string
	OriginatorID  string
	Offset        int
	Limit         int
}

// RiskProfileRepository 风险画像仓储
type RiskProfileRepository interface {
	Save(ctx context.Context, profile *CustomerRiskProfile) error
	GetByCustomerID(ctx context.Context, customerID string) (*CustomerRiskProfile, error)
	ListByLevel(ctx context.Context, level Severity, offset, limit int) ([]*CustomerRiskProfile, int64, error)
}

// CooldownGate 冷却窗口内同一发起方与规则只放行一次告警
type CooldownGate interface {
	Acquire(ctx context.Context, originatorID, ruleID string, ttl time.Duration) (bool, error)
	// Release 告警未能落库时释放冷却键
	Release(ctx context.Context, originatorID, ruleID string) error
}
