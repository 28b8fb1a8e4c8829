package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
)

type ruleRepository struct {
	db *gorm.DB
}

// NewRuleRepository 创建规则仓储
func NewRuleRepository(db *gorm.DB) domain.RuleRepository {
	return &ruleRepository{db: db}
}

func (r *ruleRepository) Save(ctx context.Context, rule *domain.MonitoringRule) error {
	if rule.ID == 0 {
		var existing domain.MonitoringRule
		if err := r.db.WithContext(ctx).Select("id", "created_at").
			Where("rule_id = ?", rule.RuleID).
			First(&existing).Error; err == nil {
			rule.ID = existing.ID
			rule.CreatedAt = existing.CreatedAt
		}
	}
	return r.db.WithContext(ctx).Save(rule).Error
}

func (r *ruleRepository) GetByRuleID(ctx context.Context, ruleID string) (*domain.MonitoringRule, error) {
	return r.first(ctx, "rule_id = ?", ruleID)
}

func (r *ruleRepository) GetByName(ctx context.Context, name string) (*domain.MonitoringRule, error) {
	return r.first(ctx, "name = ?", name)
}

func (r *ruleRepository) first(ctx context.Context, query string, arg any) (*domain.MonitoringRule, error) {
	var rule domain.MonitoringRule
	if err := r.db.WithContext(ctx).Where(query, arg).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// ListActive 交易类型过滤在内存中完成，JSON 列查询在 MySQL 与 Postgres 间不可移植
func (r *ruleRepository) ListActive(ctx context.Context) ([]*domain.MonitoringRule, error) {
	var rules []*domain.MonitoringRule
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority asc").
		Order("id asc").
		Find(&rules).Error
	return rules, err
}

func (r *ruleRepository) List(ctx context.Context, active *bool) ([]*domain.MonitoringRule, error) {
	q := r.db.WithContext(ctx)
	if active != nil {
		q = q.Where("is_active = ?", *active)
	}
	var rules []*domain.MonitoringRule
	err := q.Order("priority asc").Order("id asc").Find(&rules).Error
	return rules, err
}
