package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
	"github.com/wyfcoding/amlplatform/pkg/mq"
)

// RuleService 监控规则管理服务
type RuleService struct {
	base
	ruleRepo domain.RuleRepository
}

// NewRuleService 创建规则管理服务
func NewRuleService(ruleRepo domain.RuleRepository, publisher mq.EventPublisher, logger *slog.Logger, opts Options) *RuleService {
	return &RuleService{base: newBase(publisher, logger, opts), ruleRepo: ruleRepo}
}

// RuleCommand 规则创建/更新命令
type RuleCommand struct {
	Name               string
	Description        string
	RuleType           domain.RuleType
	Priority           int
	RiskLevel          domain.Severity
	TransactionTypes   []string
	HighRiskCountries  []string
	AmountThreshold    *decimal.Decimal
	FrequencyThreshold *int64
	CooldownSeconds    int64
	LookbackSeconds    int64
	AutoEscalate       bool
	RiskScoreWeight    int
	IsActive           bool
	Actor              string
}

func (c RuleCommand) apply(rule *domain.MonitoringRule) {
	rule.Name = c.Name
	rule.Description = c.Description
	rule.RuleType = c.RuleType
	rule.Priority = c.Priority
	rule.RiskLevel = c.RiskLevel
	if rule.RiskLevel == "" {
		rule.RiskLevel = domain.SeverityMedium
	}
	rule.TransactionTypes = c.TransactionTypes
	rule.Conditions = domain.RuleConditions{HighRiskCountries: c.HighRiskCountries}
	rule.Thresholds = domain.RuleThresholds{
		AmountThreshold:    c.AmountThreshold,
		FrequencyThreshold: c.FrequencyThreshold,
	}
	rule.CooldownSeconds = c.CooldownSeconds
	rule.LookbackSeconds = c.LookbackSeconds
	rule.AutoEscalate = c.AutoEscalate
	rule.RiskScoreWeight = c.RiskScoreWeight
	if rule.RiskScoreWeight == 0 {
		rule.RiskScoreWeight = 1
	}
}

// CreateRule 创建规则
func (s *RuleService) CreateRule(ctx context.Context, cmd RuleCommand) (*domain.MonitoringRule, error) {
	start := time.Now()

	rule := &domain.MonitoringRule{RuleID: s.newID(), IsActive: cmd.IsActive}
	cmd.apply(rule)
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	if err := s.ruleRepo.Save(ctx, rule); err != nil {
		s.logger.ErrorContext(ctx, "failed to save monitoring rule",
			"name", cmd.Name,
			"error", err,
			"duration", time.Since(start))
		return nil, err
	}

	s.record(ctx, cmd.Actor, "RULE_CREATED", "monitoring_rule", rule.RuleID, map[string]any{"name": rule.Name, "rule_type": rule.RuleType})
	s.logger.InfoContext(ctx, "monitoring rule created",
		"rule_id", rule.RuleID,
		"name", rule.Name,
		"duration", time.Since(start))
	return rule, nil
}

// UpdateRule 更新规则定义，不改变启用状态
func (s *RuleService) UpdateRule(ctx context.Context, ruleID string, cmd RuleCommand) (*domain.MonitoringRule, error) {
	rule, err := s.ruleRepo.GetByRuleID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	cmd.apply(rule)
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := s.ruleRepo.Save(ctx, rule); err != nil {
		return nil, err
	}

	s.record(ctx, cmd.Actor, "RULE_UPDATED", "monitoring_rule", ruleID, map[string]any{"name": rule.Name})
	s.logger.InfoContext(ctx, "monitoring rule updated", "rule_id", ruleID)
	return rule, nil
}

// SetActive 启用或停用规则
func (s *RuleService) SetActive(ctx context.Context, ruleID string, active bool, actor string) (*domain.MonitoringRule, error) {
	rule, err := s.ruleRepo.GetByRuleID(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	action := "RULE_DEACTIVATED"
	if active {
		rule.Activate()
		action = "RULE_ACTIVATED"
	} else {
		rule.Deactivate()
	}
	if err := s.ruleRepo.Save(ctx, rule); err != nil {
		return nil, err
	}

	s.record(ctx, actor, action, "monitoring_rule", ruleID, nil)
	s.logger.InfoContext(ctx, "monitoring rule state changed", "rule_id", ruleID, "active", active)
	return rule, nil
}

// GetRule 获取规则
func (s *RuleService) GetRule(ctx context.Context, ruleID string) (*domain.MonitoringRule, error) {
	return s.ruleRepo.GetByRuleID(ctx, ruleID)
}

// ListRules 列出规则，active 为 nil 时不过滤
func (s *RuleService) ListRules(ctx context.Context, active *bool) ([]*domain.MonitoringRule, error) {
	return s.ruleRepo.List(ctx, active)
}

// ruleSeed YAML 规则定义
type ruleSeed struct {
	Name               string   `yaml:"name"`
	Description        string   `yaml:"description"`
	RuleType           string   `yaml:"rule_type"`
	Priority           int      `yaml:"priority"`
	RiskLevel          string   `yaml:"risk_level"`
	TransactionTypes   []string `yaml:"transaction_types"`
	HighRiskCountries  []string `yaml:"high_risk_countries"`
	AmountThreshold    *string  `yaml:"amount_threshold"`
	FrequencyThreshold *int64   `yaml:"frequency_threshold"`
	Cooldown           string   `yaml:"cooldown"`
	Lookback           string   `yaml:"lookback"`
	AutoEscalate       bool     `yaml:"auto_escalate"`
	RiskScoreWeight    int      `yaml:"risk_score_weight"`
	Active             *bool    `yaml:"active"`
}

type ruleSeedFile struct {
	Rules []ruleSeed `yaml:"rules"`
}

func (r ruleSeed) command() (RuleCommand, error) {
	cmd := RuleCommand{
		Name:               r.Name,
		Description:        r.Description,
		RuleType:           domain.RuleType(r.RuleType),
		Priority:           r.Priority,
		TransactionTypes:   r.TransactionTypes,
		HighRiskCountries:  r.HighRiskCountries,
		FrequencyThreshold: r.FrequencyThreshold,
		AutoEscalate:       r.AutoEscalate,
		RiskScoreWeight:    r.RiskScoreWeight,
		IsActive:           r.Active == nil || *r.Active,
		Actor:              "seed",
	}
	if r.RiskLevel != "" {
		level, ok := domain.ParseSeverity(r.RiskLevel)
		if !ok {
			return cmd, fmt.Errorf("%w: unknown risk level %q", domain.ErrInvalidRule, r.RiskLevel)
		}
		cmd.RiskLevel = level
	}
	if r.AmountThreshold != nil {
		d, err := decimal.NewFromString(*r.AmountThreshold)
		if err != nil {
			return cmd, fmt.Errorf("%w: amount_threshold: %v", domain.ErrInvalidRule, err)
		}
		cmd.AmountThreshold = &d
	}
	var err error
	if cmd.CooldownSeconds, err = parseSeconds(r.Cooldown); err != nil {
		return cmd, fmt.Errorf("%w: cooldown: %v", domain.ErrInvalidRule, err)
	}
	if cmd.LookbackSeconds, err = parseSeconds(r.Lookback); err != nil {
		return cmd, fmt.Errorf("%w: lookback: %v", domain.ErrInvalidRule, err)
	}
	return cmd, nil
}

func parseSeconds(v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	return int64(d / time.Second), nil
}

// ImportRules 从 YAML 导入规则，已存在同名规则时跳过，返回新建条数
func (s *RuleService) ImportRules(ctx context.Context, r io.Reader) (int, error) {
	var file ruleSeedFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: failed to decode rule seed: %v", domain.ErrInvalidRule, err)
	}

	created := 0
	for _, seed := range file.Rules {
		if _, err := s.ruleRepo.GetByName(ctx, seed.Name); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrRuleNotFound) {
			return created, err
		}

		cmd, err := seed.command()
		if err != nil {
			return created, fmt.Errorf("rule %q: %w", seed.Name, err)
		}
		if _, err := s.CreateRule(ctx, cmd); err != nil {
			return created, fmt.Errorf("rule %q: %w", seed.Name, err)
		}
		created++
	}

	s.logger.InfoContext(ctx, "monitoring rules imported", "created", created, "total", len(file.Rules))
	return created, nil
}
