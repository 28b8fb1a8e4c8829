package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
	"github.com/wyfcoding/amlplatform/pkg/mq"
)

// 监控阶段
const (
	StageRules     = "rules"
	StageScreening = "screening"
	StagePatterns  = "patterns"
)

// MonitoringService 交易监控服务
type MonitoringService struct {
	base
	txnRepo   domain.TransactionRepository
	ruleRepo  domain.RuleRepository
	alertRepo domain.AlertRepository
	cooldown  domain.CooldownGate
	screener  WatchlistScreener
	risk      *RiskService
	patterns  domain.PatternConfig
}

// NewMonitoringService 创建交易监控服务
func NewMonitoringService(
	txnRepo domain.TransactionRepository,
	ruleRepo domain.RuleRepository,
	alertRepo domain.AlertRepository,
	risk *RiskService,
	patterns domain.PatternConfig,
	publisher mq.EventPublisher,
	logger *slog.Logger,
	opts Options,
) *MonitoringService {
	return &MonitoringService{
		base:      newBase(publisher, logger, opts),
		txnRepo:   txnRepo,
		ruleRepo:  ruleRepo,
		alertRepo: alertRepo,
		cooldown:  opts.Cooldown,
		screener:  opts.Screener,
		risk:      risk,
		patterns:  patterns,
	}
}

// SubmitTransactionCommand 提交交易命令
type SubmitTransactionCommand struct {
	TransactionID      string
	Type               string
	Amount             decimal.Decimal
	Currency           string
	SourceAccount      string
	DestinationAccount string
	OriginatingCountry string
	DestinationCountry string
	Description        string
	ReferenceNumber    string
	TransactionDate    time.Time
	Originator         domain.Party
	Beneficiary        domain.Party
}

// SubmitTransaction 保存待监控交易
func (s *MonitoringService) SubmitTransaction(ctx context.Context, cmd SubmitTransactionCommand) (*domain.Transaction, error) {
	start := time.Now()

	if cmd.Type == "" || cmd.Originator.CustomerID == "" {
		return nil, fmt.Errorf("%w: type and originator are required", domain.ErrInvalidTransaction)
	}
	if cmd.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative", domain.ErrInvalidTransaction)
	}
	if cmd.TransactionID == "" {
		cmd.TransactionID = s.newID()
	}
	if cmd.TransactionDate.IsZero() {
		cmd.TransactionDate = s.now()
	}

	txn := domain.NewTransaction(cmd.TransactionID, cmd.Type, cmd.Amount, cmd.Currency, cmd.Originator, cmd.TransactionDate)
	txn.Beneficiary = cmd.Beneficiary
	txn.SourceAccount = cmd.SourceAccount
	txn.DestinationAccount = cmd.DestinationAccount
	txn.OriginatingCountry = cmd.OriginatingCountry
	txn.DestinationCountry = cmd.DestinationCountry
	txn.Description = cmd.Description
	txn.ReferenceNumber = cmd.ReferenceNumber

	if err := s.txnRepo.Create(ctx, txn); err != nil {
		s.logger.ErrorContext(ctx, "failed to save transaction",
			"transaction_id", cmd.TransactionID,
			"error", err,
			"duration", time.Since(start))
		return nil, err
	}

	s.logger.InfoContext(ctx, "transaction submitted",
		"transaction_id", txn.TransactionID,
		"originator_id", txn.Originator.CustomerID,
		"duration", time.Since(start))
	return txn, nil
}

// MonitorResult 监控结果
type MonitorResult struct {
	TransactionID string                     `json:"transaction_id"`
	Status        domain.MonitoringStatus    `json:"status"`
	Skipped       bool                       `json:"skipped"`
	IsSuspicious  bool                       `json:"is_suspicious"`
	Alerts        []*domain.TransactionAlert `json:"alerts"`
	MatchCount    int                        `json:"match_count"`
	FailedStages  []string                   `json:"failed_stages,omitempty"`
}

// MonitorTransaction 对交易执行规则、名单筛查与模式检测
func (s *MonitoringService) MonitorTransaction(ctx context.Context, transactionID string) (*MonitorResult, error) {
	start := time.Now()

	txn, err := s.txnRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := txn.StartMonitoring(now); err != nil {
		if errors.Is(err, domain.ErrAlreadyMonitored) {
			s.observeStatus("skipped")
			s.logger.InfoContext(ctx, "transaction already monitored",
				"transaction_id", transactionID,
				"status", txn.MonitoringStatus)
			return &MonitorResult{TransactionID: transactionID, Status: txn.MonitoringStatus, Skipped: true, IsSuspicious: txn.IsSuspicious}, nil
		}
		return nil, err
	}
	if err := s.txnRepo.Save(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to mark transaction in progress: %w", err)
	}

	var (
		ruleAlerts    []*domain.TransactionAlert
		patternAlerts []*domain.TransactionAlert
		matches       int
		stageErrs     [3]error
		g             errgroup.Group
	)
	g.Go(func() error {
		ruleAlerts, stageErrs[0] = s.timed(StageRules, func() ([]*domain.TransactionAlert, error) {
			return s.applyRules(ctx, txn, now)
		})
		return stageErrs[0]
	})
	g.Go(func() error {
		stageStart := time.Now()
		matches, stageErrs[1] = s.screenParties(ctx, txn)
		s.observeStage(StageScreening, time.Since(stageStart))
		return stageErrs[1]
	})
	g.Go(func() error {
		patternAlerts, stageErrs[2] = s.timed(StagePatterns, func() ([]*domain.TransactionAlert, error) {
			return s.analyzePatterns(ctx, txn, now)
		})
		return stageErrs[2]
	})
	_ = g.Wait()

	var failed []string
	for i, stage := range []string{StageRules, StageScreening, StagePatterns} {
		if stageErrs[i] != nil {
			failed = append(failed, stage)
			s.logger.ErrorContext(ctx, "monitoring stage failed",
				"transaction_id", transactionID,
				"stage", stage,
				"error", stageErrs[i])
		}
	}

	alerts := append(ruleAlerts, patternAlerts...)
	// 已落库告警的事件在保存交易状态之前发布
	for _, alert := range alerts {
		s.publishEvents(ctx, alert.TransactionID, alert)
	}

	finished := s.now()
	if len(alerts) > 0 || matches > 0 {
		types := alertTypes(alerts, matches)
		txn.MarkSuspicious(fmt.Sprintf("%d alert(s), %d watchlist match(es)", len(alerts), matches), finished)
		txn.GenerateAlert(types, map[string]any{"alert_count": len(alerts), "match_count": matches}, finished)
	}
	txn.FinishMonitoring(len(failed) > 0, finished)

	if err := s.txnRepo.Save(ctx, txn); err != nil {
		s.logger.ErrorContext(ctx, "failed to save monitored transaction",
			"transaction_id", transactionID,
			"alerts", len(alerts),
			"error", err,
			"duration", time.Since(start))
		return nil, err
	}

	s.publish(ctx, txn.TransactionID, &domain.TransactionMonitoredEvent{
		TransactionID:  txn.TransactionID,
		OriginatorID:   txn.Originator.CustomerID,
		Status:         txn.MonitoringStatus,
		IsSuspicious:   txn.IsSuspicious,
		AlertCount:     len(alerts),
		MatchCount:     matches,
		FailedStages:   failed,
		DurationMillis: time.Since(start).Milliseconds(),
		Timestamp:      finished,
	})
	s.observeStatus(strings.ToLower(string(txn.MonitoringStatus)))

	if s.risk != nil {
		if _, err := s.risk.RecalculateRisk(ctx, txn.Originator.CustomerID); err != nil {
			s.logger.ErrorContext(ctx, "failed to recalculate customer risk",
				"customer_id", txn.Originator.CustomerID,
				"error", err)
		}
	}

	s.logger.InfoContext(ctx, "transaction monitored",
		"transaction_id", transactionID,
		"status", txn.MonitoringStatus,
		"alerts", len(alerts),
		"matches", matches,
		"duration", time.Since(start))

	return &MonitorResult{
		TransactionID: transactionID,
		Status:        txn.MonitoringStatus,
		IsSuspicious:  txn.IsSuspicious,
		Alerts:        alerts,
		MatchCount:    matches,
		FailedStages:  failed,
	}, nil
}

// applyRules 按优先级评估适用规则
func (s *MonitoringService) applyRules(ctx context.Context, txn *domain.Transaction, now time.Time) ([]*domain.TransactionAlert, error) {
	rules, err := s.ruleRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active rules: %w", err)
	}
	domain.SortRulesByPriority(rules)

	var alerts []*domain.TransactionAlert
	for _, rule := range rules {
		if !rule.AppliesTo(txn.Type) {
			continue
		}

		ok, err := s.checkCooldown(ctx, txn, rule, now)
		if err != nil {
			return alerts, err
		}
		if !ok {
			continue
		}

		var recent int64
		if rule.NeedsFrequency() {
			recent, err = s.txnRepo.CountByOriginatorSince(ctx, txn.Originator.CustomerID, now.Add(-rule.LookbackPeriod()))
			if err != nil {
				return alerts, fmt.Errorf("failed to count recent transactions: %w", err)
			}
		}
		if !rule.Evaluate(txn, recent) {
			continue
		}

		if !s.acquireCooldown(ctx, txn, rule) {
			continue
		}

		alert := domain.NewRuleAlert(s.newID(), txn, rule, now)
		if rule.AutoEscalate {
			if err := alert.Escalate("auto-escalated by rule "+rule.Name, now); err != nil {
				s.logger.WarnContext(ctx, "failed to auto-escalate alert",
					"alert_id", alert.AlertID,
					"rule_id", rule.RuleID,
					"error", err)
			}
		}
		if err := s.alertRepo.Save(ctx, alert); err != nil {
			s.releaseCooldown(ctx, txn, rule)
			return alerts, fmt.Errorf("failed to save rule alert: %w", err)
		}
		s.observeAlert(alert)
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// checkCooldown 冷却期为 0 或窗口内无同规则告警时放行
func (s *MonitoringService) checkCooldown(ctx context.Context, txn *domain.Transaction, rule *domain.MonitoringRule, now time.Time) (bool, error) {
	if rule.CooldownPeriod() == 0 {
		return true, nil
	}
	exists, err := s.alertRepo.ExistsForRuleSince(ctx, txn.Originator.CustomerID, rule.RuleID, now.Add(-rule.CooldownPeriod()))
	if err != nil {
		return false, fmt.Errorf("failed to check rule cooldown: %w", err)
	}
	return !exists, nil
}

// acquireCooldown 并发监控时保证冷却窗口内只生成一条告警，缓存不可用时放行
func (s *MonitoringService) acquireCooldown(ctx context.Context, txn *domain.Transaction, rule *domain.MonitoringRule) bool {
	if s.cooldown == nil || rule.CooldownPeriod() == 0 {
		return true
	}
	ok, err := s.cooldown.Acquire(ctx, txn.Originator.CustomerID, rule.RuleID, rule.CooldownPeriod())
	if err != nil {
		s.logger.WarnContext(ctx, "cooldown gate unavailable",
			"rule_id", rule.RuleID,
			"error", err)
		return true
	}
	return ok
}

// releaseCooldown 告警保存失败后归还冷却键
func (s *MonitoringService) releaseCooldown(ctx context.Context, txn *domain.Transaction, rule *domain.MonitoringRule) {
	if s.cooldown == nil || rule.CooldownPeriod() == 0 {
		return
	}
	if err := s.cooldown.Release(ctx, txn.Originator.CustomerID, rule.RuleID); err != nil {
		s.logger.WarnContext(ctx, "failed to release cooldown gate",
			"rule_id", rule.RuleID,
			"originator_id", txn.Originator.CustomerID,
			"error", err)
	}
}

func (s *MonitoringService) screenParties(ctx context.Context, txn *domain.Transaction) (int, error) {
	if s.screener == nil {
		return 0, nil
	}
	n, err := s.screener.ScreenTransactionParties(ctx, txn.TransactionID, txn.Parties())
	if err != nil {
		return n, fmt.Errorf("watchlist screening failed: %w", err)
	}
	return n, nil
}

func (s *MonitoringService) analyzePatterns(ctx context.Context, txn *domain.Transaction, now time.Time) ([]*domain.TransactionAlert, error) {
	recent, err := s.txnRepo.ListByOriginatorSince(ctx, txn.Originator.CustomerID, now.Add(-s.patterns.Lookback), txn.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent transactions: %w", err)
	}

	var alerts []*domain.TransactionAlert
	for _, p := range domain.DetectPatterns(txn, recent, s.patterns, now) {
		alert := domain.NewPatternAlert(s.newID(), txn, p, now)
		if err := s.alertRepo.Save(ctx, alert); err != nil {
			return alerts, fmt.Errorf("failed to save pattern alert: %w", err)
		}
		s.observeAlert(alert)
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func (s *MonitoringService) timed(stage string, fn func() ([]*domain.TransactionAlert, error)) ([]*domain.TransactionAlert, error) {
	start := time.Now()
	alerts, err := fn()
	s.observeStage(stage, time.Since(start))
	return alerts, err
}

func (s *MonitoringService) observeStage(stage string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveStage(stage, d)
	}
}

func (s *MonitoringService) observeStatus(status string) {
	if s.metrics != nil {
		s.metrics.TransactionsMonitored.WithLabelValues(status).Inc()
	}
}

func (s *MonitoringService) observeAlert(a *domain.TransactionAlert) {
	if s.metrics == nil {
		return
	}
	s.metrics.AlertsCreated.WithLabelValues(a.AlertType, string(a.Severity)).Inc()
	if a.IsEscalated {
		s.metrics.AlertsEscalated.WithLabelValues("auto").Inc()
	}
}

func alertTypes(alerts []*domain.TransactionAlert, matches int) []string {
	seen := map[string]bool{}
	var types []string
	for _, a := range alerts {
		if !seen[a.AlertType] {
			seen[a.AlertType] = true
			types = append(types, a.AlertType)
		}
	}
	if matches > 0 {
		types = append(types, "WATCHLIST_MATCH")
	}
	return types
}
