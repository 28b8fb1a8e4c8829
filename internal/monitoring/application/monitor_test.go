package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
)

type harness struct {
	txns     *memTxnRepo
	rules    *memRuleRepo
	alerts   *memAlertRepo
	profiles *memProfileRepo
	pub      *memPublisher
	audit    *memAudit
	screener *stubScreener

	monitor  *MonitoringService
	risk     *RiskService
	alertSvc *AlertService
	ruleSvc  *RuleService
}

func newHarness(configure ...func(*Options)) *harness {
	h := &harness{
		txns:     newMemTxnRepo(),
		rules:    &memRuleRepo{},
		alerts:   &memAlertRepo{},
		profiles: newMemProfileRepo(),
		pub:      &memPublisher{},
		audit:    &memAudit{},
		screener: &stubScreener{},
	}
	opts := testOptions()
	opts.Audit = h.audit
	opts.Screener = h.screener
	for _, fn := range configure {
		fn(&opts)
	}

	logger := discardLogger()
	h.risk = NewRiskService(h.alerts, h.profiles, domain.RiskThresholds{High: 75, Medium: 50}, 90*24*time.Hour, h.pub, logger, opts)
	h.monitor = NewMonitoringService(h.txns, h.rules, h.alerts, h.risk, domain.DefaultPatternConfig(), h.pub, logger, opts)
	h.alertSvc = NewAlertService(h.alerts, h.risk, 24*time.Hour, h.pub, logger, opts)
	h.ruleSvc = NewRuleService(h.rules, h.pub, logger, opts)
	return h
}

func (h *harness) addRule(rule *domain.MonitoringRule) {
	if rule.RiskLevel == "" {
		rule.RiskLevel = domain.SeverityMedium
	}
	if rule.TransactionTypes == nil {
		rule.TransactionTypes = []string{"WIRE"}
	}
	rule.IsActive = true
	_ = h.rules.Save(context.Background(), rule)
}

func (h *harness) submit(t *testing.T, id, txnType string, amount int64, originator string) *domain.Transaction {
	t.Helper()
	txn, err := h.monitor.SubmitTransaction(context.Background(), SubmitTransactionCommand{
		TransactionID: id,
		Type:          txnType,
		Amount:        decimal.NewFromInt(amount),
		Originator: domain.Party{
			CustomerID:   originator,
			CustomerType: domain.CustomerTypeIndividual,
			FirstName:    "Ali",
			LastName:     "Hassan",
		},
	})
	require.NoError(t, err)
	return txn
}

// seedPast 直接写入历史交易（已完成监控）
func (h *harness) seedPast(id string, amount int64, originator string, age time.Duration) {
	txn := domain.NewTransaction(id, "WIRE", decimal.NewFromInt(amount), "", domain.Party{CustomerID: originator}, testNow.Add(-age))
	txn.MonitoringStatus = domain.MonitoringCompleted
	txn.CreatedAt = testNow.Add(-age)
	_ = h.txns.Create(context.Background(), txn)
}

func amountRule(id string, priority int, threshold int64) *domain.MonitoringRule {
	d := decimal.NewFromInt(threshold)
	return &domain.MonitoringRule{
		RuleID:     id,
		Name:       "amount " + id,
		RuleType:   domain.RuleTypeAmountThreshold,
		Priority:   priority,
		Thresholds: domain.RuleThresholds{AmountThreshold: &d},
	}
}

func TestMonitorTransactionRuleHit(t *testing.T) {
	h := newHarness()
	h.addRule(amountRule("R-1", 1, 50000))
	h.submit(t, "TX-1", "WIRE", 60000, "C-1")

	res, err := h.monitor.MonitorTransaction(context.Background(), "TX-1")
	require.NoError(t, err)

	assert.False(t, res.Skipped)
	assert.Equal(t, domain.MonitoringCompleted, res.Status)
	assert.True(t, res.IsSuspicious)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "AMOUNT_THRESHOLD", res.Alerts[0].AlertType)
	assert.Equal(t, "R-1", res.Alerts[0].RuleID)
	assert.Empty(t, res.FailedStages)

	txn, _ := h.txns.GetByTransactionID(context.Background(), "TX-1")
	assert.True(t, txn.IsSuspicious)
	assert.True(t, txn.AlertGenerated)

	topics := h.pub.topics()
	assert.Equal(t, 1, h.pub.count(domain.EventAlertCreated))
	assert.Equal(t, 1, h.pub.count(domain.EventTransactionMonitored))
	assert.True(t, hasTopic(topics, domain.EventRiskLevelChanged))

	profile, err := h.risk.GetProfile(context.Background(), "C-1")
	require.NoError(t, err)
	assert.Equal(t, 50, profile.RiskScore)
	assert.Equal(t, domain.SeverityMedium, profile.RiskLevel)
}

func TestMonitorTransactionIsIdempotent(t *testing.T) {
	h := newHarness()
	h.addRule(amountRule("R-1", 1, 100))
	h.submit(t, "TX-1", "WIRE", 500, "C-1")

	_, err := h.monitor.MonitorTransaction(context.Background(), "TX-1")
	require.NoError(t, err)

	res, err := h.monitor.MonitorTransaction(context.Background(), "TX-1")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, domain.MonitoringCompleted, res.Status)
	assert.Len(t, h.alerts.alerts, 1)
}

func TestMonitorTransactionNotFound(t *testing.T) {
	h := newHarness()
	_, err := h.monitor.MonitorTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	assert.True(t, IsNotFound(err))
}

func TestRulesFilteredByTypeAndActive(t *testing.T) {
	h := newHarness()
	cardOnly := amountRule("R-card", 1, 10)
	cardOnly.TransactionTypes = []string{"CARD"}
	h.addRule(cardOnly)

	inactive := amountRule("R-off", 2, 10)
	h.addRule(inactive)
	inactive.Deactivate()

	h.submit(t, "TX-1", "WIRE", 500, "C-1")
	res, err := h.monitor.MonitorTransaction(context.Background(), "TX-1")
	require.NoError(t, err)
	assert.Empty(t, res.Alerts)
	assert.False(t, res.IsSuspicious)
	assert.Equal(t, domain.MonitoringCompleted, res.Status)
}

func TestRulesEvaluatedInPriorityOrder(t *testing.T) {
	h := newHarness()
	h.addRule(amountRule("R-late", 10, 10))
	h.addRule(amountRule("R-early", 1, 10))

	h.submit(t, "TX-1", "WIRE", 500, "C-1")
	res, err := h.monitor.MonitorTransaction(context.Background(), "TX-1")
	require.NoError(t, err)
	require.Len(t, res.Alerts, 2)
	assert.Equal(t, "R-early", res.Alerts[0].RuleID)
	assert.Equal(t, "R-late", res.Alerts[1].RuleID)
}

func TestCooldownSuppressesRepeatAlerts(t *testing.T) {
	h := newHarness()
	rule := amountRule("R-1", 1, 100)
	rule.CooldownSeconds = 3600
	h.addRule(rule)

	h.submit(t, "TX-1", "WIRE", 500, "C-1")
	h.submit(t, "TX-2", "WIRE", 700, "C-1")
	h.submit(t, "TX-3", "WIRE", 700, "C-2")

	for _, id := range []string{"TX-1", "TX-2", "TX-3"} {
		_, err := h.monitor.MonitorTransaction(context.Background(), id)
		require.NoError(t, err)
	}

	byOriginator := map[string]int{}
	for _, a := range h.alerts.alerts {
		byOriginator[a.OriginatorID]++
	}
	assert.Equal(t, map[string]int{"C-1": 1, "C-2": 1}, byOriginator)
}

func TestCooldownGateRejectsConcurrentWinner(t *testing.T) {
	h := newHarness(func(o *Options) { o.Cooldown = &stubGate{deny: true} })
	rule := amountRule("R-1", 1, 100)
	rule.CooldownSeconds = 60
	h.addRule(rule)

	h.submit(t, "TX-1", "WIRE", 500, "C-1")
	res, err := h.monitor.MonitorTransaction(context.Background(), "TX-1")
	require.NoError(t, err)
	assert.Empty(t, res.Alerts)
}

func TestCooldownGateIgnoredWithoutCooldown(t *testing.T) {
	h := newHarness(func(o *Options) { o.Cooldown = &stubGate{deny: true} })
	h.addRule(amountRule("R-1", 1, 100))

	h.submit(t, "TX-1", "WIRE", 500, "C-1")
	res, err := h.monitor.MonitorTransaction(context.Background(), "TX-1")
	require.NoError(t, err)
	assert.Len(t, res.Alerts, 1)
}

func TestAutoEscalateRule(t *testing.T) {
	h := newHarness()
	rule := amountRule("R-1", 1, 100)
	rule.AutoEscalate = true
	rule.RiskLevel = domain.SeverityCritical
	h.addRule(rule)

	h.submit(t, "TX-1", "WIRE", 500, "C-1")
	res, err := h.monitor.MonitorTransaction(context.Background(), "TX-1")
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	assert.True(t, res.Alerts[0].IsEscalated)
	assert.Equal(t, domain.AlertStatusEscalated, res.Alerts[0].Status)
	assert.Equal(t, 1, h.pub.count(domain.EventAlertEscalated))
}

func TestFrequencyRuleCountsLookbackWindow(t *testing.T) {
	h := newHarness()
	freq := int64(2)
	h.addRule(&domain.MonitoringRule{
		RuleID:          "R-freq",
		Name:            "frequent wires",
		RuleType:        domain.RuleTypeFrequency,
		Thresholds:      domain.RuleThresholds{FrequencyThreshold: &freq},
		LookbackSeconds: 3600,
	})
	h.seedPast("OLD-1", 10, "C-1", 10*time.Minute)
	h.seedPast("OLD-2", 10, "C-1", 20*time.Minute)
	h.seedPast("OLD-3", 10, "C-1", 3*time.Hour)

	h.submit(t, "TX-1", "WIRE", 10, "C-1")
	res, err := h.monitor.MonitorTransaction(context.Background(), "TX-1")
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "FREQUENCY", res.Alerts[0].AlertType)
}

func TestHighRiskCountryRule(t *testing.T) {
	h := newHarness()
	h.addRule(&domain.MonitoringRule{
		RuleID:     "R-geo",
		Name:       "high risk corridor",
		RuleType:   domain.RuleTypeGeography,
		RiskLevel:  domain.SeverityHigh,
		Conditions: domain.RuleConditions{HighRiskCountries: []string{"KP", "IR"}},
	})

	_, err := h.monitor.SubmitTransaction(context.Background(), SubmitTransactionCommand{
		TransactionID:      "TX-1",
		Type:               "WIRE",
		Amount:             decimal.NewFromInt(5),
		OriginatingCountry: "AE",
		DestinationCountry: "IR",
		Originator:         domain.Party{CustomerID: "C-1", CustomerType: "CORPORATE", CompanyName: "Acme"},
	})
	require.NoError(t, err)

	res, err := h.monitor.MonitorTransaction(context.Background(), "TX-1")
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, domain.SeverityHigh, res.Alerts[0].Severity)
}

func TestStructuringPatternAlert(t *testing.T) {
	h := newHarness()
	h.seedPast("OLD-1", 4000, "C-1", 48*time.Hour)
	h.seedPast("OLD-2", 4000, "C-1", 5*24*time.Hour)
	h.seedPast("ANCIENT", 9000, "C-1", 40*24*time.Hour)

	h.submit(t, "TX-1", "WIRE", 3000, "C-1")
	res, err := h.monitor.MonitorTransaction(context.Background(), "TX-1")
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, domain.AlertTypeUnusualPattern, res.Alerts[0].AlertType)
	assert.Equal(t, "STRUCTURING", res.Alerts[0].DetectionRules["pattern_type"])
	assert.Equal(t, "11000", res.Alerts[0].Details["total_amount"])
}

func TestWatchlistMatchMarksSuspiciousWithoutAlert(t *testing.T) {
	h := newHarness()
	h.screener.matches = 1

	h.submit(t, "TX-1", "WIRE", 10, "C-1")
	res, err := h.monitor.MonitorTransaction(context.Background(), "TX-1")
	require.NoError(t, err)
	assert.Empty(t, res.Alerts)
	assert.Equal(t, 1, res.MatchCount)
	assert.True(t, res.IsSuspicious)
	assert.Equal(t, []string{"Ali Hassan"}, h.screener.names)

	txn, _ := h.txns.GetByTransactionID(context.Background(), "TX-1")
	assert.True(t, txn.AlertGenerated)
}

func TestStageFailureKeepsOtherResults(t *testing.T) {
	h := newHarness()
	h.screener.err = errors.New("watchlist store down")
	h.addRule(amountRule("R-1", 1, 100))

	h.submit(t, "TX-1", "WIRE", 500, "C-1")
	res, err := h.monitor.MonitorTransaction(context.Background(), "TX-1")
	require.NoError(t, err)
	assert.Equal(t, domain.MonitoringFailed, res.Status)
	assert.Equal(t, []string{StageScreening}, res.FailedStages)
	assert.Len(t, res.Alerts, 1)
	assert.True(t, res.IsSuspicious)

	res, err = h.monitor.MonitorTransaction(context.Background(), "TX-1")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestSubmitTransactionValidation(t *testing.T) {
	h := newHarness()
	_, err := h.monitor.SubmitTransaction(context.Background(), SubmitTransactionCommand{Type: "WIRE"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransaction)

	_, err = h.monitor.SubmitTransaction(context.Background(), SubmitTransactionCommand{
		Type:       "WIRE",
		Amount:     decimal.NewFromInt(-1),
		Originator: domain.Party{CustomerID: "C-1"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransaction)

	txn, err := h.monitor.SubmitTransaction(context.Background(), SubmitTransactionCommand{
		Type:       "WIRE",
		Amount:     decimal.NewFromInt(1),
		Originator: domain.Party{CustomerID: "C-1"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, txn.TransactionID)
	assert.Equal(t, "AED", txn.Currency)
	assert.Equal(t, testNow, txn.TransactionDate)
}

func TestSubmitAndMonitor(t *testing.T) {
	h := newHarness()
	h.addRule(amountRule("R-1", 1, 100))

	res, err := h.monitor.SubmitAndMonitor(context.Background(), SubmitTransactionCommand{
		TransactionID: "TX-9",
		Type:          "WIRE",
		Amount:        decimal.NewFromInt(1000),
		Originator:    domain.Party{CustomerID: "C-9"},
	})
	require.NoError(t, err)
	assert.Equal(t, "TX-9", res.TransactionID)
	assert.Len(t, res.Alerts, 1)
}

func TestFailedAlertSaveReleasesCooldown(t *testing.T) {
	gate := &stubGate{}
	h := newHarness(func(o *Options) { o.Cooldown = gate })
	flaky := &flakyAlertRepo{memAlertRepo: h.alerts, failures: 1}
	opts := testOptions()
	opts.Cooldown = gate
	h.monitor = NewMonitoringService(h.txns, h.rules, flaky, h.risk, domain.DefaultPatternConfig(), h.pub, discardLogger(), opts)
	rule := amountRule("R-1", 1, 100)
	rule.CooldownSeconds = 3600
	h.addRule(rule)

	h.submit(t, "TX-1", "WIRE", 500, "C-1")
	h.submit(t, "TX-2", "WIRE", 700, "C-1")

	res, err := h.monitor.MonitorTransaction(context.Background(), "TX-1")
	require.NoError(t, err)
	assert.Equal(t, domain.MonitoringFailed, res.Status)
	assert.Equal(t, []string{StageRules}, res.FailedStages)
	assert.Empty(t, res.Alerts)
	assert.Equal(t, 1, gate.released)

	res, err = h.monitor.MonitorTransaction(context.Background(), "TX-2")
	require.NoError(t, err)
	assert.Equal(t, domain.MonitoringCompleted, res.Status)
	require.Len(t, res.Alerts, 1)
	assert.Len(t, h.alerts.alerts, 1)
}

func TestAlertEventsPublishedWhenFinalSaveFails(t *testing.T) {
	h := newHarness()
	flaky := &flakyTxnRepo{memTxnRepo: h.txns, failOn: 2}
	h.monitor = NewMonitoringService(flaky, h.rules, h.alerts, h.risk, domain.DefaultPatternConfig(), h.pub, discardLogger(), testOptions())
	h.addRule(amountRule("R-1", 1, 100))
	h.submit(t, "TX-1", "WIRE", 500, "C-1")

	_, err := h.monitor.MonitorTransaction(context.Background(), "TX-1")
	require.Error(t, err)
	assert.Len(t, h.alerts.alerts, 1)
	assert.Equal(t, 1, h.pub.count(domain.EventAlertCreated))
	assert.Zero(t, h.pub.count(domain.EventTransactionMonitored))
}
