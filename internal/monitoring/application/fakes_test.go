package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() Options {
	var seq atomic.Int64
	return Options{
		Clock: func() time.Time { return testNow },
		NewID: func() string { return fmt.Sprintf("ID-%03d", seq.Add(1)) },
	}
}

type memTxnRepo struct {
	mu   sync.Mutex
	txns map[string]*domain.Transaction
}

func newMemTxnRepo() *memTxnRepo {
	return &memTxnRepo{txns: map[string]*domain.Transaction{}}
}

func (r *memTxnRepo) Create(_ context.Context, txn *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.txns[txn.TransactionID]; ok {
		return domain.ErrDuplicateTransaction
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = testNow
	}
	r.txns[txn.TransactionID] = txn
	return nil
}

func (r *memTxnRepo) Save(_ context.Context, txn *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txns[txn.TransactionID] = txn
	return nil
}

func (r *memTxnRepo) GetByTransactionID(_ context.Context, id string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.txns[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return txn, nil
}

func (r *memTxnRepo) ListByOriginatorSince(_ context.Context, originatorID string, since time.Time, excludeID string) ([]*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Transaction
	for _, t := range r.txns {
		if t.Originator.CustomerID == originatorID && !t.CreatedAt.Before(since) && t.TransactionID != excludeID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memTxnRepo) CountByOriginatorSince(ctx context.Context, originatorID string, since time.Time) (int64, error) {
	txns, err := r.ListByOriginatorSince(ctx, originatorID, since, "")
	return int64(len(txns)), err
}

func (r *memTxnRepo) List(_ context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Transaction
	for _, t := range r.txns {
		if filter.OriginatorID != "" && t.Originator.CustomerID != filter.OriginatorID {
			continue
		}
		out = append(out, t)
	}
	return out, int64(len(out)), nil
}

type memRuleRepo struct {
	mu    sync.Mutex
	rules []*domain.MonitoringRule
}

func (r *memRuleRepo) Save(_ context.Context, rule *domain.MonitoringRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.rules {
		if existing.RuleID == rule.RuleID {
			r.rules[i] = rule
			return nil
		}
	}
	r.rules = append(r.rules, rule)
	return nil
}

func (r *memRuleRepo) GetByRuleID(_ context.Context, id string) (*domain.MonitoringRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range r.rules {
		if rule.RuleID == id {
			return rule, nil
		}
	}
	return nil, domain.ErrRuleNotFound
}

func (r *memRuleRepo) GetByName(_ context.Context, name string) (*domain.MonitoringRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range r.rules {
		if rule.Name == name {
			return rule, nil
		}
	}
	return nil, domain.ErrRuleNotFound
}

func (r *memRuleRepo) ListActive(_ context.Context) ([]*domain.MonitoringRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.MonitoringRule
	for _, rule := range r.rules {
		if rule.IsActive {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *memRuleRepo) List(_ context.Context, active *bool) ([]*domain.MonitoringRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.MonitoringRule
	for _, rule := range r.rules {
		if active == nil || rule.IsActive == *active {
			out = append(out, rule)
		}
	}
	return out, nil
}

type memAlertRepo struct {
	mu     sync.Mutex
	alerts []*domain.TransactionAlert
}

func (r *memAlertRepo) Save(_ context.Context, alert *domain.TransactionAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.alerts {
		if existing.AlertID == alert.AlertID {
			r.alerts[i] = alert
			return nil
		}
	}
	r.alerts = append(r.alerts, alert)
	return nil
}

func (r *memAlertRepo) GetByAlertID(_ context.Context, id string) (*domain.TransactionAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.AlertID == id {
			return a, nil
		}
	}
	return nil, domain.ErrAlertNotFound
}

func (r *memAlertRepo) ExistsForRuleSince(_ context.Context, originatorID, ruleID string, since time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.OriginatorID == originatorID && a.RuleID == ruleID && !a.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memAlertRepo) ListOpenByOriginatorSince(_ context.Context, originatorID string, since time.Time) ([]*domain.TransactionAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TransactionAlert
	for _, a := range r.alerts {
		if a.OriginatorID == originatorID && !a.IsTerminal() && !a.CreatedAt.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAlertRepo) ListEscalationCandidates(_ context.Context, limit int) ([]*domain.TransactionAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TransactionAlert
	for _, a := range r.alerts {
		if a.Status == domain.AlertStatusNew && !a.IsEscalated && a.Severity.AtLeast(domain.SeverityHigh) {
			out = append(out, a)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memAlertRepo) List(_ context.Context, filter domain.AlertFilter) ([]*domain.TransactionAlert, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TransactionAlert
	for _, a := range r.alerts {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

type memProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*domain.CustomerRiskProfile
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{profiles: map[string]*domain.CustomerRiskProfile{}}
}

func (r *memProfileRepo) Save(_ context.Context, p *domain.CustomerRiskProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.CustomerID] = p
	return nil
}

func (r *memProfileRepo) GetByCustomerID(_ context.Context, id string) (*domain.CustomerRiskProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return p, nil
}

func (r *memProfileRepo) ListByLevel(_ context.Context, level domain.Severity, _, _ int) ([]*domain.CustomerRiskProfile, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.CustomerRiskProfile
	for _, p := range r.profiles {
		if level == "" || p.RiskLevel == level {
			out = append(out, p)
		}
	}
	return out, int64(len(out)), nil
}

type published struct {
	topic string
	key   string
	event any
}

type memPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *memPublisher) Publish(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic: topic, key: key, event: event})
	return nil
}

func (p *memPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.topic)
	}
	return out
}

func (p *memPublisher) count(topic string) int {
	n := 0
	for _, t := range p.topics() {
		if t == topic {
			n++
		}
	}
	return n
}

type auditEntry struct {
	actor, action, entityType, entityID string
}

type memAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *memAudit) Record(_ context.Context, actor, action, entityType, entityID string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{actor, action, entityType, entityID})
	return nil
}

func (a *memAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.action)
	}
	return out
}

type stubScreener struct {
	matches int
	err     error
	names   []string
}

func (s *stubScreener) ScreenTransactionParties(_ context.Context, _ string, parties []domain.Party) (int, error) {
	for _, p := range parties {
		s.names = append(s.names, p.DisplayName())
	}
	return s.matches, s.err
}

type stubGate struct {
	mu    sync.Mutex
	taken    map[string]bool
	deny     bool
	released int
}

func (g *stubGate) Acquire(_ context.Context, originatorID, ruleID string, _ time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.deny {
		return false, nil
	}
	if g.taken == nil {
		g.taken = map[string]bool{}
	}
	key := originatorID + ":" + ruleID
	if g.taken[key] {
		return false, nil
	}
	g.taken[key] = true
	return true, nil
}

func (g *stubGate) Release(_ context.Context, originatorID, ruleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.taken, originatorID+":"+ruleID)
	g.released++
	return nil
}

// flakyAlertRepo 前 failures 次保存失败
type flakyAlertRepo struct {
	*memAlertRepo
	failures int
}

func (r *flakyAlertRepo) Save(ctx context.Context, alert *domain.TransactionAlert) error {
	r.mu.Lock()
	if r.failures > 0 {
		r.failures--
		r.mu.Unlock()
		return errors.New("db blip")
	}
	r.mu.Unlock()
	return r.memAlertRepo.Save(ctx, alert)
}

// flakyTxnRepo 第 failOn 次 Save 失败
type flakyTxnRepo struct {
	*memTxnRepo
	saves  int
	failOn int
}

func (r *flakyTxnRepo) Save(ctx context.Context, txn *domain.Transaction) error {
	r.saves++
	if r.saves == r.failOn {
		return errors.New("db blip")
	}
	return r.memTxnRepo.Save(ctx, txn)
}

func hasTopic(topics []string, topic string) bool {
	return slices.Contains(topics, topic)
}
