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

	"github.com/wyfcoding/amlplatform/internal/casemanagement/domain"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memCaseRepo struct {
	mu    sync.Mutex
	cases []*domain.Case
	saves int
}

func (r *memCaseRepo) Save(_ context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	for i, existing := range r.cases {
		if existing.CaseNumber == c.CaseNumber {
			r.cases[i] = c
			return nil
		}
	}
	r.cases = append(r.cases, c)
	return nil
}

func (r *memCaseRepo) GetByCaseNumber(_ context.Context, n string) (*domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cases {
		if c.CaseNumber == n {
			return c, nil
		}
	}
	return nil, domain.ErrCaseNotFound
}

func (r *memCaseRepo) FindBySourceAlert(_ context.Context, alertID string) (*domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cases {
		if c.SourceAlertID != nil && *c.SourceAlertID == alertID {
			return c, nil
		}
	}
	return nil, nil
}

func (r *memCaseRepo) List(_ context.Context, f domain.CaseFilter) ([]*domain.Case, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Case
	for _, c := range r.cases {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.AssignedTo != "" && c.AssignedTo != f.AssignedTo {
			continue
		}
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

type memReportRepo struct {
	mu      sync.Mutex
	reports []*domain.SuspiciousActivityReport
}

func (r *memReportRepo) Save(_ context.Context, rep *domain.SuspiciousActivityReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.reports, rep) {
		r.reports = append(r.reports, rep)
	}
	return nil
}

func (r *memReportRepo) GetByReportID(_ context.Context, id string) (*domain.SuspiciousActivityReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rep := range r.reports {
		if rep.ReportID == id {
			return rep, nil
		}
	}
	return nil, domain.ErrReportNotFound
}

func (r *memReportRepo) ListByCase(_ context.Context, caseNumber string) ([]*domain.SuspiciousActivityReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.SuspiciousActivityReport
	for _, rep := range r.reports {
		if rep.CaseNumber == caseNumber {
			out = append(out, rep)
		}
	}
	return out, nil
}

func (r *memReportRepo) ListByStatus(_ context.Context, status domain.ReportStatus, limit int) ([]*domain.SuspiciousActivityReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.SuspiciousActivityReport
	for _, rep := range r.reports {
		if rep.Status == status && len(out) < limit {
			out = append(out, rep)
		}
	}
	return out, nil
}

type stubLookup struct {
	info *domain.TransactionInfo
	err  error
}

func (l *stubLookup) LookupTransaction(_ context.Context, id string) (*domain.TransactionInfo, error) {
	if l.err != nil {
		return nil, l.err
	}
	info := *l.info
	info.TransactionID = id
	return &info, nil
}

type stubFiler struct {
	fileErr   error
	statusErr error
	status    string
	filed     []string
}

func (f *stubFiler) File(_ context.Context, r *domain.SuspiciousActivityReport) (string, error) {
	if f.fileErr != nil {
		return "", f.fileErr
	}
	f.filed = append(f.filed, r.ReportID)
	return "GOAML-" + r.ReportID, nil
}

func (f *stubFiler) Status(_ context.Context, _ string) (string, error) {
	if f.statusErr != nil {
		return "", f.statusErr
	}
	return f.status, nil
}

type memPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *memPublisher) Publish(_ context.Context, topic, _ string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

type memAudit struct {
	mu      sync.Mutex
	actions []string
}

func (a *memAudit) Record(_ context.Context, _, action, _, _ string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
	return nil
}

var errGoAMLDown = errors.New("connection refused")

func testOptions(audit AuditRecorder) Options {
	var seq atomic.Int64
	return Options{
		Audit: audit,
		Clock: func() time.Time { return testNow },
		NewID: func() string { return fmt.Sprintf("id%03d", seq.Add(1)) },
	}
}
