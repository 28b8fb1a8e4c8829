package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/amlplatform/internal/casemanagement/application"
	"github.com/wyfcoding/amlplatform/internal/casemanagement/domain"
	"github.com/wyfcoding/amlplatform/pkg/middleware"
)

type store struct {
	mu      sync.Mutex
	cases   map[string]*domain.Case
	reports map[string]*domain.SuspiciousActivityReport
}

type caseRepo struct{ *store }

func (r caseRepo) Save(_ context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cases[c.CaseNumber] = c
	return nil
}

func (r caseRepo) GetByCaseNumber(_ context.Context, n string) (*domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cases[n]; ok {
		return c, nil
	}
	return nil, domain.ErrCaseNotFound
}

func (r caseRepo) FindBySourceAlert(_ context.Context, alertID string) (*domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cases {
		if c.SourceAlertID != nil && *c.SourceAlertID == alertID {
			return c, nil
		}
	}
	return nil, nil
}

func (r caseRepo) List(context.Context, domain.CaseFilter) ([]*domain.Case, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Case, 0, len(r.cases))
	for _, c := range r.cases {
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

type reportRepo struct{ *store }

func (r reportRepo) Save(_ context.Context, rep *domain.SuspiciousActivityReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[rep.ReportID] = rep
	return nil
}

func (r reportRepo) GetByReportID(_ context.Context, id string) (*domain.SuspiciousActivityReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rep, ok := r.reports[id]; ok {
		return rep, nil
	}
	return nil, domain.ErrReportNotFound
}

func (r reportRepo) ListByCase(_ context.Context, n string) ([]*domain.SuspiciousActivityReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.SuspiciousActivityReport
	for _, rep := range r.reports {
		if rep.CaseNumber == n {
			out = append(out, rep)
		}
	}
	return out, nil
}

func (r reportRepo) ListByStatus(context.Context, domain.ReportStatus, int) ([]*domain.SuspiciousActivityReport, error) {
	return nil, nil
}

type filer struct{ err error }

func (f *filer) File(_ context.Context, r *domain.SuspiciousActivityReport) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "GOAML-" + r.ReportID, nil
}

func (f *filer) Status(context.Context, string) (string, error) { return "ACCEPTED", nil }

func newRouter(t *testing.T) (*gin.Engine, *application.CaseService, *filer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &store{cases: map[string]*domain.Case{}, reports: map[string]*domain.SuspiciousActivityReport{}}
	f := &filer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := application.NewCaseService(caseRepo{s}, reportRepo{s}, nil, f, decimal.NewFromInt(40000), nil, logger, application.Options{})

	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r, svc, f
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ActorHeader, "mlro")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func openFromAlert(t *testing.T, svc *application.CaseService) *domain.Case {
	t.Helper()
	c, _, err := svc.OpenFromAlert(context.Background(), domain.AlertSnapshot{
		AlertID:       "A-1",
		TransactionID: "TX-1",
		OriginatorID:  "C-1",
		AlertType:     "AMOUNT_THRESHOLD",
		Severity:      "HIGH",
		Amount:        decimal.NewFromInt(52000),
		Currency:      "AED",
	})
	require.NoError(t, err)
	return c
}

func TestOpenAndListCases(t *testing.T) {
	r, _, _ := newRouter(t)

	w := do(r, http.MethodPost, "/api/v1/cases", `{"customer_id":"C-9","summary":"adverse media","priority":"high"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created domain.Case
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, domain.CaseTypeInvestigation, created.CaseType)
	assert.Equal(t, "HIGH", created.Priority)

	w = do(r, http.MethodPost, "/api/v1/cases", `{"summary":"missing customer"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/cases", `{"customer_id":"C-9","summary":"x","case_type":"fraud"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/v1/cases?page=1&page_size=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items      []domain.Case `json:"items"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.EqualValues(t, 1, list.Pagination.Total)

	w = do(r, http.MethodGet, "/api/v1/cases/CASE-404", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCaseActions(t *testing.T) {
	r, svc, _ := newRouter(t)
	c := openFromAlert(t, svc)
	base := "/api/v1/cases/" + c.CaseNumber

	w := do(r, http.MethodPost, base+"/assign", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, base+"/assign", `{"assignee":"analyst-1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"IN_PROGRESS"`)

	w = do(r, http.MethodPost, base+"/hold", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodPost, base+"/close", `{"decision":"archive"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, base+"/close", `{"decision":"no_action","notes":"benign"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodPost, base+"/escalate", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, base+"/reports", `{"narrative":"n"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReportFlow(t *testing.T) {
	r, svc, f := newRouter(t)
	c := openFromAlert(t, svc)

	w := do(r, http.MethodPost, "/api/v1/cases/"+c.CaseNumber+"/reports", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/cases/"+c.CaseNumber+"/reports", `{"narrative":"Structured deposits","indicators":["structuring"]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var report domain.SuspiciousActivityReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, domain.ReportDraft, report.Status)

	w = do(r, http.MethodPost, "/api/v1/reports/"+report.ReportID+"/status", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	f.err = errors.New("goAML unavailable")
	w = do(r, http.MethodPost, "/api/v1/reports/"+report.ReportID+"/submit", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	f.err = nil
	w = do(r, http.MethodPost, "/api/v1/reports/"+report.ReportID+"/submit", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"SUBMITTED"`)

	w = do(r, http.MethodPost, "/api/v1/reports/"+report.ReportID+"/submit", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/api/v1/reports/"+report.ReportID+"/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ACCEPTED"`)

	w = do(r, http.MethodGet, "/api/v1/cases/"+c.CaseNumber+"/reports", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), report.ReportID)

	w = do(r, http.MethodGet, "/api/v1/reports/STR-404", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
