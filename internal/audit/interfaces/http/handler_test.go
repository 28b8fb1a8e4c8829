package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/amlplatform/internal/audit/application"
	"github.com/wyfcoding/amlplatform/internal/audit/domain"
)

type memRepo struct {
	entries []*domain.Entry
	last    domain.Filter
}

func (r *memRepo) Append(_ context.Context, e *domain.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *memRepo) List(_ context.Context, f domain.Filter) ([]*domain.Entry, int64, error) {
	r.last = f
	var out []*domain.Entry
	for _, e := range r.entries {
		if (f.EntityType == "" || e.EntityType == f.EntityType) && (f.EntityID == "" || e.EntityID == f.EntityID) {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func TestListAuditTrail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &memRepo{}
	svc := application.NewAuditService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	require.NoError(t, svc.Record(ctx, "mlro", "CLOSED", "case", "CASE-1", nil))
	require.NoError(t, svc.Record(ctx, "analyst", "ESCALATED", "alert", "A-1", nil))

	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/audit/case/CASE-1?page=2&page_size=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Items []domain.Entry `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "CLOSED", body.Items[0].Action)
	assert.Equal(t, 5, repo.last.Offset)
	assert.Equal(t, 5, repo.last.Limit)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/audit?entity_type=alert", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"entity_id":"A-1"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/audit?entity_id=A-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
