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

func decimalOf(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestRecalculateRiskCreatesProfile(t *testing.T) {
	h := newHarness()
	h.seedAlert("A-1", "C-1", domain.SeverityCritical, time.Hour)
	h.seedAlert("A-2", "C-1", domain.SeverityHigh, time.Hour)

	profile, err := h.risk.RecalculateRisk(context.Background(), "C-1")
	require.NoError(t, err)
	assert.Equal(t, 87, profile.RiskScore)
	assert.Equal(t, domain.SeverityHigh, profile.RiskLevel)
	assert.Equal(t, 2, profile.OpenAlerts)
	require.Len(t, profile.History, 1)
	assert.Equal(t, 0, profile.History[0].OldScore)

	assert.Equal(t, 1, h.pub.count(domain.EventRiskLevelChanged))
	assert.Equal(t, []string{"RISK_LEVEL_CHANGED"}, h.audit.actions())
}

func TestRecalculateRiskIgnoresStaleAlerts(t *testing.T) {
	h := newHarness()
	h.seedAlert("A-old", "C-1", domain.SeverityCritical, 120*24*time.Hour)

	profile, err := h.risk.RecalculateRisk(context.Background(), "C-1")
	require.NoError(t, err)
	assert.Zero(t, profile.RiskScore)
	assert.Equal(t, domain.SeverityLow, profile.RiskLevel)
	assert.Empty(t, profile.History)
	assert.Zero(t, h.pub.count(domain.EventRiskLevelChanged))
}

func TestRecalculateRiskUnchangedLevel(t *testing.T) {
	h := newHarness()
	h.seedAlert("A-1", "C-1", domain.SeverityMedium, time.Hour)

	_, err := h.risk.RecalculateRisk(context.Background(), "C-1")
	require.NoError(t, err)
	_, err = h.risk.RecalculateRisk(context.Background(), "C-1")
	require.NoError(t, err)

	assert.Equal(t, 1, h.pub.count(domain.EventRiskLevelChanged))
	profile, err := h.risk.GetProfile(context.Background(), "C-1")
	require.NoError(t, err)
	assert.Len(t, profile.History, 1)
}

func TestListProfiles(t *testing.T) {
	h := newHarness()
	h.seedAlert("A-1", "C-1", domain.SeverityCritical, time.Hour)
	h.seedAlert("A-2", "C-2", domain.SeverityLow, time.Hour)
	for _, id := range []string{"C-1", "C-2"} {
		_, err := h.risk.RecalculateRisk(context.Background(), id)
		require.NoError(t, err)
	}

	profiles, total, err := h.risk.ListProfiles(context.Background(), domain.SeverityHigh, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "C-1", profiles[0].CustomerID)

	_, err = h.risk.GetProfile(context.Background(), "C-9")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

// racingProfileRepo 首次保存时模拟另一请求已写入同一客户画像
type racingProfileRepo struct {
	*memProfileRepo
	saves int
}

func (r *racingProfileRepo) Save(ctx context.Context, p *domain.CustomerRiskProfile) error {
	r.saves++
	if r.saves == 1 {
		rival := domain.NewCustomerRiskProfile(p.CustomerID)
		rival.RiskScore = 50
		rival.RiskLevel = domain.SeverityMedium
		_ = r.memProfileRepo.Save(ctx, rival)
		return errors.New("duplicate entry for key customer_id")
	}
	return r.memProfileRepo.Save(ctx, p)
}

func TestRecalculateRiskRetriesConcurrentCreate(t *testing.T) {
	h := newHarness()
	h.seedAlert("A-1", "C-1", domain.SeverityCritical, time.Hour)
	h.seedAlert("A-2", "C-1", domain.SeverityHigh, time.Hour)

	repo := &racingProfileRepo{memProfileRepo: newMemProfileRepo()}
	svc := NewRiskService(h.alerts, repo, domain.RiskThresholds{High: 75, Medium: 50}, 90*24*time.Hour, h.pub, discardLogger(), testOptions())

	profile, err := svc.RecalculateRisk(context.Background(), "C-1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.saves)
	assert.Equal(t, 87, profile.RiskScore)
	assert.Equal(t, domain.SeverityHigh, profile.RiskLevel)
	require.Len(t, profile.History, 1)
	assert.Equal(t, 50, profile.History[0].OldScore)

	stored, err := repo.GetByCustomerID(context.Background(), "C-1")
	require.NoError(t, err)
	assert.Equal(t, 87, stored.RiskScore)
	assert.Equal(t, 1, h.pub.count(domain.EventRiskLevelChanged))
}
