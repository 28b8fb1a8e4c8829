package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
	"github.com/wyfcoding/amlplatform/pkg/mq"
)

// RiskService 客户风险评分服务
type RiskService struct {
	base
	alertRepo   domain.AlertRepository
	profileRepo domain.RiskProfileRepository
	thresholds  domain.RiskThresholds
	lookback    time.Duration
}

// NewRiskService 创建风险评分服务
func NewRiskService(
	alertRepo domain.AlertRepository,
	profileRepo domain.RiskProfileRepository,
	thresholds domain.RiskThresholds,
	lookback time.Duration,
	publisher mq.EventPublisher,
	logger *slog.Logger,
	opts Options,
) *RiskService {
	return &RiskService{
		base:        newBase(publisher, logger, opts),
		alertRepo:   alertRepo,
		profileRepo: profileRepo,
		thresholds:  thresholds,
		lookback:    lookback,
	}
}

// RecalculateRisk 根据回溯期内的开放告警重新评分
func (s *RiskService) RecalculateRisk(ctx context.Context, customerID string) (*domain.CustomerRiskProfile, error) {
	start := time.Now()
	now := s.now()

	alerts, err := s.alertRepo.ListOpenByOriginatorSince(ctx, customerID, now.Add(-s.lookback))
	if err != nil {
		return nil, err
	}

	created := false
	profile, err := s.profileRepo.GetByCustomerID(ctx, customerID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		profile = domain.NewCustomerRiskProfile(customerID)
		created = true
	} else if err != nil {
		return nil, err
	}

	score, factors := domain.ScoreAlerts(alerts)
	oldLevel := profile.RiskLevel
	changed := profile.Reassess(score, factors, s.thresholds, now)

	err = s.profileRepo.Save(ctx, profile)
	if err != nil && created {
		// 并发首次评分时画像可能已被写入，重读后重试一次
		if existing, getErr := s.profileRepo.GetByCustomerID(ctx, customerID); getErr == nil {
			s.logger.WarnContext(ctx, "risk profile created concurrently, retrying",
				"customer_id", customerID,
				"error", err)
			profile = existing
			oldLevel = profile.RiskLevel
			changed = profile.Reassess(score, factors, s.thresholds, now)
			err = s.profileRepo.Save(ctx, profile)
		}
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to save risk profile",
			"customer_id", customerID,
			"error", err,
			"duration", time.Since(start))
		return nil, err
	}

	if changed {
		s.publishEvents(ctx, customerID, profile)
		s.record(ctx, "system", "RISK_LEVEL_CHANGED", "customer_risk_profile", customerID, map[string]any{
			"old_level": oldLevel,
			"new_level": profile.RiskLevel,
			"score":     score,
		})
		if s.metrics != nil {
			s.metrics.RiskLevelChanges.WithLabelValues(string(profile.RiskLevel)).Inc()
		}
	}

	s.logger.InfoContext(ctx, "customer risk recalculated",
		"customer_id", customerID,
		"score", score,
		"level", profile.RiskLevel,
		"duration", time.Since(start))
	return profile, nil
}

// GetProfile 获取客户风险画像
func (s *RiskService) GetProfile(ctx context.Context, customerID string) (*domain.CustomerRiskProfile, error) {
	return s.profileRepo.GetByCustomerID(ctx, customerID)
}

// ListProfiles 按风险等级列出画像
func (s *RiskService) ListProfiles(ctx context.Context, level domain.Severity, offset, limit int) ([]*domain.CustomerRiskProfile, int64, error) {
	return s.profileRepo.ListByLevel(ctx, level, offset, limit)
}
