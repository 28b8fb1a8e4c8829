package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
)

type riskProfileRepository struct {
	db *gorm.DB
}

// NewRiskProfileRepository 创建风险画像仓储
func NewRiskProfileRepository(db *gorm.DB) domain.RiskProfileRepository {
	return &riskProfileRepository{db: db}
}

func (r *riskProfileRepository) Save(ctx context.Context, profile *domain.CustomerRiskProfile) error {
	if profile.ID == 0 {
		var existing domain.CustomerRiskProfile
		if err := r.db.WithContext(ctx).Select("id", "created_at").
			Where("customer_id = ?", profile.CustomerID).
			First(&existing).Error; err == nil {
			profile.ID = existing.ID
			profile.CreatedAt = existing.CreatedAt
		}
	}
	return r.db.WithContext(ctx).Save(profile).Error
}

func (r *riskProfileRepository) GetByCustomerID(ctx context.Context, customerID string) (*domain.CustomerRiskProfile, error) {
	var profile domain.CustomerRiskProfile
	if err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (r *riskProfileRepository) ListByLevel(ctx context.Context, level domain.Severity, offset, limit int) ([]*domain.CustomerRiskProfile, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.CustomerRiskProfile{})
	if level != "" {
		q = q.Where("risk_level = ?", level)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var profiles []*domain.CustomerRiskProfile
	err := page(q.Order("risk_score desc"), offset, limit).Find(&profiles).Error
	return profiles, total, err
}

// Models 需要迁移的表
func Models() []any {
	return []any{
		&domain.Transaction{},
		&domain.MonitoringRule{},
		&domain.TransactionAlert{},
		&domain.CustomerRiskProfile{},
	}
}
