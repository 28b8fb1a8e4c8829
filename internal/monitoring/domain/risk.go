package domain

import (
	"time"

	"gorm.io/gorm"
)

// RiskThresholds 风险等级分界
type RiskThresholds struct {
	High   int
	Medium int
}

// Level 由评分得出风险等级
func (t RiskThresholds) Level(score int) Severity {
	switch {
	case score >= t.High:
		return SeverityHigh
	case score >= t.Medium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// RiskHistoryEntry 评分变更记录
type RiskHistoryEntry struct {
	Date     time.Time      `json:"date"`
	OldScore int            `json:"old_score"`
	NewScore int            `json:"new_score"`
	Factors  map[string]any `json:"factors"`
}

// CustomerRiskProfile 客户风险画像
type CustomerRiskProfile struct {
	gorm.Model
	CustomerID     string             `gorm:"column:customer_id;type:varchar(64);uniqueIndex;not null" json:"customer_id"`
	RiskScore      int                `gorm:"column:risk_score;not null;default:0" json:"risk_score"`
	RiskLevel      Severity           `gorm:"column:risk_level;type:varchar(16);not null;default:'LOW'" json:"risk_level"`
	OpenAlerts     int                `gorm:"column:open_alerts" json:"open_alerts"`
	LastAssessedAt time.Time          `gorm:"column:last_assessed_at" json:"last_assessed_at"`
	History        []RiskHistoryEntry `gorm:"column:history;serializer:json;type:json" json:"history"`

	domainEvents []DomainEvent `gorm:"-"`
}

// TableName 表名
func (CustomerRiskProfile) TableName() string {
	return "customer_risk_profiles"
}

// NewCustomerRiskProfile 新建低风险画像
func NewCustomerRiskProfile(customerID string) *CustomerRiskProfile {
	return &CustomerRiskProfile{
		CustomerID: customerID,
		RiskLevel:  SeverityLow,
		History:    make([]RiskHistoryEntry, 0),
	}
}

// ScoreAlerts 开放告警严重程度权重的均值，向下取整并限定在 0..100
func ScoreAlerts(alerts []*TransactionAlert) (int, map[string]any) {
	bySeverity := map[string]int{}
	total, n := 0, 0
	for _, a := range alerts {
		if a.IsTerminal() {
			continue
		}
		total += a.Severity.Weight()
		bySeverity[string(a.Severity)]++
		n++
	}
	factors := map[string]any{"open_alerts": n, "by_severity": bySeverity}
	if n == 0 {
		return 0, factors
	}
	score := total / n
	return min(max(score, 0), 100), factors
}

// Reassess 更新评分，返回等级是否变化
func (p *CustomerRiskProfile) Reassess(score int, factors map[string]any, thresholds RiskThresholds, now time.Time) bool {
	oldScore, oldLevel := p.RiskScore, p.RiskLevel
	p.LastAssessedAt = now
	if n, ok := factors["open_alerts"].(int); ok {
		p.OpenAlerts = n
	}

	if score != oldScore {
		p.History = append(p.History, RiskHistoryEntry{
			Date:     now,
			OldScore: oldScore,
			NewScore: score,
			Factors:  factors,
		})
	}
	p.RiskScore = score
	p.RiskLevel = thresholds.Level(score)

	if p.RiskLevel == oldLevel {
		return false
	}
	p.domainEvents = append(p.domainEvents, &RiskLevelChangedEvent{
		CustomerID: p.CustomerID,
		OldLevel:   oldLevel,
		NewLevel:   p.RiskLevel,
		Score:      score,
		Timestamp:  now,
	})
	return true
}

// GetDomainEvents 获取领域事件
func (p *CustomerRiskProfile) GetDomainEvents() []DomainEvent {
	return p.domainEvents
}

// ClearDomainEvents 清除领域事件
func (p *CustomerRiskProfile) ClearDomainEvents() {
	p.domainEvents = nil
}
