package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// PatternType 可疑模式类型
type PatternType string

const (
	PatternStructuring   PatternType = "STRUCTURING"
	PatternRapidMovement PatternType = "RAPID_MOVEMENT"
)

// PatternConfig 模式检测参数
type PatternConfig struct {
	StructuringThreshold   decimal.Decimal
	RapidMovementThreshold int
	Lookback               time.Duration
	RapidMovementWindow    time.Duration
}

// DefaultPatternConfig 默认检测参数（10000 AED / 5 笔 / 30 天 / 24 小时）
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		StructuringThreshold:   decimal.NewFromInt(10000),
		RapidMovementThreshold: 5,
		Lookback:               30 * 24 * time.Hour,
		RapidMovementWindow:    24 * time.Hour,
	}
}

// PatternResult 模式检测结果
type PatternResult struct {
	Type      PatternType
	Severity  Severity
	Details   map[string]any
	Threshold decimal.Decimal
	Actual    decimal.Decimal
}

// DetectPatterns 基于发起方近期交易（不含当前交易）检测可疑模式
func DetectPatterns(txn *Transaction, recent []*Transaction, cfg PatternConfig, now time.Time) []PatternResult {
	var results []PatternResult
	if r, ok := detectStructuring(txn, recent, cfg); ok {
		results = append(results, r)
	}
	if r, ok := detectRapidMovement(recent, cfg, now); ok {
		results = append(results, r)
	}
	return results
}

// 单笔低于阈值但窗口内累计超过阈值
func detectStructuring(txn *Transaction, recent []*Transaction, cfg PatternConfig) (PatternResult, bool) {
	if !txn.Amount.LessThan(cfg.StructuringThreshold) {
		return PatternResult{}, false
	}
	total := txn.Amount
	for _, t := range recent {
		total = total.Add(t.Amount)
	}
	if !total.GreaterThan(cfg.StructuringThreshold) {
		return PatternResult{}, false
	}
	return PatternResult{
		Type:     PatternStructuring,
		Severity: SeverityHigh,
		Details: map[string]any{
			"pattern":      "Multiple smaller transactions",
			"period":       periodLabel(cfg.Lookback),
			"total_amount": total.String(),
		},
		Threshold: cfg.StructuringThreshold,
		Actual:    total,
	}, true
}

// 窗口内的近期交易笔数达到阈值；上报笔数为全部近期交易加当前交易
func detectRapidMovement(recent []*Transaction, cfg PatternConfig, now time.Time) (PatternResult, bool) {
	since := now.Add(-cfg.RapidMovementWindow)
	rapid := 0
	for _, t := range recent {
		if !t.CreatedAt.Before(since) {
			rapid++
		}
	}
	if rapid < cfg.RapidMovementThreshold {
		return PatternResult{}, false
	}
	count := len(recent) + 1
	return PatternResult{
		Type:     PatternRapidMovement,
		Severity: SeverityHigh,
		Details: map[string]any{
			"pattern":           "Rapid movement of funds",
			"period":            periodLabel(cfg.RapidMovementWindow),
			"transaction_count": count,
		},
		Threshold: decimal.NewFromInt(int64(cfg.RapidMovementThreshold)),
		Actual:    decimal.NewFromInt(int64(count)),
	}, true
}

func periodLabel(d time.Duration) string {
	hours := int(d / time.Hour)
	if hours >= 24 && hours%24 == 0 && hours != 24 {
		return strconv.Itoa(hours/24) + " days"
	}
	return strconv.Itoa(hours) + " hours"
}
