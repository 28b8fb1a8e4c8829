// Package domain 交易监控领域层
// 生成摘要：
// 1) 定义交易、监控规则与交易告警聚合
// 2) 定义拆分交易与快速资金流动模式检测
// 3) 定义客户风险画像评分
package domain

import "strings"

// Severity 告警严重程度 / 规则风险等级
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank 严重程度序号，LOW < MEDIUM < HIGH < CRITICAL，未知为 0
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Weight 风险评分权重
func (s Severity) Weight() int {
	return s.Rank() * 25
}

// Valid 是否为合法等级
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// AtLeast 是否不低于 other
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// ParseSeverity 解析等级字符串，大小写不敏感
func ParseSeverity(v string) (Severity, bool) {
	s := Severity(strings.ToUpper(strings.TrimSpace(v)))
	return s, s.Valid()
}
