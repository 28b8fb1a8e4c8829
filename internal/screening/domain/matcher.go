package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultMatchThreshold 相似度阈值，严格大于才算命中
const DefaultMatchThreshold = 0.8

// Similarity 小写后按字符计算 SequenceMatcher 相似度
func Similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == "" || b == "" {
		return 0
	}
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}

// Candidate 候选命中
type Candidate struct {
	Entry       *WatchlistEntry `json:"entry"`
	MatchedName string          `json:"matched_name"`
	Score       float64         `json:"score"`
}

// Matcher 名称匹配器
type Matcher struct {
	Threshold float64
}

// NewMatcher 阈值非正时使用默认值
func NewMatcher(threshold float64) Matcher {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	return Matcher{Threshold: threshold}
}

// Screen 对生效条目逐一比对主名称与别名，每个条目取最高分，按分数降序返回
func (m Matcher) Screen(name string, entries []*WatchlistEntry, now time.Time) []Candidate {
	if strings.TrimSpace(name) == "" {
		return nil
	}

	var out []Candidate
	for _, e := range entries {
		if !e.Effective(now) {
			continue
		}
		best := Candidate{Entry: e}
		for _, n := range e.Names() {
			if s := Similarity(name, n); s > best.Score {
				best.Score = s
				best.MatchedName = n
			}
		}
		if best.Score > m.Threshold {
			out = append(out, best)
		}
	}

	slices.SortStableFunc(out, func(a, b Candidate) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return out
}
