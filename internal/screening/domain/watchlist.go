// Package domain 名单筛查领域层
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// SourceType 名单来源类型
type SourceType string

const (
	SourceSanctions      SourceType = "SANCTIONS"
	SourcePEP            SourceType = "PEP"
	SourceLawEnforcement SourceType = "LAW_ENFORCEMENT"
	SourceAdverseMedia   SourceType = "ADVERSE_MEDIA"
	SourceRegulatory     SourceType = "REGULATORY"
	SourceInternal       SourceType = "INTERNAL"
)

// Valid 是否为已知来源类型
func (s SourceType) Valid() bool {
	switch s {
	case SourceSanctions, SourcePEP, SourceLawEnforcement, SourceAdverseMedia, SourceRegulatory, SourceInternal:
		return true
	}
	return false
}

var (
	ErrEntryNotFound = errors.New("watchlist entry not found")
	ErrInvalidEntry  = errors.New("invalid watchlist entry")
)

// WatchlistEntry 名单条目
type WatchlistEntry struct {
	gorm.Model
	EntryID     string     `gorm:"column:entry_id;type:varchar(64);uniqueIndex;not null" json:"entry_id"`
	Name        string     `gorm:"column:name;type:varchar(200);index;not null" json:"name"`
	Aliases     []string   `gorm:"column:aliases;serializer:json;type:json" json:"aliases"`
	Source      string     `gorm:"column:source;type:varchar(100);not null" json:"source"`
	SourceType  SourceType `gorm:"column:source_type;type:varchar(50);index;not null" json:"source_type"`
	Nationality string     `gorm:"column:nationality;type:varchar(100)" json:"nationality,omitempty"`
	Country     string     `gorm:"column:country;type:varchar(100)" json:"country,omitempty"`
	RiskLevel   string     `gorm:"column:risk_level;type:varchar(20);default:'HIGH'" json:"risk_level"`
	Description string     `gorm:"column:description;type:text" json:"description,omitempty"`
	IsActive    bool       `gorm:"column:is_active;index" json:"is_active"`
	ExpiresAt   *time.Time `gorm:"column:expiry_date" json:"expiry_date,omitempty"`
}

// TableName 表名
func (WatchlistEntry) TableName() string {
	return "watchlist_entries"
}

// Validate 校验条目
func (e *WatchlistEntry) Validate() error {
	switch {
	case strings.TrimSpace(e.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidEntry)
	case e.Source == "":
		return fmt.Errorf("%w: source is required", ErrInvalidEntry)
	case !e.SourceType.Valid():
		return fmt.Errorf("%w: unknown source type %q", ErrInvalidEntry, e.SourceType)
	}
	return nil
}

// Effective 启用且未过期
func (e *WatchlistEntry) Effective(now time.Time) bool {
	if !e.IsActive {
		return false
	}
	return e.ExpiresAt == nil || now.Before(*e.ExpiresAt)
}

// Names 主名称与别名
func (e *WatchlistEntry) Names() []string {
	names := make([]string, 0, 1+len(e.Aliases))
	names = append(names, e.Name)
	for _, a := range e.Aliases {
		if strings.TrimSpace(a) != "" {
			names = append(names, a)
		}
	}
	return names
}

// Deactivate 停用
func (e *WatchlistEntry) Deactivate() {
	e.IsActive = false
}
