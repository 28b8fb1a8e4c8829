package domain

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// MatchStatus 命中状态
type MatchStatus string

const (
	MatchPotential     MatchStatus = "POTENTIAL"
	MatchConfirmed     MatchStatus = "CONFIRMED"
	MatchFalsePositive MatchStatus = "FALSE_POSITIVE"
)

var (
	ErrMatchNotFound = errors.New("watchlist match not found")
	ErrMatchReviewed = errors.New("watchlist match already reviewed")
)

// Party 被筛查方
type Party struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
}

// WatchlistMatch 名单命中聚合根
type WatchlistMatch struct {
	gorm.Model
	MatchID       string         `gorm:"column:match_id;type:varchar(64);uniqueIndex;not null" json:"match_id"`
	TransactionID string         `gorm:"column:transaction_id;type:varchar(64);index" json:"transaction_id"`
	EntryID       string         `gorm:"column:entry_id;type:varchar(64);index;not null" json:"entry_id"`
	CustomerID    string         `gorm:"column:customer_id;type:varchar(64);index" json:"customer_id"`
	PartyName     string         `gorm:"column:party_name;type:varchar(255)" json:"party_name"`
	WatchlistType SourceType     `gorm:"column:watchlist_type;type:varchar(50);not null" json:"watchlist_type"`
	MatchStrength float64        `gorm:"column:match_strength" json:"match_strength"`
	Status        MatchStatus    `gorm:"column:match_status;type:varchar(20);index;not null;default:'POTENTIAL'" json:"match_status"`
	Details       map[string]any `gorm:"column:match_details;serializer:json;type:json" json:"match_details"`
	ReviewedBy    string         `gorm:"column:reviewed_by;type:varchar(64)" json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time     `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	ReviewNotes   string         `gorm:"column:review_notes;type:text" json:"review_notes,omitempty"`

	domainEvents []DomainEvent `gorm:"-"`
}

// TableName 表名
func (WatchlistMatch) TableName() string {
	return "watchlist_matches"
}

// NewWatchlistMatch 由候选生成待确认命中
func NewWatchlistMatch(matchID, transactionID string, party Party, c Candidate, now time.Time) *WatchlistMatch {
	m := &WatchlistMatch{
		MatchID:       matchID,
		TransactionID: transactionID,
		EntryID:       c.Entry.EntryID,
		CustomerID:    party.CustomerID,
		PartyName:     party.Name,
		WatchlistType: c.Entry.SourceType,
		MatchStrength: c.Score,
		Status:        MatchPotential,
		Details: map[string]any{
			"watchlist_entry_id": c.Entry.EntryID,
			"matched_name":       c.MatchedName,
			"party_name":         party.Name,
		},
	}
	m.CreatedAt = now
	m.domainEvents = append(m.domainEvents, &WatchlistMatchedEvent{
		MatchID:       matchID,
		TransactionID: transactionID,
		EntryID:       c.Entry.EntryID,
		CustomerID:    party.CustomerID,
		PartyName:     party.Name,
		MatchedName:   c.MatchedName,
		WatchlistType: c.Entry.SourceType,
		MatchStrength: c.Score,
		Timestamp:     now,
	})
	return m
}

// Confirm 确认命中
func (m *WatchlistMatch) Confirm(reviewer, notes string, now time.Time) error {
	return m.review(MatchConfirmed, reviewer, notes, now)
}

// Dismiss 标记误报
func (m *WatchlistMatch) Dismiss(reviewer, notes string, now time.Time) error {
	return m.review(MatchFalsePositive, reviewer, notes, now)
}

func (m *WatchlistMatch) review(status MatchStatus, reviewer, notes string, now time.Time) error {
	if m.Status != MatchPotential {
		return fmt.Errorf("%w: %s", ErrMatchReviewed, m.Status)
	}
	t := now
	m.Status = status
	m.ReviewedBy = reviewer
	m.ReviewedAt = &t
	m.ReviewNotes = notes
	m.domainEvents = append(m.domainEvents, &MatchReviewedEvent{
		MatchID:       m.MatchID,
		TransactionID: m.TransactionID,
		Status:        status,
		Reviewer:      reviewer,
		Timestamp:     now,
	})
	return nil
}

// GetDomainEvents 获取领域事件
func (m *WatchlistMatch) GetDomainEvents() []DomainEvent {
	return m.domainEvents
}

// ClearDomainEvents 清除领域事件
func (m *WatchlistMatch) ClearDomainEvents() {
	m.domainEvents = nil
}
