package domain

import "time"

// 事件主题
const (
	EventWatchlistMatched = "aml.watchlist.matched"
	EventMatchReviewed    = "aml.watchlist.match_reviewed"
)

// DomainEvent 领域事件
type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// WatchlistMatchedEvent 名单命中事件
type WatchlistMatchedEvent struct {
	MatchID       string     `json:"match_id"`
	TransactionID string     `json:"transaction_id"`
	EntryID       string     `json:"entry_id"`
	CustomerID    string     `json:"customer_id"`
	PartyName     string     `json:"party_name"`
	MatchedName   string     `json:"matched_name"`
	WatchlistType SourceType `json:"watchlist_type"`
	MatchStrength float64    `json:"match_strength"`
	Timestamp     time.Time  `json:"timestamp"`
}

func (e *WatchlistMatchedEvent) EventName() string     { return EventWatchlistMatched }
func (e *WatchlistMatchedEvent) OccurredAt() time.Time { return e.Timestamp }

// MatchReviewedEvent 命中复核事件
type MatchReviewedEvent struct {
	MatchID       string      `json:"match_id"`
	TransactionID string      `json:"transaction_id"`
	Status        MatchStatus `json:"status"`
	Reviewer      string      `json:"reviewer"`
	Timestamp     time.Time   `json:"timestamp"`
}

func (e *MatchReviewedEvent) EventName() string     { return EventMatchReviewed }
func (e *MatchReviewedEvent) OccurredAt() time.Time { return e.Timestamp }
