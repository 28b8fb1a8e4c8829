package domain

import "context"

// EntryRepository 名单条目仓储
type EntryRepository interface {
	Save(ctx context.Context, entry *WatchlistEntry) error
	GetByEntryID(ctx context.Context, entryID string) (*WatchlistEntry, error)
	// FindByNameAndSource 导入去重
	FindByNameAndSource(ctx context.Context, name, source string) (*WatchlistEntry, error)
	ListActive(ctx context.Context) ([]*WatchlistEntry, error)
	List(ctx context.Context, sourceType SourceType, offset, limit int) ([]*WatchlistEntry, int64, error)
}

// MatchRepository 命中仓储
type MatchRepository interface {
	Save(ctx context.Context, match *WatchlistMatch) error
	GetByMatchID(ctx context.Context, matchID string) (*WatchlistMatch, error)
	ListByTransaction(ctx context.Context, transactionID string) ([]*WatchlistMatch, error)
	ListByStatus(ctx context.Context, status MatchStatus, offset, limit int) ([]*WatchlistMatch, int64, error)
}

// EntryCache 生效名单快照缓存
type EntryCache interface {
	// Get 返回是否命中
	Get(ctx context.Context) ([]*WatchlistEntry, bool, error)
	Set(ctx context.Context, entries []*WatchlistEntry) error
	Invalidate(ctx context.Context) error
}
