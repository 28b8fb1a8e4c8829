// Package redis 生效名单 Redis 快照
package redis

import (
	"context"
	"time"

	"github.com/wyfcoding/amlplatform/internal/screening/domain"
)

// ActiveEntriesKey 快照键
const ActiveEntriesKey = "aml:watchlist:active"

// DefaultTTL 默认快照有效期
const DefaultTTL = time.Hour

// JSONStore JSON 键值存储，由 cache.RedisCache 实现
type JSONStore interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type entryCache struct {
	store JSONStore
	ttl   time.Duration
}

// NewEntryCache 创建名单快照缓存
func NewEntryCache(store JSONStore, ttl time.Duration) domain.EntryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &entryCache{store: store, ttl: ttl}
}

func (c *entryCache) Get(ctx context.Context) ([]*domain.WatchlistEntry, bool, error) {
	var entries []*domain.WatchlistEntry
	ok, err := c.store.GetJSON(ctx, ActiveEntriesKey, &entries)
	if err != nil || !ok {
		return nil, false, err
	}
	return entries, true, nil
}

func (c *entryCache) Set(ctx context.Context, entries []*domain.WatchlistEntry) error {
	if entries == nil {
		entries = []*domain.WatchlistEntry{}
	}
	return c.store.SetJSON(ctx, ActiveEntriesKey, entries, c.ttl)
}

func (c *entryCache) Invalidate(ctx context.Context) error {
	return c.store.Delete(ctx, ActiveEntriesKey)
}
