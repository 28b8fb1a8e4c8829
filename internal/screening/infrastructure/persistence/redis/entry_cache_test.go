package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/amlplatform/internal/screening/domain"
)

type memStore struct {
	data map[string][]byte
	ttl  map[string]time.Duration
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttl: map[string]time.Duration{}}
}

func (m *memStore) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memStore) SetJSON(_ context.Context, key string, value any, exp time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.ttl[key] = exp
	return nil
}

func (m *memStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestEntryCacheRoundTrip(t *testing.T) {
	store := newMemStore()
	cache := NewEntryCache(store, 0)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, []*domain.WatchlistEntry{{EntryID: "E-1", Name: "Ali Hassan", IsActive: true}}))
	assert.Equal(t, DefaultTTL, store.ttl[ActiveEntriesKey])

	entries, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, "Ali Hassan", entries[0].Name)

	require.NoError(t, cache.Invalidate(ctx))
	_, ok, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEntryCacheStoresEmptySnapshot(t *testing.T) {
	store := newMemStore()
	cache := NewEntryCache(store, time.Minute)

	require.NoError(t, cache.Set(context.Background(), nil))
	assert.Equal(t, "[]", string(store.data[ActiveEntriesKey]))

	entries, ok, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, entries)
}
