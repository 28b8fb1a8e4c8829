package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLocker struct {
	keys map[string]time.Duration
	err  error
}

func (m *memLocker) SetNX(_ context.Context, key string, _ any, exp time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = exp
	return true, nil
}

func (m *memLocker) Delete(_ context.Context, keys ...string) error {
	if m.err != nil {
		return m.err
	}
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func TestCooldownGate(t *testing.T) {
	store := &memLocker{keys: map[string]time.Duration{}}
	gate := NewCooldownGate(store)
	ctx := context.Background()

	ok, err := gate.Acquire(ctx, "C-1", "R-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.Acquire(ctx, "C-1", "R-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = gate.Acquire(ctx, "C-2", "R-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, time.Hour, store.keys["aml:cooldown:C-1:R-1"])
}

func TestCooldownGateZeroTTL(t *testing.T) {
	store := &memLocker{keys: map[string]time.Duration{}}
	gate := NewCooldownGate(store)

	for range 2 {
		ok, err := gate.Acquire(context.Background(), "C-1", "R-1", 0)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Empty(t, store.keys)
}

func TestCooldownGateError(t *testing.T) {
	gate := NewCooldownGate(&memLocker{err: errors.New("redis down")})
	_, err := gate.Acquire(context.Background(), "C-1", "R-1", time.Minute)
	assert.Error(t, err)
}

func TestCooldownGateRelease(t *testing.T) {
	store := &memLocker{keys: map[string]time.Duration{}}
	gate := NewCooldownGate(store)
	ctx := context.Background()

	ok, err := gate.Acquire(ctx, "C-1", "R-1", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, gate.Release(ctx, "C-1", "R-1"))
	assert.Empty(t, store.keys)

	ok, err = gate.Acquire(ctx, "C-1", "R-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}
