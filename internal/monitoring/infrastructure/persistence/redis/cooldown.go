// Package redis 交易监控 Redis 缓存实现
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
)

// KeyPrefix 冷却键前缀
const KeyPrefix = "aml:cooldown:"

// Locker SETNX 语义的键值存储，由 cache.RedisCache 实现
type Locker interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

type cooldownGate struct {
	store Locker
}

// NewCooldownGate 创建基于 SETNX 的冷却闸门
func NewCooldownGate(store Locker) domain.CooldownGate {
	return &cooldownGate{store: store}
}

// CooldownKey 发起方与规则的冷却键
func CooldownKey(originatorID, ruleID string) string {
	return fmt.Sprintf("%s%s:%s", KeyPrefix, originatorID, ruleID)
}

func (g *cooldownGate) Acquire(ctx context.Context, originatorID, ruleID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return true, nil
	}
	return g.store.SetNX(ctx, CooldownKey(originatorID, ruleID), time.Now().UTC().Unix(), ttl)
}

func (g *cooldownGate) Release(ctx context.Context, originatorID, ruleID string) error {
	return g.store.Delete(ctx, CooldownKey(originatorID, ruleID))
}
