/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-10 17:01:17
 * @FilePath: \iqupdate\backend\internal\infra\ratelimit\limiter.go
 * @LastEditTime: 2025-10-20 12:20:44
 */
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AllowResult 描述限流请求的结果。
type AllowResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
}

// Limiter 定义限流器的通用能力。limit<=0 表示不限流。
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (AllowResult, error)
}

// RedisLimiter 使用 Redis 计数实现固定窗口限流，多实例共享计数。
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter 根据 Redis 客户端构造限流器，可自定义 key 前缀。
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "iqupdate:ratelimit"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

// Allow 递增窗口计数；窗口只在首次计数时设置过期时间，之后的请求不会顺延窗口。
func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (AllowResult, error) {
	if limit <= 0 || r == nil || r.client == nil {
		return AllowResult{Allowed: true, Remaining: -1}, nil
	}
	if window <= 0 {
		window = time.Minute
	}

	namespaced := r.prefix + ":" + key
	count, err := r.client.Incr(ctx, namespaced).Result()
	if err != nil {
		return AllowResult{}, fmt.Errorf("incr %s: %w", namespaced, err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, namespaced, window).Err(); err != nil {
			return AllowResult{}, fmt.Errorf("expire %s: %w", namespaced, err)
		}
	}

	if int(count) > limit {
		ttl, err := r.client.TTL(ctx, namespaced).Result()
		if err != nil {
			return AllowResult{}, fmt.Errorf("ttl %s: %w", namespaced, err)
		}
		if ttl < 0 {
			// 计数键丢失了过期时间（例如 Expire 前进程退出），补设一次避免永久封禁。
			_ = r.client.Expire(ctx, namespaced, window).Err()
			ttl = window
		}
		return AllowResult{Allowed: false, RetryAfter: ttl}, nil
	}

	return AllowResult{Allowed: true, Remaining: limit - int(count)}, nil
}

// MemoryLimiter 是进程内的固定窗口限流器，用于未配置 Redis 的单实例部署与测试。
type MemoryLimiter struct {
	mu    sync.Mutex
	store map[string]entry
	now   func() time.Time
}

type entry struct {
	count   int
	expires time.Time
}

// NewMemoryLimiter 构建内存版限流器。
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{store: make(map[string]entry), now: time.Now}
}

// Allow 通过内存 map 统计请求次数，行为与 RedisLimiter 一致。
func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (AllowResult, error) {
	if limit <= 0 || m == nil {
		return AllowResult{Allowed: true, Remaining: -1}, nil
	}
	if window <= 0 {
		window = time.Minute
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	ent, ok := m.store[key]
	if !ok || !now.Before(ent.expires) {
		m.sweepLocked(now)
		m.store[key] = entry{count: 1, expires: now.Add(window)}
		return AllowResult{Allowed: true, Remaining: limit - 1}, nil
	}

	ent.count++
	m.store[key] = ent

	if ent.count > limit {
		return AllowResult{Allowed: false, RetryAfter: ent.expires.Sub(now)}, nil
	}
	return AllowResult{Allowed: true, Remaining: limit - ent.count}, nil
}

// sweepLocked 清理已过期的窗口，防止按 IP 计数的 map 无限增长。
func (m *MemoryLimiter) sweepLocked(now time.Time) {
	for key, ent := range m.store {
		if !now.Before(ent.expires) {
			delete(m.store, key)
		}
	}
}
