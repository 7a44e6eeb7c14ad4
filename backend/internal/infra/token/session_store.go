/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-09 21:25:41
 * @FilePath: \iqupdate\backend\internal\infra\token\session_store.go
 * @LastEditTime: 2025-10-20 11:55:03
 */
package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSessionPrefix = "iqupdate:session"

// RedisSessionStore 使用 Redis 记录仍然有效的会话 jti，多实例部署时共享登录状态。
//
// 登录成功后 Save 写入 <userID, jti>，TTL 与令牌 exp 一致；每次请求通过 Exists 确认会话未被注销；
// 登出时 Delete 移除记录，即使令牌本身尚未过期也会立刻失效。
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore 构造 Redis 会话存储。
func NewRedisSessionStore(client *redis.Client, prefix string) *RedisSessionStore {
	if prefix == "" {
		prefix = defaultSessionPrefix
	}
	return &RedisSessionStore{client: client, prefix: prefix}
}

func (s *RedisSessionStore) key(userID uint, tokenID string) string {
	return fmt.Sprintf("%s:%d:%s", s.prefix, userID, tokenID)
}

// Save 写入会话记录。已过期的令牌仍写入 1s，保证键很快消失。
func (s *RedisSessionStore) Save(ctx context.Context, userID uint, tokenID string, expiresAt time.Time) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("redis client not configured")
	}
	if tokenID == "" {
		return fmt.Errorf("token id required")
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}

	return s.client.Set(ctx, s.key(userID, tokenID), "1", ttl).Err()
}

// Delete 注销会话。
func (s *RedisSessionStore) Delete(ctx context.Context, userID uint, tokenID string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("redis client not configured")
	}
	if tokenID == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(userID, tokenID)).Err()
}

// Exists 检查会话是否仍然有效。
func (s *RedisSessionStore) Exists(ctx context.Context, userID uint, tokenID string) (bool, error) {
	if s == nil || s.client == nil {
		return false, fmt.Errorf("redis client not configured")
	}
	if tokenID == "" {
		return false, nil
	}
	count, err := s.client.Exists(ctx, s.key(userID, tokenID)).Result()
	if err != nil {
		return false, err
	}
	return count == 1, nil
}

// MemorySessionStore 是进程内实现，用于测试和未配置 Redis 的单实例部署。
// 服务重启后所有会话失效，需要重新登录。
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[uint]map[string]time.Time
}

// NewMemorySessionStore 创建进程内会话存储。
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[uint]map[string]time.Time)}
}

// Save 记录会话：userID -> (jti -> expiresAt)。
func (s *MemorySessionStore) Save(_ context.Context, userID uint, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return fmt.Errorf("token id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[userID]; !ok {
		s.sessions[userID] = make(map[string]time.Time)
	}
	s.sessions[userID][tokenID] = expiresAt
	return nil
}

// Delete 移除会话，用户名下为空时连同外层 map 一起删除。
func (s *MemorySessionStore) Delete(_ context.Context, userID uint, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(userID, tokenID)
	return nil
}

// Exists 检测会话是否存在且未过期，顺带清理过期条目。
func (s *MemorySessionStore) Exists(_ context.Context, userID uint, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.sessions[userID][tokenID]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiresAt) {
		s.deleteLocked(userID, tokenID)
		return false, nil
	}
	return true, nil
}

func (s *MemorySessionStore) deleteLocked(userID uint, tokenID string) {
	if bucket, ok := s.sessions[userID]; ok {
		delete(bucket, tokenID)
		if len(bucket) == 0 {
			delete(s.sessions, userID)
		}
	}
}
