package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "chat:history:"

// RedisSessionStore 基于Redis List的会话存储，多实例部署时共享历史
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore 创建Redis会话存储。ttl为0表示不过期
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		ttl:    ttl,
	}
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

func (s *RedisSessionStore) GetHistory(ctx context.Context, sessionID string) ([]Turn, error) {
	items, err := s.client.LRange(ctx, sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session history: %w", err)
	}

	turns := make([]Turn, 0, len(items))
	for _, item := range items {
		var turn Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			// 坏数据跳过，不让单条损坏记录拖垮整个会话
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *RedisSessionStore) Append(ctx context.Context, sessionID string, turn Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	key := sessionKey(sessionID)
	// RPUSH本身是原子操作，同一会话的并发追加由Redis串行化
	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	if s.ttl > 0 {
		s.client.Expire(ctx, key, s.ttl)
	}
	return nil
}

func (s *RedisSessionStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionKey(sessionID)).Err()
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionKey(sessionID)).Err()
}

func (s *RedisSessionStore) Sessions(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), sessionKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return ids, nil
}

func (s *RedisSessionStore) Info(ctx context.Context, sessionID string) (SessionInfo, error) {
	info := SessionInfo{SessionID: sessionID}
	count, err := s.client.LLen(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return info, fmt.Errorf("failed to get session length: %w", err)
	}
	info.TurnCount = int(count)
	return info, nil
}

func (s *RedisSessionStore) Ready() bool {
	if s.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.client.Ping(ctx).Err() == nil
}
