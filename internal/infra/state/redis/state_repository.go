package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"live-poll/internal/domain"
	"live-poll/internal/repository"
)

// RedisStateRepository is the Redis implementation of repository.StateRepository.
type RedisStateRepository struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisStateRepository creates a RedisStateRepository. An empty keyPrefix defaults to "lp:".
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "lp:"
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key Generation Helpers ---

func (r *RedisStateRepository) resultCacheKey(roomID string, pollID int64) string {
	return fmt.Sprintf("%sroom:%s:poll:%d:result", r.keyPrefix, roomID, pollID)
}

func (r *RedisStateRepository) roomKeyPattern(roomID string) string {
	return fmt.Sprintf("%sroom:%s:*", r.keyPrefix, roomID)
}

// CheckRateLimit increments the fixed-window counter for key and reports
// whether it passed limit.
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	key = r.keyPrefix + "ratelimit:" + key
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to incr rate limit counter %s: %w", key, err)
	}
	// Only the request that opens the window sets its expiry; later hits
	// never extend it.
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("redis: failed to set rate limit window on %s: %w", key, err)
		}
	}
	return count > int64(limit), nil
}

// GetResultCache loads a cached poll record.
func (r *RedisStateRepository) GetResultCache(ctx context.Context, roomID string, pollID int64) (*domain.PollRecord, error) {
	key := r.resultCacheKey(roomID, pollID)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis: failed to get result cache from %s: %w", key, err)
	}
	var record domain.PollRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("redis: failed to unmarshal result cache from %s: %w", key, err)
	}
	return &record, nil
}

// SetResultCache stores a poll record under its room and poll id.
func (r *RedisStateRepository) SetResultCache(ctx context.Context, record *domain.PollRecord, ttl time.Duration) error {
	key := r.resultCacheKey(record.Poll.RoomID, record.Poll.ID)
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal result for cache (room %s, poll %d): %w", record.Poll.RoomID, record.Poll.ID, err)
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to set result cache on key %s: %w", key, err)
	}
	return nil
}

// CleanupRoomState deletes every key stored under roomID.
func (r *RedisStateRepository) CleanupRoomState(ctx context.Context, roomID string) error {
	pattern := r.roomKeyPattern(roomID)
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis: failed to scan keys for room %s: %w", roomID, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete keys for room %s: %w", roomID, err)
	}
	logrus.WithFields(logrus.Fields{"room_id": roomID, "keys": len(keys)}).Debug("Room state cleaned up")
	return nil
}
