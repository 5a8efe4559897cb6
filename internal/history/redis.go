package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/docchat/internal/logx"
	"github.com/user/docchat/internal/types"
)

// listClient is the subset of redis.Cmdable the store uses.
type listClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// RedisStore keeps each thread's turns in a Redis list whose TTL is
// refreshed on every append.
type RedisStore struct {
	rdb listClient
	ttl time.Duration
}

func NewRedisStore(rdb listClient, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (r *RedisStore) key(thread types.ThreadID) string {
	return fmt.Sprintf("thread:%s:turns", thread)
}

// Append pushes the turn and extends the thread TTL. Turns on one thread are
// appended by a single lane, so LLen+1 is the next sequence number.
func (r *RedisStore) Append(ctx context.Context, turn *types.Turn) error {
	key := r.key(turn.ThreadID)
	n, err := r.rdb.LLen(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logx.Error().Err(err).Str("key", key).Msg("failed to read turn count")
		return fmt.Errorf("redis llen: %w", err)
	}
	turn.Seq = n + 1

	b, err := json.Marshal(turn)
	if err != nil {
		logx.Error().Err(err).Str("thread_id", string(turn.ThreadID)).Msg("failed to marshal turn")
		return fmt.Errorf("marshal turn: %w", err)
	}
	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push turn to redis")
		return fmt.Errorf("redis rpush: %w", err)
	}
	if r.ttl > 0 {
		if ok, err := r.rdb.Expire(ctx, key, r.ttl).Result(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
			return fmt.Errorf("redis expire: %w", err)
		} else if !ok {
			logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on thread key")
		}
	}
	return nil
}

// Tail returns the last limit turns in order. A non-positive limit returns
// every turn.
func (r *RedisStore) Tail(ctx context.Context, thread types.ThreadID, limit int) ([]*types.Turn, error) {
	key := r.key(thread)
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	rows, err := r.rdb.LRange(ctx, key, start, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load turns from redis")
		return nil, fmt.Errorf("redis lrange: %w", err)
	}

	turns := make([]*types.Turn, 0, len(rows))
	for i, s := range rows {
		var t types.Turn
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			logx.Error().Err(err).Str("thread_id", string(thread)).Int("index", i).Msg("failed to unmarshal turn")
			return nil, fmt.Errorf("unmarshal turn at index %d: %w", i, err)
		}
		turns = append(turns, &t)
	}
	return turns, nil
}

// Count returns the number of turns for the thread.
func (r *RedisStore) Count(ctx context.Context, thread types.ThreadID) (int64, error) {
	n, err := r.rdb.LLen(ctx, r.key(thread)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("redis llen: %w", err)
	}
	return n, nil
}

var _ types.HistoryStore = (*RedisStore)(nil)
