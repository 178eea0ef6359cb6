package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisScanCount = 500

// Redis is a Registry stored in a single redis hash, field connectionID and
// value subscriberID. Several relay processes may share it.
type Redis struct {
	rdb     *redis.Client
	hashKey string
}

var _ Registry = (*Redis)(nil)

// NewRedis connects to redisURL (e.g. "redis://localhost:6379/0") and
// verifies the connection.
func NewRedis(ctx context.Context, redisURL, hashKey string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("registry: failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("registry: redis ping failed: %w", err)
	}
	return NewRedisFromClient(rdb, hashKey), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(rdb *redis.Client, hashKey string) *Redis {
	return &Redis{rdb: rdb, hashKey: hashKey}
}

func (r *Redis) Save(ctx context.Context, connectionID, subscriberID string) error {
	return r.rdb.HSet(ctx, r.hashKey, connectionID, subscriberID).Err()
}

func (r *Redis) Remove(ctx context.Context, connectionID string) error {
	return r.rdb.HDel(ctx, r.hashKey, connectionID).Err()
}

// ListAll walks the hash with HSCAN, so a field may be reported twice if the
// hash is rehashed mid-scan. Duplicates are dropped here.
func (r *Redis) ListAll(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	var cursor uint64

	for {
		kvs, next, err := r.rdb.HScan(ctx, r.hashKey, cursor, "", redisScanCount).Result()
		if err != nil {
			return nil, err
		}
		// HSCAN replies field, value, field, value, ...
		for i := 0; i+1 < len(kvs); i += 2 {
			if _, dup := seen[kvs[i]]; dup {
				continue
			}
			seen[kvs[i]] = struct{}{}
			ids = append(ids, kvs[i])
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return ids, nil
}

func (r *Redis) Get(ctx context.Context, connectionID string) (string, error) {
	subscriberID, err := r.rdb.HGet(ctx, r.hashKey, connectionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return subscriberID, err
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
