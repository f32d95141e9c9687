package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-io-polls/internal/config"
	"github.com/weiawesome/wes-io-polls/pkg/log"
)

const (
	defaultTTL = 30 * time.Second
	versionTTL = 24 * time.Hour
)

// RedisPollCache keeps poll snapshots as JSON strings under
// <prefix>:poll:{<id>} and invalidation counters under the same key with a
// ":ver" suffix. The hash tag keeps both in one cluster slot.
type RedisPollCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisPollCache connects to cfg.Address and verifies the connection.
func NewRedisPollCache(cfg config.RedisConfig) (*RedisPollCache, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Address},
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisPollCacheWithClient(client, cfg.Prefix, cfg.CacheTTL), nil
}

// NewRedisPollCacheWithClient wraps an existing client. A non-positive
// ttl falls back to 30s.
func NewRedisPollCacheWithClient(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisPollCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisPollCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisPollCache) BuildKeyByID(pollID string) string {
	return fmt.Sprintf("%s:poll:{%s}", c.prefix, pollID)
}

func versionKey(key string) string { return key + ":ver" }

// Get returns ErrCacheMiss for absent keys. An entry that no longer
// decodes is dropped and reported as a miss.
func (c *RedisPollCache) Get(ctx context.Context, key string) (*PollCacheResult, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var result PollCacheResult
	if err := json.Unmarshal(data, &result); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("key", key).Msg("dropping undecodable cache entry")
		c.client.Unlink(ctx, key)
		return nil, ErrCacheMiss
	}
	return &result, nil
}

// Version returns the invalidation counter of key, zero if key was never
// invalidated.
func (c *RedisPollCache) Version(ctx context.Context, key string) (int64, error) {
	v, err := c.client.Get(ctx, versionKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", versionKey(key), err)
	}
	return v, nil
}

// SetIfVersion stores result for ttl, or for the cache default when ttl is
// not positive, as long as key's invalidation counter still equals
// version. It reports whether the entry was written.
func (c *RedisPollCache) SetIfVersion(ctx context.Context, key string, version int64, result *PollCacheResult, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("encode cache entry: %w", err)
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	vk := versionKey(key)
	stored := false
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vk).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		stored = err == nil
		return err
	}, vk)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis set %s: %w", key, err)
	}
	return stored, nil
}

// Delete bumps the invalidation counter of every key and unlinks it.
func (c *RedisPollCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Incr(ctx, versionKey(key))
			pipe.Expire(ctx, versionKey(key), versionTTL)
			pipe.Unlink(ctx, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}

func (c *RedisPollCache) Close() error {
	return c.client.Close()
}
