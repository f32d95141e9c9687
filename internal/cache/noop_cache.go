package cache

import (
	"context"
	"time"
)

// NoopPollCache always misses. It is used when Redis is disabled.
type NoopPollCache struct{}

func NewNoopPollCache() NoopPollCache { return NoopPollCache{} }

func (NoopPollCache) Get(context.Context, string) (*PollCacheResult, error) {
	return nil, ErrCacheMiss
}

func (NoopPollCache) Version(context.Context, string) (int64, error) { return 0, nil }

func (NoopPollCache) SetIfVersion(context.Context, string, int64, *PollCacheResult, time.Duration) (bool, error) {
	return false, nil
}

func (NoopPollCache) Delete(context.Context, ...string) error { return nil }

func (NoopPollCache) BuildKeyByID(pollID string) string { return "poll:" + pollID }

func (NoopPollCache) Close() error { return nil }
