package cache

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-polls/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// PollCacheResult is the cached snapshot of one poll.
type PollCacheResult struct {
	Poll domain.Poll `json:"poll"`
}

// PollCache stores poll snapshots. Every poll mutation deletes the key,
// which also bumps its invalidation counter. A reader takes Version before
// loading from the database and writes back with SetIfVersion, so a
// snapshot that raced a mutation is never stored.
type PollCache interface {
	Get(ctx context.Context, key string) (*PollCacheResult, error)
	Version(ctx context.Context, key string) (int64, error)
	SetIfVersion(ctx context.Context, key string, version int64, result *PollCacheResult, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	BuildKeyByID(pollID string) string
	Close() error
}
