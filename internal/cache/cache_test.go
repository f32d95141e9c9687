package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/wes-io-polls/internal/domain"
)

func TestNoopPollCacheAlwaysMisses(t *testing.T) {
	c := NewNoopPollCache()
	ctx := context.Background()
	key := c.BuildKeyByID("poll_1")

	if stored, err := c.SetIfVersion(ctx, key, 0, &PollCacheResult{Poll: domain.Poll{ID: "poll_1"}}, time.Minute); err != nil || stored {
		t.Fatalf("SetIfVersion = %v, %v", stored, err)
	}
	if _, err := c.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get err = %v, want ErrCacheMiss", err)
	}
}

// TestRedisPollCache runs against a real server when REDIS_ADDRESS is set.
func TestRedisPollCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_ADDRESS not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	c := NewRedisPollCacheWithClient(client, "polls-test", time.Minute)
	defer c.Close()
	ctx := context.Background()

	key := c.BuildKeyByID("poll_cache_test")
	if key != "polls-test:poll:{poll_cache_test}" {
		t.Errorf("key = %s", key)
	}
	c.Delete(ctx, key)

	if _, err := c.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("cold Get err = %v", err)
	}

	want := &PollCacheResult{Poll: domain.Poll{
		ID:       "poll_cache_test",
		Question: "Cached?",
		Options:  []domain.Option{{ID: 0, Text: "yes", Votes: 2}, {ID: 1, Text: "no"}},
	}}
	version, err := c.Version(ctx, key)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if stored, err := c.SetIfVersion(ctx, key, version, want, time.Minute); err != nil || !stored {
		t.Fatalf("SetIfVersion = %v, %v", stored, err)
	}

	got, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Poll.Question != "Cached?" || got.Poll.Options[0].Votes != 2 {
		t.Errorf("got %+v", got.Poll)
	}

	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("after Delete err = %v", err)
	}
}

func TestRedisPollCache_RefusesSnapshotOlderThanInvalidation(t *testing.T) {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_ADDRESS not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	c := NewRedisPollCacheWithClient(client, "polls-test", time.Minute)
	defer c.Close()
	ctx := context.Background()

	key := c.BuildKeyByID("poll_race")
	before, err := c.Version(ctx, key)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	stale := &PollCacheResult{Poll: domain.Poll{ID: "poll_race", TotalVotes: 0}}
	if stored, err := c.SetIfVersion(ctx, key, before, stale, time.Minute); err != nil || stored {
		t.Fatalf("stale SetIfVersion = %v, %v", stored, err)
	}
	if _, err := c.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("stale snapshot cached: err = %v", err)
	}

	after, err := c.Version(ctx, key)
	if err != nil || after != before+1 {
		t.Fatalf("Version after Delete = %d, %v", after, err)
	}
	if stored, err := c.SetIfVersion(ctx, key, after, stale, time.Minute); err != nil || !stored {
		t.Errorf("fresh SetIfVersion = %v, %v", stored, err)
	}
	c.Delete(ctx, key)
}

func TestRedisPollCache_DropsUndecodableEntry(t *testing.T) {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_ADDRESS not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	c := NewRedisPollCacheWithClient(client, "polls-test", 0)
	defer c.Close()
	ctx := context.Background()

	key := c.BuildKeyByID("poll_corrupt")
	if err := client.Set(ctx, key, "{not json", time.Minute).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := c.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get err = %v, want ErrCacheMiss", err)
	}
	if n, _ := client.Exists(ctx, key).Result(); n != 0 {
		t.Errorf("corrupt key still present")
	}
}
