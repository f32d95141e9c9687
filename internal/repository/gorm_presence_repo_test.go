package repository

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/internal/testutil"
)

func TestPresenceRepository(t *testing.T) {
	repo := NewGormPresenceRepository(testutil.NewDB(t))
	ctx := context.Background()

	if err := repo.Connect(ctx, "alice", t0); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := repo.Connect(ctx, "bob", t0); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	repo.AddChannel(ctx, "alice", "poll:1")
	repo.AddChannel(ctx, "alice", "room:1")
	repo.AddChannel(ctx, "alice", "poll:1")
	repo.RemoveChannel(ctx, "alice", "room:1")

	p, err := repo.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(p.Channels, []string{"poll:1"}) {
		t.Errorf("channels = %v", p.Channels)
	}

	later := t0.Add(time.Hour)
	if err := repo.Disconnect(ctx, "alice", later); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	p, _ = repo.Get(ctx, "alice")
	if p.Status != domain.PresenceOffline || len(p.Channels) != 0 || !p.LastSeenAt.Equal(later) {
		t.Errorf("after disconnect: %+v", p)
	}

	online, _ := repo.ListOnline(ctx)
	if len(online) != 1 || online[0].UserID != "bob" {
		t.Errorf("online = %+v", online)
	}
	all, _ := repo.ListAll(ctx)
	if len(all) != 2 {
		t.Errorf("all = %d, want 2", len(all))
	}

	// Reconnecting upserts the same record.
	if err := repo.Connect(ctx, "alice", later.Add(time.Minute)); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	p, _ = repo.Get(ctx, "alice")
	if p.Status != domain.PresenceOnline || !p.ConnectedAt.Equal(later.Add(time.Minute)) {
		t.Errorf("after reconnect: %+v", p)
	}

	if _, err := repo.Get(ctx, "nobody"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing: %v", err)
	}
}
