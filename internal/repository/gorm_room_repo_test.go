package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/internal/testutil"
)

func newRoom(id, name string, at time.Time) *domain.Room {
	return &domain.Room{
		ID:              id,
		Name:            name,
		AccessType:      domain.AccessPublic,
		CreatorID:       "user_alice",
		CreatorUsername: "alice",
		CreatedAt:       at,
		UpdatedAt:       at,
	}
}

func TestRoomRepository(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewGormRoomRepository(db)
	messages := NewGormMessageRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, newRoom("room_1", "general", t0)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, newRoom("room_2", "random", t0.Add(time.Minute))); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, newRoom("room_3", "general", t0)); !errors.Is(err, domain.ErrRoomNameExists) {
		t.Fatalf("duplicate name: err = %v, want ROOM_NAME_EXISTS", err)
	}

	rooms, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rooms) != 2 || rooms[0].ID != "room_2" {
		t.Errorf("list order: %+v", rooms)
	}

	_, err = repo.Update(ctx, "room_2", func(r *domain.Room) error {
		r.Name = "general"
		return nil
	}, t0)
	if !errors.Is(err, domain.ErrRoomNameExists) {
		t.Errorf("rename onto existing: err = %v", err)
	}

	updated, err := repo.Update(ctx, "room_2", func(r *domain.Room) error {
		r.AccessType = domain.AccessSelected
		r.AllowedUserIDs = []string{"user_alice", "bob"}
		return nil
	}, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	reloaded, _ := repo.GetByID(ctx, "room_2")
	if reloaded.AccessType != domain.AccessSelected || len(reloaded.AllowedUserIDs) != 2 || !updated.UpdatedAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("update not persisted: %+v", reloaded)
	}

	messages.Append(ctx, &domain.Message{
		ID: "msg_1", ScopeType: domain.ScopeRoom, ScopeID: "room_1",
		Content: "hello", SenderID: "bob", SenderUsername: "bob", CreatedAt: t0,
	}, 50)

	if _, err := repo.Delete(ctx, "room_1", func(*domain.Room) error { return nil }); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, "room_1"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("room still readable: %v", err)
	}
	if n, _ := messages.CountByScope(ctx, domain.Scope{Type: domain.ScopeRoom, ID: "room_1"}); n != 0 {
		t.Errorf("room messages left: %d", n)
	}
}
